package testutil

import (
	"net/http"
	"time"

	id "hatchseed/pkg/domain"
	"hatchseed/pkg/requestcontext"
)

// AsIdentity attaches an authenticated identity to the request, the state
// the auth middleware leaves behind.
func AsIdentity(req *http.Request, who id.Identity) *http.Request {
	return req.WithContext(requestcontext.WithIdentity(req.Context(), who))
}

// AtTime pins the request clock so eligibility rules are deterministic.
func AtTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
