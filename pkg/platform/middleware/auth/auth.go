package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "hatchseed/pkg/domain"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/requestcontext"
)

// JWTValidator turns a bearer token into a principal.
type JWTValidator interface {
	ValidateToken(tokenString string) (id.Identity, error)
}

// SecurityAuditor receives rejected credentials and role violations.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// BearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on a WebSocket handshake, so the access_token query
// parameter is accepted as a fallback.
func BearerToken(r *http.Request) (string, bool) {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && after != "" {
		return after, true
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func RequireAuth(validator JWTValidator, auditor SecurityAuditor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			who, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				emit(ctx, auditor, audit.SecurityEvent{
					Subject:  r.URL.Path,
					Action:   audit.EventAuthFailed,
					Reason:   err.Error(),
					Severity: audit.SeverityWarning,
				})
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithIdentity(ctx, who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated principals of any other role.
func RequireRole(role id.Role, auditor SecurityAuditor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			who := requestcontext.Identity(ctx)
			if who.IsZero() {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if who.Role != role {
				logger.WarnContext(ctx, "forbidden - role mismatch",
					"identity", who.Key(),
					"required_role", role,
					"request_id", requestcontext.RequestID(ctx),
				)
				emit(ctx, auditor, audit.SecurityEvent{
					Subject:  string(who.Key()),
					Action:   audit.EventAccessDenied,
					Reason:   "requires role " + string(role),
					Severity: audit.SeverityInfo,
				})
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func emit(ctx context.Context, auditor SecurityAuditor, event audit.SecurityEvent) {
	if auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	auditor.Emit(ctx, event)
}
