// Package httptransport composes the public HTTP surface: shared middleware,
// authentication, role groups and the per-module handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hatchseed/internal/admin"
	convhandler "hatchseed/internal/conversation/handler"
	entitlementhandler "hatchseed/internal/entitlement/handler"
	eventshandler "hatchseed/internal/events/handler"
	ledgerhandler "hatchseed/internal/ledger/handler"
	notificationhandler "hatchseed/internal/notification/handler"
	"hatchseed/internal/platform/metrics"
	slotshandler "hatchseed/internal/slots/handler"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	adminmw "hatchseed/pkg/platform/middleware/admin"
	authmw "hatchseed/pkg/platform/middleware/auth"
	"hatchseed/pkg/platform/middleware/metadata"
	"hatchseed/pkg/platform/middleware/request"
	"hatchseed/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts. Nil handlers are skipped.
type Deps struct {
	Validator authmw.JWTValidator
	Security  authmw.SecurityAuditor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Checks are the readiness probes behind /readyz, keyed by dependency.
	Checks map[string]func(ctx context.Context) error

	Slots         *slotshandler.Handler
	Ledger        *ledgerhandler.Handler
	Entitlements  *entitlementhandler.Handler
	Conversations *convhandler.Handler
	Notifications *notificationhandler.Handler
	Events        *eventshandler.Handler

	// Admin routes are only mounted when AdminToken is set.
	Admin      *admin.Handler
	AdminToken string
}

// NewRouter wires all endpoints. Owner routes live at the root of the
// authenticated API and reviewer routes under /review, each behind its role
// check; the push channel and snapshot are open to both roles.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(d.Checks))
	r.Handle("/metrics", promhttp.Handler())

	if d.Admin != nil && d.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
			d.Admin.Register(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Security, d.Logger))

		if d.Events != nil {
			d.Events.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireRole(id.RoleOwner, d.Security, d.Logger))
			r.Use(request.ContentTypeJSON)
			if d.Slots != nil {
				d.Slots.RegisterOwnerRoutes(r)
			}
			if d.Ledger != nil {
				d.Ledger.RegisterOwnerRoutes(r)
			}
			if d.Entitlements != nil {
				d.Entitlements.RegisterOwnerRoutes(r)
			}
			if d.Conversations != nil {
				d.Conversations.Register(r)
			}
			if d.Notifications != nil {
				d.Notifications.Register(r)
			}
		})

		r.Route("/review", func(r chi.Router) {
			r.Use(authmw.RequireRole(id.RoleReviewer, d.Security, d.Logger))
			r.Use(request.ContentTypeJSON)
			if d.Slots != nil {
				d.Slots.RegisterReviewerRoutes(r)
			}
			if d.Ledger != nil {
				d.Ledger.RegisterReviewerRoutes(r)
			}
			if d.Entitlements != nil {
				d.Entitlements.RegisterReviewerRoutes(r)
			}
			if d.Conversations != nil {
				d.Conversations.RegisterReviewerRoutes(r)
			}
			if d.Notifications != nil {
				d.Notifications.RegisterReviewerRoutes(r)
			}
		})
	})

	return r
}

func readiness(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		shared.WriteJSON(w, status, results)
	}
}
