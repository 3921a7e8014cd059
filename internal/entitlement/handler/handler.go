package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hatchseed/internal/entitlement"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/requestcontext"
)

type Service interface {
	Get(ctx context.Context, owner id.OwnerID) (*entitlement.Allocation, error)
	Replenish(ctx context.Context, owner id.OwnerID, count int) (*entitlement.Allocation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type replenishRequest struct {
	Count int `json:"count"`
}

func (h *Handler) RegisterOwnerRoutes(r chi.Router) {
	r.Get("/allocation", h.handleGetOwn)
}

func (h *Handler) RegisterReviewerRoutes(r chi.Router) {
	r.Get("/owners/{ownerID}/allocation", h.handleGet)
	r.Post("/owners/{ownerID}/allocation", h.handleReplenish)
}

func (h *Handler) handleGetOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alloc, err := h.service.Get(ctx, requestcontext.Identity(ctx).OwnerID())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParseOwnerID(chi.URLParam(r, "ownerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	alloc, err := h.service.Get(r.Context(), owner)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleReplenish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := id.ParseOwnerID(chi.URLParam(r, "ownerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req replenishRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid replenish request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	alloc, err := h.service.Replenish(ctx, owner, req.Count)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to replenish allocation",
			"owner_id", owner.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, alloc)
}
