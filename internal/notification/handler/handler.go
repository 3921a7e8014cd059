package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hatchseed/internal/notification/models"
	"hatchseed/internal/notification/service"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, who id.Identity, limit int) ([]*models.Notification, error)
	Stories(ctx context.Context, who id.Identity) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, who id.Identity) (int, error)
	MarkAllRead(ctx context.Context, who id.Identity) error
	Broadcast(ctx context.Context, reviewer id.Identity, in service.BroadcastInput) (service.BroadcastResult, error)
	Retract(ctx context.Context, reviewer id.Identity, broadcastID id.BroadcastID) (int, error)
	History(ctx context.Context, reviewer id.Identity) ([]models.BroadcastSummary, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type broadcastRequest struct {
	Target       models.Target   `json:"target"`
	OwnerIDs     []id.OwnerID    `json:"owner_ids,omitempty"`
	Type         models.Type     `json:"type,omitempty"`
	Priority     models.Priority `json:"priority,omitempty"`
	Message      string          `json:"message"`
	MediaRefs    []string        `json:"media_refs,omitempty"`
	RelatedSetID *id.SetID       `json:"related_set_id,omitempty"`
}

type listResponse struct {
	Notifications []*models.Notification `json:"notifications"`
}

type historyResponse struct {
	Broadcasts []models.BroadcastSummary `json:"broadcasts"`
}

type countResponse struct {
	Count int `json:"count"`
}

// Register mounts the feed routes every identity reads.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Get("/notifications/stories", h.handleStories)
	r.Get("/notifications/unread-count", h.handleUnreadCount)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
}

// RegisterReviewerRoutes mounts the feed plus broadcasting.
func (h *Handler) RegisterReviewerRoutes(r chi.Router) {
	h.Register(r)
	r.Post("/broadcasts", h.handleBroadcast)
	r.Get("/broadcasts", h.handleHistory)
	r.Delete("/broadcasts/{broadcastID}", h.handleRetract)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	feed, err := h.service.List(ctx, requestcontext.Identity(ctx), limit)
	if err != nil {
		h.logFailure(ctx, "list notifications", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Notifications: feed})
}

func (h *Handler) handleStories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stories, err := h.service.Stories(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "list stories", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Notifications: stories})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.UnreadCount(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "count unread notifications", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.MarkAllRead(ctx, requestcontext.Identity(ctx)); err != nil {
		h.logFailure(ctx, "mark notifications read", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req broadcastRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	res, err := h.service.Broadcast(ctx, requestcontext.Identity(ctx), service.BroadcastInput{
		Target:   req.Target,
		OwnerIDs: req.OwnerIDs,
		Content: models.Content{
			Type:         req.Type,
			Priority:     req.Priority,
			Message:      req.Message,
			MediaRefs:    req.MediaRefs,
			RelatedSetID: req.RelatedSetID,
		},
	})
	if err != nil {
		h.logFailure(ctx, "broadcast", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.service.History(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "list broadcasts", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, historyResponse{Broadcasts: history})
}

func (h *Handler) handleRetract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	broadcastID, err := id.ParseBroadcastID(chi.URLParam(r, "broadcastID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	removed, err := h.service.Retract(ctx, requestcontext.Identity(ctx), broadcastID)
	if err != nil {
		h.logFailure(ctx, "retract broadcast", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, countResponse{Count: removed})
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	if shared.StatusFor(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, "failed to "+op,
		"identity", requestcontext.Identity(ctx).Key(),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
