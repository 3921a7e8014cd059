package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hatchseed/internal/conversation/models"
	"hatchseed/internal/conversation/service"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

type Service interface {
	Start(ctx context.Context, sender id.Identity, req service.StartRequest) (*models.Conversation, error)
	AppendMessage(ctx context.Context, convID id.ConversationID, sender id.Identity, body string) (*models.Conversation, error)
	Close(ctx context.Context, convID id.ConversationID, actor id.Identity) (*models.Conversation, error)
	Get(ctx context.Context, convID id.ConversationID, who id.Identity) (*models.Conversation, error)
	List(ctx context.Context, who id.Identity, status models.Status) ([]models.Summary, error)
	MarkRead(ctx context.Context, convID id.ConversationID, who id.Identity) error
	MarkAllRead(ctx context.Context, who id.Identity) (int, error)
	UnreadCount(ctx context.Context, who id.Identity) (int, error)
	Stats(ctx context.Context, reviewer id.ReviewerID) (models.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// startRequest names the counterpart: owners send reviewer_id, reviewers
// send owner_id.
type startRequest struct {
	OwnerID      string `json:"owner_id,omitempty"`
	ReviewerID   string `json:"reviewer_id,omitempty"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	RelatedSetID string `json:"related_set_id,omitempty"`
}

type messageRequest struct {
	Body string `json:"body"`
}

type listResponse struct {
	Conversations []models.Summary `json:"conversations"`
}

type countResponse struct {
	Count int `json:"count"`
}

// Register mounts the routes shared by owners and reviewers.
func (h *Handler) Register(r chi.Router) {
	r.Get("/conversations", h.handleList)
	r.Post("/conversations", h.handleStart)
	r.Get("/conversations/unread-count", h.handleUnreadCount)
	r.Post("/conversations/read-all", h.handleMarkAllRead)
	r.Get("/conversations/{convID}", h.handleGet)
	r.Post("/conversations/{convID}/messages", h.handleAppend)
	r.Post("/conversations/{convID}/read", h.handleMarkRead)
	r.Post("/conversations/{convID}/close", h.handleClose)
}

// RegisterReviewerRoutes mounts the shared routes plus the reviewer dashboard.
func (h *Handler) RegisterReviewerRoutes(r chi.Router) {
	h.Register(r)
	r.Get("/conversations/stats", h.handleStats)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "status must be open or closed"))
		return
	}
	convs, err := h.service.List(ctx, requestcontext.Identity(ctx), status)
	if err != nil {
		h.logFailure(ctx, "list conversations", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Conversations: convs})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body startRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	who := requestcontext.Identity(ctx)
	req := service.StartRequest{Subject: body.Subject, Body: body.Body}
	var err error
	switch who.Role {
	case id.RoleOwner:
		req.OwnerID = who.OwnerID()
		req.ReviewerID, err = id.ParseReviewerID(body.ReviewerID)
	case id.RoleReviewer:
		req.ReviewerID = who.ReviewerID()
		req.OwnerID, err = id.ParseOwnerID(body.OwnerID)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if body.RelatedSetID != "" {
		setID, err := id.ParseSetID(body.RelatedSetID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		req.RelatedSetID = &setID
	}

	conv, err := h.service.Start(ctx, who, req)
	if err != nil {
		h.logFailure(ctx, "start conversation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID, err := id.ParseConversationID(chi.URLParam(r, "convID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	conv, err := h.service.Get(ctx, convID, requestcontext.Identity(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID, err := id.ParseConversationID(chi.URLParam(r, "convID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req messageRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	conv, err := h.service.AppendMessage(ctx, convID, requestcontext.Identity(ctx), req.Body)
	if err != nil {
		h.logFailure(ctx, "append message", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID, err := id.ParseConversationID(chi.URLParam(r, "convID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	conv, err := h.service.Close(ctx, convID, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "close conversation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID, err := id.ParseConversationID(chi.URLParam(r, "convID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.MarkRead(ctx, convID, requestcontext.Identity(ctx)); err != nil {
		h.logFailure(ctx, "mark conversation read", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	marked, err := h.service.MarkAllRead(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "mark all conversations read", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, countResponse{Count: marked})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.UnreadCount(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logFailure(ctx, "count unread messages", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx, requestcontext.Identity(ctx).ReviewerID())
	if err != nil {
		h.logFailure(ctx, "load conversation stats", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
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
