// Package handler exposes the slot workflow over HTTP. Owner routes mount at
// the root of the authenticated API; reviewer routes mount under /review.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hatchseed/internal/slots/models"
	"hatchseed/internal/slots/service"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

// Service defines the slot operations used by the HTTP layer.
type Service interface {
	Open(ctx context.Context, req service.OpenRequest) (*models.SlotSet, error)
	Upload(ctx context.Context, owner id.OwnerID, req service.UploadRequest) (models.SetView, error)
	Delete(ctx context.Context, owner id.OwnerID, setID id.SetID, index int) (models.SetView, error)
	Decide(ctx context.Context, reviewer id.Identity, req service.DecideRequest) (models.SetView, error)
	Approve(ctx context.Context, reviewer id.Identity, setID id.SetID) (service.ApproveResult, error)
	DeleteAndReset(ctx context.Context, reviewer id.Identity, setID id.SetID) (models.SetView, error)
	Get(ctx context.Context, who id.Identity, setID id.SetID) (models.SetView, error)
	ListForOwner(ctx context.Context, owner id.OwnerID) ([]models.SetView, error)
	ListForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]models.SetView, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type openRequest struct {
	SetID      string `json:"set_id,omitempty"`
	RecordName string `json:"record_name"`
	OwnerID    string `json:"owner_id"`
}

type uploadRequest struct {
	MediaRef string         `json:"media_ref"`
	GeoTag   *models.GeoTag `json:"geo_tag,omitempty"`
}

type decisionRequest struct {
	Action  models.Action `json:"action"`
	Message string        `json:"message"`
}

type listResponse struct {
	Sets []models.SetView `json:"sets"`
}

// RegisterOwnerRoutes mounts routes for authenticated owners.
func (h *Handler) RegisterOwnerRoutes(r chi.Router) {
	r.Get("/sets", h.handleListForOwner)
	r.Get("/sets/{setID}", h.handleGet)
	r.Put("/sets/{setID}/slots/{index}", h.handleUpload)
	r.Delete("/sets/{setID}/slots/{index}", h.handleDelete)
}

// RegisterReviewerRoutes mounts routes for authenticated reviewers.
func (h *Handler) RegisterReviewerRoutes(r chi.Router) {
	r.Post("/sets", h.handleOpen)
	r.Get("/sets", h.handleListForReviewer)
	r.Get("/sets/{setID}", h.handleGet)
	r.Post("/sets/{setID}/slots/{index}/decision", h.handleDecide)
	r.Post("/sets/{setID}/approve", h.handleApprove)
	r.Post("/sets/{setID}/reset", h.handleDeleteAndReset)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req openRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	owner, err := id.ParseOwnerID(req.OwnerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var setID id.SetID
	if req.SetID != "" {
		if setID, err = id.ParseSetID(req.SetID); err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	who := requestcontext.Identity(ctx)
	set, err := h.service.Open(ctx, service.OpenRequest{
		SetID:      setID,
		RecordName: req.RecordName,
		OwnerID:    owner,
		ReviewerID: who.ReviewerID(),
	})
	if err != nil {
		h.logFailure(ctx, "open set", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, set)
}

func (h *Handler) handleListForOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sets, err := h.service.ListForOwner(ctx, requestcontext.Identity(ctx).OwnerID())
	if err != nil {
		h.logFailure(ctx, "list sets", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Sets: sets})
}

func (h *Handler) handleListForReviewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sets, err := h.service.ListForReviewer(ctx, requestcontext.Identity(ctx).ReviewerID())
	if err != nil {
		h.logFailure(ctx, "list sets", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Sets: sets})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, err := id.ParseSetID(chi.URLParam(r, "setID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.service.Get(ctx, requestcontext.Identity(ctx), setID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, index, err := slotParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req uploadRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.service.Upload(ctx, requestcontext.Identity(ctx).OwnerID(), service.UploadRequest{
		SetID:    setID,
		Index:    index,
		MediaRef: req.MediaRef,
		GeoTag:   req.GeoTag,
	})
	if err != nil {
		h.logFailure(ctx, "upload", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, index, err := slotParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.service.Delete(ctx, requestcontext.Identity(ctx).OwnerID(), setID, index)
	if err != nil {
		h.logFailure(ctx, "delete slot", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, index, err := slotParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.service.Decide(ctx, requestcontext.Identity(ctx), service.DecideRequest{
		SetID:   setID,
		Index:   index,
		Action:  req.Action,
		Message: req.Message,
	})
	if err != nil {
		h.logFailure(ctx, "moderate slot", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, err := id.ParseSetID(chi.URLParam(r, "setID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Approve(ctx, requestcontext.Identity(ctx), setID)
	if err != nil {
		h.logFailure(ctx, "approve set", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDeleteAndReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setID, err := id.ParseSetID(chi.URLParam(r, "setID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.service.DeleteAndReset(ctx, requestcontext.Identity(ctx), setID)
	if err != nil {
		h.logFailure(ctx, "reset set", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func slotParams(r *http.Request) (id.SetID, int, error) {
	setID, err := id.ParseSetID(chi.URLParam(r, "setID"))
	if err != nil {
		return id.SetID{}, 0, err
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return id.SetID{}, 0, dErrors.New(dErrors.CodeInvalidInput, "slot index must be an integer")
	}
	return setID, index, nil
}

// logFailure logs server-side failures; client errors are only returned.
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
