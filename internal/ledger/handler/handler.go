package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hatchseed/internal/ledger"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/requestcontext"
)

// Service defines the ledger queries exposed over HTTP.
type Service interface {
	Get(ctx context.Context, txnID id.TransactionID) (*ledger.Transaction, error)
	ListForOwner(ctx context.Context, owner id.OwnerID) ([]*ledger.Transaction, error)
	ListForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*ledger.Transaction, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type listResponse struct {
	Transactions []*ledger.Transaction `json:"transactions"`
}

// RegisterOwnerRoutes mounts routes for authenticated owners.
func (h *Handler) RegisterOwnerRoutes(r chi.Router) {
	r.Get("/transactions", h.handleListForOwner)
	r.Get("/transactions/{txnID}", h.handleGet)
}

// RegisterReviewerRoutes mounts routes under the reviewer prefix.
func (h *Handler) RegisterReviewerRoutes(r chi.Router) {
	r.Get("/transactions", h.handleListForReviewer)
	r.Get("/transactions/{txnID}", h.handleGet)
}

func (h *Handler) handleListForOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := requestcontext.Identity(ctx)
	txns, err := h.service.ListForOwner(ctx, who.OwnerID())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list transactions",
			"identity", who.Key(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Transactions: txns})
}

func (h *Handler) handleListForReviewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := requestcontext.Identity(ctx)
	txns, err := h.service.ListForReviewer(ctx, who.ReviewerID())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list transactions",
			"identity", who.Key(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Transactions: txns})
}

// handleGet hides transactions of other parties behind 404.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID, err := id.ParseTransactionID(chi.URLParam(r, "txnID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	txn, err := h.service.Get(ctx, txnID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	who := requestcontext.Identity(ctx)
	visible := (who.Role == id.RoleOwner && txn.OwnerID == who.OwnerID()) ||
		(who.Role == id.RoleReviewer && txn.ReviewerID == who.ReviewerID())
	if !visible {
		shared.WriteJSON(w, http.StatusNotFound, shared.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "transaction not found",
		})
		return
	}
	shared.WriteJSON(w, http.StatusOK, txn)
}
