// Package admin exposes operator-only helpers. Routes mount behind the
// static admin token middleware.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

// MaxTokenTTL caps the lifetime of a minted token.
const MaxTokenTTL = 7 * 24 * time.Hour

// TokenIssuer mints identity tokens.
type TokenIssuer interface {
	GenerateToken(who id.Identity, expiresIn time.Duration) (string, error)
}

type Handler struct {
	issuer     TokenIssuer
	defaultTTL time.Duration
	logger     *slog.Logger
}

func New(issuer TokenIssuer, defaultTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, defaultTTL: defaultTTL, logger: logger}
}

type tokenRequest struct {
	Role       id.Role `json:"role"`
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name,omitempty"`
	TTLSeconds int64   `json:"ttl_seconds,omitempty"`
}

// TokenResponse is returned by POST /admin/tokens.
type TokenResponse struct {
	Token       string         `json:"token"`
	IdentityKey id.IdentityKey `json:"identity_key"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/tokens", h.handleMintToken)
}

// handleMintToken issues a token for a local principal. A missing id mints a
// fresh one so test clients can create owners and reviewers on the fly.
func (h *Handler) handleMintToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req tokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if !req.Role.IsValid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "role must be owner or reviewer"))
		return
	}

	subject := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil || parsed == uuid.Nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "id must be a UUID"))
			return
		}
		subject = parsed
	}

	ttl := h.defaultTTL
	if req.TTLSeconds != 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl <= 0 || ttl > MaxTokenTTL {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "ttl_seconds is out of range"))
		return
	}

	who := id.Identity{Role: req.Role, ID: subject, Name: req.Name}
	token, err := h.issuer.GenerateToken(who, ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "mint token failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "token minted",
		"identity", who.Key(),
		"request_id", requestcontext.RequestID(ctx),
	)
	shared.WriteJSON(w, http.StatusCreated, TokenResponse{
		Token:       token,
		IdentityKey: who.Key(),
		ExpiresAt:   requestcontext.Now(ctx).Add(ttl),
	})
}
