package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hatchseed/internal/ledger"
	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/requestcontext"
)

func seed(t *testing.T, svc *ledger.Service, owner id.OwnerID, reviewer id.ReviewerID) *ledger.Transaction {
	t.Helper()
	var slots [models.SlotCount]models.UploadSlot
	at := time.Now().Add(-time.Hour)
	for i := range slots {
		slots[i] = models.UploadSlot{Index: i, MediaRef: "m", UploadedAt: &at, State: models.StateApproved}
	}
	txn, err := svc.RecordSale(context.Background(), ledger.Sale{
		SetID: id.SetID(uuid.New()), OwnerID: owner, ReviewerID: reviewer, Slots: slots,
	})
	require.NoError(t, err)
	return txn
}

func TestHandler(t *testing.T) {
	svc := ledger.NewService(ledger.NewInMemoryStore())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	owner := id.Identity{Role: id.RoleOwner, ID: uuid.New()}
	reviewer := id.Identity{Role: id.RoleReviewer, ID: uuid.New()}
	txn := seed(t, svc, owner.OwnerID(), reviewer.ReviewerID())

	r := chi.NewRouter()
	h.RegisterOwnerRoutes(r)
	r.Route("/review", h.RegisterReviewerRoutes)

	do := func(who id.Identity, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(requestcontext.WithIdentity(req.Context(), who))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("owner lists own transactions", func(t *testing.T) {
		rec := do(owner, "/transactions")
		require.Equal(t, http.StatusOK, rec.Code)
		var body listResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Transactions, 1)
		assert.Equal(t, txn.ID, body.Transactions[0].ID)
	})

	t.Run("reviewer lists reviewed transactions", func(t *testing.T) {
		rec := do(reviewer, "/review/transactions")
		require.Equal(t, http.StatusOK, rec.Code)
		var body listResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body.Transactions, 1)
	})

	t.Run("stranger cannot read a transaction", func(t *testing.T) {
		stranger := id.Identity{Role: id.RoleOwner, ID: uuid.New()}
		rec := do(stranger, "/transactions/"+txn.ID.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner reads a transaction", func(t *testing.T) {
		rec := do(owner, "/transactions/"+txn.ID.String())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := do(owner, "/transactions/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
