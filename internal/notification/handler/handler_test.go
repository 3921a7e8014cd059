package handler

import (
	"context"
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

	"hatchseed/internal/notification/models"
	"hatchseed/internal/notification/service"
	"hatchseed/internal/notification/store"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/testutil"
)

type fixedOwners []id.OwnerID

func (f fixedOwners) OwnersForReviewer(context.Context, id.ReviewerID) ([]id.OwnerID, error) {
	return f, nil
}

func TestNotificationRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	owner := id.Identity{Role: id.RoleOwner, ID: uuid.New(), Name: "Olu"}
	reviewer := id.Identity{Role: id.RoleReviewer, ID: uuid.New(), Name: "Rae"}
	svc := service.New(store.NewInMemoryStore(), fixedOwners{owner.OwnerID()}, service.WithLogger(logger))
	h := New(svc, logger)

	r := chi.NewRouter()
	h.Register(r)
	r.Route("/review", h.RegisterReviewerRoutes)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	do := func(who id.Identity, req *http.Request) *httptest.ResponseRecorder {
		req = testutil.AtTime(testutil.AsIdentity(req, who), now)
		return testutil.DoRequest(r, req)
	}

	var posted service.BroadcastResult
	t.Run("reviewer broadcasts a story", func(t *testing.T) {
		rec := do(reviewer, testutil.NewJSONRequest(t, http.MethodPost, "/review/broadcasts", map[string]any{
			"target":     "all",
			"message":    "New feed arrives Monday",
			"priority":   "high",
			"media_refs": []string{"media/feed.jpg"},
		}))
		require.Equal(t, http.StatusCreated, rec.Code)
		posted = *testutil.UnmarshalResponse[service.BroadcastResult](t, rec)
		assert.Equal(t, 1, posted.Recipients)
		assert.True(t, posted.IsStory)
	})

	t.Run("owner sees it in feed and stories", func(t *testing.T) {
		rec := do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications"))
		require.Equal(t, http.StatusOK, rec.Code)
		feed := testutil.UnmarshalResponse[listResponse](t, rec)
		require.Len(t, feed.Notifications, 1)
		assert.Equal(t, models.PriorityHigh, feed.Notifications[0].Priority)

		rec = do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications/stories"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, testutil.UnmarshalResponse[listResponse](t, rec).Notifications, 1)
	})

	t.Run("unread count drops after read-all", func(t *testing.T) {
		rec := do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications/unread-count"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, testutil.UnmarshalResponse[countResponse](t, rec).Count)

		rec = do(owner, testutil.NewRequest(t, http.MethodPost, "/notifications/read-all"))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications/unread-count"))
		assert.Equal(t, 0, testutil.UnmarshalResponse[countResponse](t, rec).Count)
	})

	t.Run("history lists the broadcast", func(t *testing.T) {
		rec := do(reviewer, testutil.NewRequest(t, http.MethodGet, "/review/broadcasts"))
		require.Equal(t, http.StatusOK, rec.Code)
		history := testutil.UnmarshalResponse[historyResponse](t, rec)
		require.Len(t, history.Broadcasts, 1)
		assert.Equal(t, posted.BroadcastID, history.Broadcasts[0].BroadcastID)
	})

	t.Run("bad input", func(t *testing.T) {
		rec := do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications?limit=zero"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(reviewer, testutil.NewJSONRequest(t, http.MethodPost, "/review/broadcasts", map[string]any{
			"target": "all",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(reviewer, testutil.NewRequest(t, http.MethodDelete, "/review/broadcasts/not-a-uuid"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("retract removes it from the feed", func(t *testing.T) {
		rec := do(reviewer, testutil.NewRequest(t, http.MethodDelete, "/review/broadcasts/"+posted.BroadcastID.String()))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, testutil.UnmarshalResponse[countResponse](t, rec).Count)

		rec = do(reviewer, testutil.NewRequest(t, http.MethodDelete, "/review/broadcasts/"+posted.BroadcastID.String()))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(owner, testutil.NewRequest(t, http.MethodGet, "/notifications"))
		assert.Empty(t, testutil.UnmarshalResponse[listResponse](t, rec).Notifications)
	})
}
