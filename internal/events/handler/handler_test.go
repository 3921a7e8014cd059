package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	convmodels "hatchseed/internal/conversation/models"
	"hatchseed/internal/events"
	slotmodels "hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/requestcontext"
	"hatchseed/pkg/testutil"
)

type stubSets struct {
	owner    []slotmodels.SetView
	reviewer []slotmodels.SetView
}

func (s stubSets) ListForOwner(context.Context, id.OwnerID) ([]slotmodels.SetView, error) {
	return s.owner, nil
}

func (s stubSets) ListForReviewer(context.Context, id.ReviewerID) ([]slotmodels.SetView, error) {
	return s.reviewer, nil
}

type stubConversations struct {
	open   []convmodels.Summary
	unread int
	err    error
}

func (s stubConversations) List(_ context.Context, _ id.Identity, status convmodels.Status) ([]convmodels.Summary, error) {
	if status != convmodels.StatusOpen {
		return nil, errors.New("snapshot only lists open conversations")
	}
	return s.open, s.err
}

func (s stubConversations) UnreadCount(context.Context, id.Identity) (int, error) {
	return s.unread, nil
}

type stubFeed int

// gatedFeed holds every UnreadCount call until release is closed or the
// caller's context ends.
type gatedFeed struct {
	entered chan struct{}
	release chan struct{}
}

func (f gatedFeed) UnreadCount(ctx context.Context, _ id.Identity) (int, error) {
	f.entered <- struct{}{}
	select {
	case <-f.release:
		return 1, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f stubFeed) UnreadCount(context.Context, id.Identity) (int, error) {
	return int(f), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withIdentity(who id.Identity, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(r.Context(), who)))
	})
}

func TestSync(t *testing.T) {
	owner := id.Identity{Role: id.RoleOwner, ID: uuid.New()}
	sets := stubSets{owner: []slotmodels.SetView{{SlotSet: &slotmodels.SlotSet{
		ID:         id.SetID(uuid.New()),
		RecordName: "Coop A",
		OwnerID:    owner.OwnerID(),
		ReviewerID: id.ReviewerID(uuid.New()),
	}}}}
	convs := stubConversations{open: []convmodels.Summary{{Unread: 2}}, unread: 2}
	h := New(events.NewBus(), sets, convs, stubFeed(5), discardLogger())

	r := chi.NewRouter()
	h.Register(r)

	t.Run("returns sets, open conversations and counters", func(t *testing.T) {
		req := testutil.AsIdentity(testutil.NewRequest(t, http.MethodGet, "/sync"), owner)
		rec := testutil.DoRequest(r, req)
		require.Equal(t, http.StatusOK, rec.Code)

		snap := testutil.UnmarshalResponse[Snapshot](t, rec)
		require.Len(t, snap.Sets, 1)
		assert.Equal(t, "Coop A", snap.Sets[0].RecordName)
		assert.Len(t, snap.Conversations, 1)
		assert.Equal(t, Unread{Messages: 2, Notifications: 5}, snap.Unread)
	})

	t.Run("failure surfaces as internal error", func(t *testing.T) {
		failing := New(events.NewBus(), sets, stubConversations{err: errors.New("db down")}, stubFeed(0), discardLogger())
		r := chi.NewRouter()
		failing.Register(r)

		req := testutil.AsIdentity(testutil.NewRequest(t, http.MethodGet, "/sync"), owner)
		rec := testutil.DoRequest(r, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSync_RequestsDoNotShareSnapshots(t *testing.T) {
	owner := id.Identity{Role: id.RoleOwner, ID: uuid.New()}
	feed := gatedFeed{entered: make(chan struct{}, 2), release: make(chan struct{})}
	h := New(events.NewBus(), stubSets{}, stubConversations{}, feed, discardLogger())
	r := chi.NewRouter()
	h.Register(r)

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan int, 1)
	go func() {
		req := testutil.AsIdentity(testutil.NewRequest(t, http.MethodGet, "/sync").WithContext(cancelledCtx), owner)
		cancelled <- testutil.DoRequest(r, req).Code
	}()
	<-feed.entered

	live := make(chan int, 1)
	go func() {
		req := testutil.AsIdentity(testutil.NewRequest(t, http.MethodGet, "/sync"), owner)
		live <- testutil.DoRequest(r, req).Code
	}()
	select {
	case <-feed.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("second sync never built its own snapshot")
	}

	cancel()
	assert.NotEqual(t, http.StatusOK, <-cancelled)
	close(feed.release)
	assert.Equal(t, http.StatusOK, <-live)
}

func TestStream(t *testing.T) {
	who := id.Identity{Role: id.RoleReviewer, ID: uuid.New()}
	bus := events.NewBus(events.WithLogger(discardLogger()))
	h := New(bus, stubSets{}, stubConversations{}, stubFeed(0), discardLogger())

	r := chi.NewRouter()
	h.Register(r)
	srv := httptest.NewServer(withIdentity(who, r))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bus.ConnectionCount(who.Key()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	t.Run("published events arrive in order", func(t *testing.T) {
		bus.Publish(who.Key(), events.Event{Type: events.TypeSlotUploaded, Aggregate: "set-1"})
		bus.Publish(who.Key(), events.Event{Type: events.TypeSlotDeleted, Aggregate: "set-1"})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var first, second events.Event
		require.NoError(t, websocket.JSON.Receive(conn, &first))
		require.NoError(t, websocket.JSON.Receive(conn, &second))
		assert.Equal(t, events.TypeSlotUploaded, first.Type)
		assert.Equal(t, events.TypeSlotDeleted, second.Type)
	})

	t.Run("connections lists the device", func(t *testing.T) {
		rec := testutil.DoRequest(withIdentity(who, r), testutil.NewRequest(t, http.MethodGet, "/events/connections"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, testutil.UnmarshalResponse[connectionsResponse](t, rec).Connections, 1)
	})

	t.Run("closing the socket unsubscribes", func(t *testing.T) {
		require.NoError(t, conn.Close())
		require.Eventually(t, func() bool {
			return bus.ConnectionCount(who.Key()) == 0
		}, 2*time.Second, 5*time.Millisecond)
	})
}
