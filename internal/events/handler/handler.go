// Package handler exposes the push channel and the pull snapshot that
// clients fall back to after a reconnect or a lagged drop.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"

	convmodels "hatchseed/internal/conversation/models"
	"hatchseed/internal/events"
	slotmodels "hatchseed/internal/slots/models"
	"hatchseed/internal/transport/http/shared"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/requestcontext"
)

const writeTimeout = 10 * time.Second

type SetLister interface {
	ListForOwner(ctx context.Context, owner id.OwnerID) ([]slotmodels.SetView, error)
	ListForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]slotmodels.SetView, error)
}

type ConversationLister interface {
	List(ctx context.Context, who id.Identity, status convmodels.Status) ([]convmodels.Summary, error)
	UnreadCount(ctx context.Context, who id.Identity) (int, error)
}

type FeedCounter interface {
	UnreadCount(ctx context.Context, who id.Identity) (int, error)
}

// Snapshot is everything a client needs to rebuild its view from scratch.
type Snapshot struct {
	Sets          []slotmodels.SetView `json:"sets"`
	Conversations []convmodels.Summary `json:"conversations"`
	Unread        Unread               `json:"unread"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

type Unread struct {
	Messages      int `json:"messages"`
	Notifications int `json:"notifications"`
}

type connectionsResponse struct {
	Connections []events.ConnMeta `json:"connections"`
}

type Handler struct {
	bus           *events.Bus
	sets          SetLister
	conversations ConversationLister
	feed          FeedCounter
	logger        *slog.Logger
}

func New(bus *events.Bus, sets SetLister, conversations ConversationLister, feed FeedCounter, logger *slog.Logger) *Handler {
	return &Handler{
		bus:           bus,
		sets:          sets,
		conversations: conversations,
		feed:          feed,
		logger:        logger,
	}
}

// Register mounts the push and pull routes. Both expect an authenticated
// identity in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events/ws", h.handleStream)
	r.Get("/events/connections", h.handleConnections)
	r.Get("/sync", h.handleSync)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := requestcontext.Identity(ctx)
	meta := events.ConnMeta{
		Device:      events.ParseUserAgent(r.UserAgent()),
		ClientIP:    requestcontext.ClientIP(ctx),
		ConnectedAt: requestcontext.Now(ctx),
	}
	websocket.Handler(func(ws *websocket.Conn) {
		h.stream(ws, who, meta)
	}).ServeHTTP(w, r)
}

func (h *Handler) stream(ws *websocket.Conn, who id.Identity, meta events.ConnMeta) {
	conn := h.bus.Subscribe(who.Key(), meta)
	defer func() {
		conn.Close()
		_ = ws.Close()
	}()
	h.logger.Info("push connection opened",
		"identity", who.Key(),
		"connection_id", conn.ID,
		"device", meta.Device,
	)

	// Inbound frames are ignored; a read error means the client went away.
	go func() {
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case evt := <-conn.Events():
			if err := h.send(ws, evt); err != nil {
				return
			}
		case <-conn.Done():
			if conn.Lagged() {
				_ = h.send(ws, events.Event{Type: events.TypeLagged, OccurredAt: time.Now()})
			}
			h.logger.Info("push connection closed",
				"identity", who.Key(),
				"connection_id", conn.ID,
				"lagged", conn.Lagged(),
			)
			return
		}
	}
}

func (h *Handler) send(ws *websocket.Conn, evt events.Event) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(ws, evt)
}

func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	who := requestcontext.Identity(r.Context())
	shared.WriteJSON(w, http.StatusOK, connectionsResponse{Connections: h.bus.Connections(who.Key())})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := requestcontext.Identity(ctx)

	// Each request reads its own snapshot so a client sees its own writes.
	snap, err := h.snapshot(ctx, who)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build sync snapshot",
			"identity", who.Key(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) snapshot(ctx context.Context, who id.Identity) (*Snapshot, error) {
	snap := &Snapshot{GeneratedAt: requestcontext.Now(ctx)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		switch who.Role {
		case id.RoleOwner:
			snap.Sets, err = h.sets.ListForOwner(gctx, who.OwnerID())
		case id.RoleReviewer:
			snap.Sets, err = h.sets.ListForReviewer(gctx, who.ReviewerID())
		default:
			err = dErrors.New(dErrors.CodeForbidden, "unknown role")
		}
		return err
	})
	g.Go(func() error {
		var err error
		snap.Conversations, err = h.conversations.List(gctx, who, convmodels.StatusOpen)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Unread.Messages, err = h.conversations.UnreadCount(gctx, who)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Unread.Notifications, err = h.feed.UnreadCount(gctx, who)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
