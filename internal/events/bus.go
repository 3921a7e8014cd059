package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hatchseed/internal/events/metrics"
	id "hatchseed/pkg/domain"
)

// DefaultBufferSize is the per-connection queue length.
const DefaultBufferSize = 64

// ConnMeta describes the device behind a connection.
type ConnMeta struct {
	Device      string    `json:"device"`
	ClientIP    string    `json:"client_ip,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Connection is one live subscriber. Events arrive in publish order. When
// the buffer overflows the connection is closed and marked lagged; the
// client is expected to reconnect and pull state again.
type Connection struct {
	ID   string
	Key  id.IdentityKey
	Meta ConnMeta

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	lagged    atomic.Bool
	bus       *Bus
}

// Events yields queued events. It is never closed; select on Done as well.
func (c *Connection) Events() <-chan Event { return c.events }

// Done is closed once the connection has been dropped.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Lagged reports whether the connection was dropped for overflowing.
func (c *Connection) Lagged() bool { return c.lagged.Load() }

// Close unsubscribes the connection. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.bus.remove(c)
	})
}

// ForwardFunc receives every locally published event; the relay uses it to
// reach other instances.
type ForwardFunc func(key id.IdentityKey, evt Event)

// Bus is the in-process subscriber registry.
type Bus struct {
	mu         sync.RWMutex
	conns      map[id.IdentityKey]map[*Connection]struct{}
	bufferSize int
	forward    ForwardFunc
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Bus)

func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		conns:      make(map[id.IdentityKey]map[*Connection]struct{}),
		bufferSize: DefaultBufferSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetForwarder installs the cross-instance hook. Must be called before the
// bus is shared between goroutines.
func (b *Bus) SetForwarder(fn ForwardFunc) {
	b.forward = fn
}

// Subscribe registers a new connection for key. An identity may hold any
// number of connections at once.
func (b *Bus) Subscribe(key id.IdentityKey, meta ConnMeta) *Connection {
	conn := &Connection{
		ID:     uuid.NewString(),
		Key:    key,
		Meta:   meta,
		events: make(chan Event, b.bufferSize),
		done:   make(chan struct{}),
		bus:    b,
	}

	b.mu.Lock()
	set, ok := b.conns[key]
	if !ok {
		set = make(map[*Connection]struct{})
		b.conns[key] = set
	}
	set[conn] = struct{}{}
	b.mu.Unlock()

	b.metrics.ConnectionOpened()
	return conn
}

func (b *Bus) remove(conn *Connection) {
	b.mu.Lock()
	set, ok := b.conns[conn.Key]
	if ok {
		if _, present := set[conn]; present {
			delete(set, conn)
			b.metrics.ConnectionClosed()
		}
		if len(set) == 0 {
			delete(b.conns, conn.Key)
		}
	}
	b.mu.Unlock()
}

// Publish delivers evt to every local connection of key and hands a copy to
// the forwarder.
func (b *Bus) Publish(key id.IdentityKey, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	b.Deliver(key, evt)
	if b.forward != nil {
		b.forward(key, evt)
	}
}

// Deliver enqueues evt on local connections only.
func (b *Bus) Deliver(key id.IdentityKey, evt Event) {
	var lagging []*Connection

	b.mu.RLock()
	set := b.conns[key]
	if len(set) == 0 {
		b.mu.RUnlock()
		b.metrics.IncrementDropped(string(evt.Type))
		return
	}
	for conn := range set {
		select {
		case <-conn.done:
			continue
		default:
		}
		select {
		case conn.events <- evt:
			b.metrics.IncrementDelivered(string(evt.Type))
		default:
			lagging = append(lagging, conn)
		}
	}
	b.mu.RUnlock()

	for _, conn := range lagging {
		conn.lagged.Store(true)
		conn.Close()
		b.metrics.IncrementLagged()
		b.logger.Warn("push connection lagged and was dropped",
			"identity", string(conn.Key),
			"connection_id", conn.ID,
			"device", conn.Meta.Device,
		)
	}
}

// ConnectionCount returns the live connections held for key.
func (b *Bus) ConnectionCount(key id.IdentityKey) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns[key])
}

// Connections lists the device metadata of every live connection for key.
func (b *Bus) Connections(key id.IdentityKey) []ConnMeta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ConnMeta, 0, len(b.conns[key]))
	for conn := range b.conns[key] {
		out = append(out, conn.Meta)
	}
	return out
}
