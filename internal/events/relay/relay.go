// Package relay carries events between service instances over Redis pub/sub
// so an identity connected to instance B still hears what instance A
// published. Delivery stays best effort: a Redis outage drops events.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"hatchseed/internal/events"
	"hatchseed/internal/events/metrics"
	id "hatchseed/pkg/domain"
)

const (
	DefaultChannel = "hatchseed:events"
	defaultBuffer  = 1024
)

type envelope struct {
	Origin string         `json:"origin"`
	Key    id.IdentityKey `json:"key"`
	Event  events.Event   `json:"event"`
}

type outbound struct {
	key id.IdentityKey
	evt events.Event
}

// Relay forwards local publishes to Redis and delivers remote ones locally.
type Relay struct {
	client     *redis.Client
	bus        *events.Bus
	channel    string
	instanceID string
	queue      chan outbound
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Relay)

func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

func WithBuffer(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan outbound, n)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// New builds a relay and installs it as bus's forwarder.
func New(client *redis.Client, bus *events.Bus, opts ...Option) *Relay {
	r := &Relay{
		client:     client,
		bus:        bus,
		channel:    DefaultChannel,
		instanceID: uuid.NewString(),
		queue:      make(chan outbound, defaultBuffer),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	bus.SetForwarder(r.Forward)
	return r
}

// InstanceID identifies this process on the channel.
func (r *Relay) InstanceID() string { return r.instanceID }

// Forward queues evt for Redis without blocking. A full queue drops it.
func (r *Relay) Forward(key id.IdentityKey, evt events.Event) {
	select {
	case r.queue <- outbound{key: key, evt: evt}:
	default:
		r.metrics.IncrementRelayError("overflow")
	}
}

// Run subscribes to the channel and drains the outbound queue until ctx is
// cancelled. A single publisher goroutine keeps forwarded events in order.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.publishLoop(ctx)
		return nil
	})
	g.Go(func() error {
		r.receiveLoop(ctx, sub.Channel())
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-r.queue:
			raw, err := json.Marshal(envelope{Origin: r.instanceID, Key: out.key, Event: out.evt})
			if err != nil {
				r.metrics.IncrementRelayError("encode")
				r.logger.ErrorContext(ctx, "failed to encode relayed event", "type", out.evt.Type, "error", err)
				continue
			}
			if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
				r.metrics.IncrementRelayError("publish")
				r.logger.WarnContext(ctx, "failed to relay event", "type", out.evt.Type, "error", err)
			}
		}
	}
}

func (r *Relay) receiveLoop(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handle(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.metrics.IncrementRelayError("decode")
		r.logger.WarnContext(ctx, "discarding malformed relay envelope", "error", err)
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	r.bus.Deliver(env.Key, env.Event)
}
