// Package ops provides a non-blocking, sampled audit tracker for routine
// activity. Losing an ops event is acceptable; slowing a request is not.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "hatchseed/pkg/platform/audit"
)

const (
	defaultBufferSize = 1024
	writeTimeout      = 2 * time.Second
)

// Tracker buffers ops events and persists them from one background goroutine.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger

	queue  chan audit.Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) { t.breaker = cb }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithBufferSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.queue = make(chan audit.Event, n)
		}
	}
}

// New starts a tracker. Call Close to flush and stop it.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1),
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  slog.Default(),
		queue:   make(chan audit.Event, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Track enqueues event without blocking.
func (t *Tracker) Track(event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		t.metrics.IncSampled()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.metrics.IncDropped()
		return
	}
	select {
	case t.queue <- event.ToEvent():
	default:
		t.metrics.IncDropped()
	}
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for event := range t.queue {
		t.persist(event)
	}
}

func (t *Tracker) persist(event audit.Event) {
	if !t.breaker.Allow() {
		t.metrics.IncCircuitBreakerDropped()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := t.store.Append(ctx, event); err != nil {
		t.breaker.RecordFailure()
		t.metrics.IncPersistFailures()
		t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
		t.logger.Warn("ops audit write failed", "action", event.Action, "error", err)
		return
	}
	t.breaker.RecordSuccess()
	t.metrics.SetCircuitBreakerState(false)
	t.metrics.IncTracked()
}

// Close stops accepting events and waits for the queue to drain.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}
