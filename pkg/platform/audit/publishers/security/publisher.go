// Package security buffers security audit events (rejected tokens, role
// violations) and flushes them to the audit store in the background.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "hatchseed/pkg/platform/audit"
)

const (
	defaultFlushInterval = time.Second
	flushBatchSize       = 100
)

// Publisher never blocks the request path.
type Publisher struct {
	store    audit.Store
	buffer   *RingBuffer
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type Option func(*Publisher)

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithCapacity(n int) Option {
	return func(p *Publisher) { p.buffer = NewRingBuffer(n) }
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		buffer:   NewRingBuffer(0),
		interval: defaultFlushInterval,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Emit buffers event for the next flush.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	p.buffer.Enqueue(event)
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			p.flush()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	for {
		batch := p.buffer.DequeueBatch(flushBatchSize)
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToEvent()); err != nil {
				p.logger.Error("security audit write failed", "action", event.Action, "error", err)
			}
		}
		cancel()
	}
}

// Close flushes pending events and stops the background loop.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	return nil
}

// Dropped reports how many events were overwritten before being flushed.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}
