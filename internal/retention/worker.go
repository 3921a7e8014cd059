// Package retention periodically removes conversations, notifications and
// stories that have outlived their retention period.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes expired records as of now and reports how many it removed.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// PurgeFunc adapts a function to Purger.
type PurgeFunc func(ctx context.Context, now time.Time) (int, error)

func (f PurgeFunc) Purge(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}

type Worker struct {
	purgers  map[string]Purger
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

type Option func(*Worker)

func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		w.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(interval time.Duration, purgers map[string]Purger, opts ...Option) *Worker {
	w := &Worker{
		purgers:  purgers,
		interval: interval,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
// A failing purger is logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce runs every purger and returns the number of records each removed.
func (w *Worker) RunOnce(ctx context.Context) map[string]int {
	now := w.clock()
	removed := make(map[string]int, len(w.purgers))
	for name, p := range w.purgers {
		n, err := p.Purge(ctx, now)
		if err != nil {
			w.logger.ErrorContext(ctx, "retention sweep failed", "target", name, "error", err)
			continue
		}
		removed[name] = n
	}
	return removed
}
