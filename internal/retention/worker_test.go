package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var seen time.Time
	w := NewWorker(time.Hour, map[string]Purger{
		"notifications": PurgeFunc(func(_ context.Context, at time.Time) (int, error) {
			seen = at
			return 3, nil
		}),
		"conversations": PurgeFunc(func(context.Context, time.Time) (int, error) {
			return 0, errors.New("db down")
		}),
	},
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	removed := w.RunOnce(context.Background())
	assert.Equal(t, map[string]int{"notifications": 3}, removed, "a failing target does not stop the others")
	assert.True(t, seen.Equal(now))
}

func TestRunStopsOnCancel(t *testing.T) {
	var sweeps atomic.Int32
	w := NewWorker(5*time.Millisecond, map[string]Purger{
		"stories": PurgeFunc(func(context.Context, time.Time) (int, error) {
			sweeps.Add(1)
			return 0, nil
		}),
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeps.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
