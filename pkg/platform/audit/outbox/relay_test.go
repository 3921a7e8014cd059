package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"hatchseed/pkg/platform/audit/store/postgres"
)

type fakeStore struct {
	pending   []postgres.OutboxEntry
	published []uuid.UUID
}

func (s *fakeStore) ClaimBatch(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	if len(s.pending) < limit {
		limit = len(s.pending)
	}
	return append([]postgres.OutboxEntry(nil), s.pending[:limit]...), nil
}

func (s *fakeStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.published = append(s.published, ids...)
	done := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	kept := s.pending[:0]
	for _, e := range s.pending {
		if !done[e.ID] {
			kept = append(kept, e)
		}
	}
	s.pending = kept
	return nil
}

func (s *fakeStore) PurgePublished(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *fakeStore) PendingCount(context.Context) (int64, error) {
	return int64(len(s.pending)), nil
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func passthrough(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func entries(n int) []postgres.OutboxEntry {
	out := make([]postgres.OutboxEntry, n)
	for i := range out {
		out[i] = postgres.OutboxEntry{
			ID:            uuid.New(),
			AggregateType: "compliance",
			AggregateID:   "set-" + string(rune('a'+i)),
			EventType:     "set_approved",
			Payload:       []byte(`{"action":"set_approved"}`),
			CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func TestDrain(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("publishes a batch and marks it", func(t *testing.T) {
		store := &fakeStore{pending: entries(3)}
		producer := &fakeProducer{}
		relay := New(store, producer, passthrough, "hatchseed.audit", WithBatchSize(2), WithLogger(logger))

		n, err := relay.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, producer.records, 2)
		assert.Equal(t, "hatchseed.audit", producer.records[0].Topic)
		assert.Equal(t, "set-a", string(producer.records[0].Key))
		assert.Len(t, store.pending, 1)

		n, err = relay.Drain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Empty(t, store.pending)
	})

	t.Run("broker failure leaves rows pending", func(t *testing.T) {
		store := &fakeStore{pending: entries(2)}
		producer := &fakeProducer{err: errors.New("broker unavailable")}
		relay := New(store, producer, passthrough, "hatchseed.audit", WithLogger(logger))

		_, err := relay.Drain(context.Background())
		require.Error(t, err)
		assert.Len(t, store.pending, 2)
		assert.Empty(t, store.published)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		relay := New(&fakeStore{}, &fakeProducer{}, passthrough, "hatchseed.audit", WithLogger(logger))
		n, err := relay.Drain(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
