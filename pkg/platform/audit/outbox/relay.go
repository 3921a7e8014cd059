// Package outbox ships audit rows written by the Postgres outbox store to
// Kafka. A row is stamped published only after the broker acknowledged it,
// so delivery is at least once.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"hatchseed/pkg/platform/audit/store/postgres"
	txcontext "hatchseed/pkg/platform/tx"
)

const (
	DefaultBatchSize    = 100
	DefaultPollInterval = time.Second
	// DefaultPublishedRetention bounds how long delivered rows stay in the table.
	DefaultPublishedRetention = 24 * time.Hour
)

type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	PurgePublished(ctx context.Context, cutoff time.Time) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
}

// Producer is the part of *kgo.Client the relay uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Transactor runs fn in one database transaction carried by ctx.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// SQLTransactor claims and marks rows inside a single Postgres transaction.
func SQLTransactor(db *sql.DB) Transactor {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txcontext.RunSQL(ctx, db, 0, func(ctx context.Context, _ *sql.Tx) error {
			return fn(ctx)
		})
	}
}

type Relay struct {
	store     Store
	producer  Producer
	runInTx   Transactor
	topic     string
	batchSize int
	interval  time.Duration
	retention time.Duration
	metrics   *Metrics
	logger    *slog.Logger
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func New(store Store, producer Producer, runInTx Transactor, topic string, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		producer:  producer,
		runInTx:   runInTx,
		topic:     topic,
		batchSize: DefaultBatchSize,
		interval:  DefaultPollInterval,
		retention: DefaultPublishedRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox every poll interval until ctx is cancelled. A full
// batch is followed immediately by another drain.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	lastPurge := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for {
			n, err := r.Drain(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		if pending, err := r.store.PendingCount(ctx); err == nil {
			r.metrics.SetPending(pending)
		}
		if time.Since(lastPurge) >= time.Hour {
			lastPurge = time.Now()
			if _, err := r.store.PurgePublished(ctx, time.Now().Add(-r.retention)); err != nil {
				r.logger.WarnContext(ctx, "audit outbox purge failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch and returns how many rows it delivered. If the
// broker rejects any record the transaction rolls back and the whole batch
// is retried on the next drain.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	delivered := 0
	err := r.runInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.ClaimBatch(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		records := make([]*kgo.Record, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			records = append(records, &kgo.Record{
				Topic: r.topic,
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: []kgo.RecordHeader{
					{Key: "event_type", Value: []byte(e.EventType)},
					{Key: "category", Value: []byte(e.AggregateType)},
					{Key: "event_id", Value: []byte(e.ID.String())},
				},
				Timestamp: e.CreatedAt,
			})
			ids = append(ids, e.ID)
		}

		if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			r.metrics.IncrementFailed()
			return fmt.Errorf("produce audit batch: %w", err)
		}
		if err := r.store.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		delivered = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.metrics.AddPublished(delivered)
	return delivered, nil
}

// EnsureTopic creates the audit topic if the cluster does not have it yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}
