package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "hatchseed/pkg/domain-errors"
)

// DefaultTimeout bounds a transaction when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// numShards is the number of lock shards in a ShardedLock.
const numShards = 128

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func aborted(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
}

// ShardedLock serialises work per key using a fixed pool of mutexes.
// Keys hashing to the same shard also serialise against each other.
type ShardedLock struct {
	shards  [numShards]sync.Mutex
	Timeout time.Duration
}

// Run executes fn while holding the shard for key.
func (l *ShardedLock) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	ctx, cancel := withDefaultTimeout(ctx, l.Timeout)
	defer cancel()

	shard := &l.shards[hashKey(key)%numShards]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	ctx, hooks := withHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	hooks.run()
	return nil
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// RunSQL runs fn inside a database transaction. The transaction is placed in
// the context handed to fn so every store sharing it joins the same commit.
func RunSQL(ctx context.Context, db *sql.DB, timeout time.Duration, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	ctx, cancel := withDefaultTimeout(ctx, timeout)
	defer cancel()

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	txCtx, hooks := withHooks(WithTx(ctx, sqlTx))
	if err := fn(txCtx, sqlTx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return err
	}
	hooks.run()
	return nil
}
