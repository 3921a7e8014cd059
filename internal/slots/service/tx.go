package service

import (
	"context"

	id "hatchseed/pkg/domain"
	txcontext "hatchseed/pkg/platform/tx"
)

// SetTx serialises every mutation on one set. The callback receives the
// store it must use and a context that collaborators join, so everything
// written inside commits or rolls back together. Eligibility checks run
// inside the callback, after the lock is held.
type SetTx interface {
	RunInTx(ctx context.Context, setID id.SetID, fn func(ctx context.Context, store Store) error) error
}

// shardedSetTx is the in-memory SetTx: one of 128 mutexes chosen by the set ID.
type shardedSetTx struct {
	lock  txcontext.ShardedLock
	store Store
}

// NewShardedTx returns a SetTx for in-memory stores.
func NewShardedTx(store Store) SetTx {
	return &shardedSetTx{store: store}
}

func (t *shardedSetTx) RunInTx(ctx context.Context, setID id.SetID, fn func(ctx context.Context, store Store) error) error {
	return t.lock.Run(ctx, setID.String(), func(ctx context.Context) error {
		return fn(ctx, t.store)
	})
}
