package main

import (
	"context"
	"database/sql"
	"errors"

	slotsservice "hatchseed/internal/slots/service"
	slotsstore "hatchseed/internal/slots/store"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

// slotsPostgresTx holds the in-process shard for the set, so commit hooks
// publish in commit order, and a row lock so other instances wait too.
type slotsPostgresTx struct {
	db    *sql.DB
	store *slotsstore.PostgresStore
	lock  txcontext.ShardedLock
}

func newSlotsPostgresTx(db *sql.DB, store *slotsstore.PostgresStore) *slotsPostgresTx {
	return &slotsPostgresTx{db: db, store: store}
}

func (t *slotsPostgresTx) RunInTx(ctx context.Context, setID id.SetID, fn func(ctx context.Context, store slotsservice.Store) error) error {
	return t.lock.Run(ctx, setID.String(), func(ctx context.Context) error {
		return txcontext.RunSQL(ctx, t.db, 0, func(ctx context.Context, _ *sql.Tx) error {
			if err := t.store.Lock(ctx, setID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "set not found")
				}
				return err
			}
			return fn(ctx, t.store)
		})
	})
}
