package main

import (
	"context"
	"database/sql"
	"errors"

	convservice "hatchseed/internal/conversation/service"
	convstore "hatchseed/internal/conversation/store"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

type conversationPostgresTx struct {
	db    *sql.DB
	store *convstore.PostgresStore
	lock  txcontext.ShardedLock
}

func newConversationPostgresTx(db *sql.DB, store *convstore.PostgresStore) *conversationPostgresTx {
	return &conversationPostgresTx{db: db, store: store}
}

func (t *conversationPostgresTx) RunInTx(ctx context.Context, convID id.ConversationID, fn func(ctx context.Context, store convservice.Store) error) error {
	return t.lock.Run(ctx, convID.String(), func(ctx context.Context) error {
		return txcontext.RunSQL(ctx, t.db, 0, func(ctx context.Context, _ *sql.Tx) error {
			if err := t.store.Lock(ctx, convID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "conversation not found")
				}
				return err
			}
			return fn(ctx, t.store)
		})
	})
}

// sqlTransactor joins every store write inside fn to one Postgres transaction.
func sqlTransactor(db *sql.DB) func(ctx context.Context, fn func(ctx context.Context) error) error {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txcontext.RunSQL(ctx, db, 0, func(ctx context.Context, _ *sql.Tx) error {
			return fn(ctx)
		})
	}
}
