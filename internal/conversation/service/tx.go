package service

import (
	"context"

	id "hatchseed/pkg/domain"
	txcontext "hatchseed/pkg/platform/tx"
)

// ConversationTx serialises appends and closes on one conversation.
type ConversationTx interface {
	RunInTx(ctx context.Context, convID id.ConversationID, fn func(ctx context.Context, store Store) error) error
}

type shardedConversationTx struct {
	lock  txcontext.ShardedLock
	store Store
}

func NewShardedTx(store Store) ConversationTx {
	return &shardedConversationTx{store: store}
}

func (t *shardedConversationTx) RunInTx(ctx context.Context, convID id.ConversationID, fn func(ctx context.Context, store Store) error) error {
	return t.lock.Run(ctx, convID.String(), func(ctx context.Context) error {
		return fn(ctx, t.store)
	})
}
