package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/audit/store/memory"
)

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	buf := NewRingBuffer(2)
	buf.Enqueue(audit.SecurityEvent{Subject: "a"})
	buf.Enqueue(audit.SecurityEvent{Subject: "b"})
	buf.Enqueue(audit.SecurityEvent{Subject: "c"})

	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, int64(1), buf.Dropped())

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Subject)
	assert.Equal(t, "c", batch[1].Subject)
	assert.Nil(t, buf.DequeueBatch(1))
}

func TestPublisher_FlushesOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	pub.Emit(context.Background(), audit.SecurityEvent{Subject: "ip:10.0.0.1", Action: audit.EventAuthFailed, Reason: "expired token"})
	require.NoError(t, pub.Close())

	events, err := store.ListBySubject(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, string(audit.SeverityWarning), events[0].Decision)
}
