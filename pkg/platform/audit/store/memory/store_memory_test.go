package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "hatchseed/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, audit.Event{Subject: "set-1", Action: "a"}))
	require.NoError(t, store.Append(ctx, audit.Event{Subject: "set-2", Action: "b"}))
	require.NoError(t, store.Append(ctx, audit.Event{Subject: "set-1", Action: "c"}))

	bySubject, err := store.ListBySubject(ctx, "set-1")
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.NotEmpty(t, bySubject[0].ID)
	assert.Equal(t, "a", bySubject[0].Action)

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Action)
	assert.Equal(t, "b", recent[1].Action)

	store.Clear()
	recent, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
