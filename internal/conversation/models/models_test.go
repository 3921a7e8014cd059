package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
)

func newConversation(t *testing.T, now time.Time) (*Conversation, id.Identity, id.Identity) {
	t.Helper()
	owner := id.OwnerIdentity(id.OwnerID(uuid.New()))
	reviewer := id.ReviewerIdentity(id.ReviewerID(uuid.New()))
	c, err := New(id.ConversationID(uuid.New()), owner.OwnerID(), reviewer.ReviewerID(), "Feed delivery", owner, "When is the next drop?", now)
	require.NoError(t, err)
	return c, owner, reviewer
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first message gets seq 1", func(t *testing.T) {
		c, owner, _ := newConversation(t, now)
		require.Len(t, c.Messages, 1)
		assert.Equal(t, int64(1), c.Messages[0].Seq)
		assert.Equal(t, id.RoleOwner, c.Messages[0].Sender)
		assert.Equal(t, owner.ID.String(), c.Messages[0].SenderID)
		assert.Equal(t, StatusOpen, c.Status)
	})

	t.Run("blank subject", func(t *testing.T) {
		owner := id.OwnerIdentity(id.OwnerID(uuid.New()))
		_, err := New(id.ConversationID(uuid.New()), owner.OwnerID(), id.ReviewerID(uuid.New()), "  ", owner, "hi", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("blank body", func(t *testing.T) {
		owner := id.OwnerIdentity(id.OwnerID(uuid.New()))
		_, err := New(id.ConversationID(uuid.New()), owner.OwnerID(), id.ReviewerID(uuid.New()), "s", owner, " ", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestAppendAndClose(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c, owner, reviewer := newConversation(t, now)

	msg, err := c.Append(reviewer, "Thursday", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), msg.Seq)
	assert.Equal(t, now.Add(time.Minute), c.UpdatedAt)

	_, err = c.Append(owner, strings.Repeat("x", MaxBodyLength+1), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.True(t, c.Close(now.Add(2*time.Minute)))
	assert.False(t, c.Close(now.Add(3*time.Minute)), "second close is a no-op")
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, now.Add(2*time.Minute), *c.ClosedAt)

	_, err = c.Append(owner, "thanks", now.Add(4*time.Minute))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConversationClosed))
	assert.Len(t, c.Messages, 2)
}

func TestUnreadFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c, owner, reviewer := newConversation(t, now)
	_, err := c.Append(reviewer, "a", now)
	require.NoError(t, err)
	_, err = c.Append(reviewer, "b", now)
	require.NoError(t, err)
	_, err = c.Append(owner, "c", now)
	require.NoError(t, err)

	assert.Equal(t, 2, c.UnreadFor(id.RoleReviewer, 0), "own messages never count")
	assert.Equal(t, 2, c.UnreadFor(id.RoleOwner, 0))
	assert.Equal(t, 1, c.UnreadFor(id.RoleOwner, 2))
	assert.Equal(t, 0, c.UnreadFor(id.RoleOwner, c.LastSeq()))
}

func TestParticipants(t *testing.T) {
	c, owner, reviewer := newConversation(t, time.Now())
	assert.True(t, c.IsParticipant(owner))
	assert.True(t, c.IsParticipant(reviewer))
	assert.False(t, c.IsParticipant(id.OwnerIdentity(id.OwnerID(uuid.New()))))
	assert.Equal(t, reviewer.Key(), c.Counterpart(owner).Key())
	assert.Equal(t, owner.Key(), c.Counterpart(reviewer).Key())
}
