package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "hatchseed/pkg/domain-errors"
)

func TestIdentityKey(t *testing.T) {
	owner := OwnerID(uuid.New())
	reviewer := ReviewerID(uuid.New())

	ownerKey := OwnerIdentity(owner).Key()
	reviewerKey := ReviewerIdentity(reviewer).Key()
	assert.Equal(t, IdentityKey("owner:"+owner.String()), ownerKey)
	assert.Equal(t, IdentityKey("reviewer:"+reviewer.String()), reviewerKey)

	t.Run("same uuid under different roles yields distinct keys", func(t *testing.T) {
		shared := uuid.New()
		assert.NotEqual(t,
			OwnerIdentity(OwnerID(shared)).Key(),
			ReviewerIdentity(ReviewerID(shared)).Key())
	})

	t.Run("round-trips through ParseIdentityKey", func(t *testing.T) {
		parsed, err := ParseIdentityKey(string(reviewerKey))
		require.NoError(t, err)
		assert.Equal(t, RoleReviewer, parsed.Role)
		assert.Equal(t, reviewer, parsed.ReviewerID())
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := ParseIdentityKey("admin:" + uuid.NewString())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects missing separator", func(t *testing.T) {
		_, err := ParseIdentityKey(uuid.NewString())
		require.Error(t, err)
	})
}
