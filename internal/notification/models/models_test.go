package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "hatchseed/pkg/domain-errors"
)

func TestContentNormalize(t *testing.T) {
	t.Run("fills defaults and cleans media", func(t *testing.T) {
		c := Content{Message: "  flock looks healthy  ", MediaRefs: []string{"m/1.jpg", " m/1.jpg", ""}}
		require.NoError(t, c.Normalize())
		assert.Equal(t, TypeInfo, c.Type)
		assert.Equal(t, PriorityMedium, c.Priority)
		assert.Equal(t, "flock looks healthy", c.Message)
		assert.Equal(t, []string{"m/1.jpg"}, c.MediaRefs)
	})

	t.Run("blank message without media is rejected", func(t *testing.T) {
		c := Content{Message: "   ", MediaRefs: []string{" "}}
		err := c.Normalize()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		c := Content{Type: "shout", Message: "hi"}
		assert.Error(t, c.Normalize())
	})
}

func TestNotificationVisible(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	story := &Notification{IsStory: true, ExpiresAt: &expires}

	assert.True(t, story.Visible(now))
	assert.False(t, story.Visible(expires), "a story disappears at its expiry instant")
	assert.True(t, (&Notification{}).Visible(now.Add(1000*time.Hour)))
}
