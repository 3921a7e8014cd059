package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code", func(t *testing.T) {
		err := New(CodeSlotLocked, "slot 2 is locked")
		assert.True(t, HasCode(err, CodeSlotLocked))
		assert.False(t, HasCode(err, CodeSlotOccupied))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("upload: %w", New(CodeSlotOccupied, "taken"))
		assert.True(t, HasCode(err, CodeSlotOccupied))
	})

	t.Run("matches inner domain code", func(t *testing.T) {
		inner := New(CodeConflict, "version mismatch")
		err := Wrap(inner, CodeSideEffectFailed, "ledger write failed")
		assert.True(t, HasCode(err, CodeSideEffectFailed))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("foreign errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("nil never matches", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWithDetail(t *testing.T) {
	err := New(CodeSlotLocked, "cooling down").WithDetail("retry_after_seconds", 42)
	details := DetailsOf(fmt.Errorf("wrapped: %w", err))
	assert.Equal(t, 42, details["retry_after_seconds"])
}
