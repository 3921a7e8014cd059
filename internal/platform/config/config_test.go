package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 60*time.Second, cfg.Slots.GraceWindow)
		assert.Equal(t, 5*time.Minute, cfg.Slots.UnlockDelay)
		assert.Equal(t, 64, cfg.Events.ConnectionBuffer)
		assert.Equal(t, 10*24*time.Hour, cfg.Retention.Notifications)
		assert.Empty(t, cfg.Database.URL)
		assert.NotEmpty(t, cfg.JWT.SigningKey)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SLOT_GRACE_WINDOW", "2s")
		t.Setenv("SLOT_UNLOCK_DELAY", "3s")
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
		t.Setenv("EVENTS_CONNECTION_BUFFER", "8")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Slots.GraceWindow)
		assert.Equal(t, 3*time.Second, cfg.Slots.UnlockDelay)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 8, cfg.Events.ConnectionBuffer)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		t.Setenv("SLOT_GRACE_WINDOW", "soon")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SLOT_GRACE_WINDOW")
	})

	t.Run("production requires a signing key", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("JWT_SIGNING_KEY", "")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("tracing sample ratio is bounded", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "1.5")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OTEL_TRACES_SAMPLE_RATIO")
	})

	t.Run("tracing disabled by default", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Empty(t, cfg.Tracing.Endpoint)
		assert.Equal(t, "hatchseed", cfg.Tracing.ServiceName)
		assert.Empty(t, cfg.AdminToken)
	})
}
