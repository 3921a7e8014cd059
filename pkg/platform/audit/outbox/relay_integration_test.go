//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/audit/store/postgres"
	"hatchseed/pkg/testutil/containers"
)

func TestRelay_PublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := containers.Postgres(t)
	broker := containers.Kafka(t)
	const topic = "hatchseed.audit.test"

	store := postgres.New(db)
	require.NoError(t, store.Append(ctx, audit.ComplianceEvent{
		Timestamp: time.Now(),
		Subject:   "set:1",
		Action:    audit.EventSetApproved,
		ActorID:   "reviewer:1",
	}.ToEvent()))

	producer, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, EnsureTopic(ctx, producer, topic, 1, 1))

	relay := New(store, producer, SQLTransactor(db), topic)
	n, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not claimed again")

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "set:1", string(records[0].Key))
	assert.Contains(t, string(records[0].Value), `"action":"set_approved"`)
}
