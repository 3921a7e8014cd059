package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hatchseed/internal/events"
	id "hatchseed/pkg/domain"
)

func newTestRelay(buffer int) (*Relay, *events.Bus) {
	bus := events.NewBus()
	// The client is never dialled by these tests.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	return New(client, bus, WithBuffer(buffer)), bus
}

func TestRelay_ForwardIsNonBlocking(t *testing.T) {
	r, bus := newTestRelay(1)
	key := id.OwnerIdentity(id.OwnerID(uuid.New())).Key()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(key, events.Event{Type: events.TypeSlotModerated})
		bus.Publish(key, events.Event{Type: events.TypeSetReset})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full relay queue")
	}
	assert.Len(t, r.queue, 1)
}

func TestRelay_HandleDeliversRemoteEvents(t *testing.T) {
	r, bus := newTestRelay(4)
	key := id.ReviewerIdentity(id.ReviewerID(uuid.New())).Key()
	conn := bus.Subscribe(key, events.ConnMeta{})

	raw, err := json.Marshal(envelope{Origin: "other-instance", Key: key, Event: events.Event{Type: events.TypeSlotUploaded, Aggregate: "set-1"}})
	require.NoError(t, err)
	r.handle(context.Background(), raw)

	select {
	case evt := <-conn.Events():
		assert.Equal(t, events.TypeSlotUploaded, evt.Type)
		assert.Equal(t, "set-1", evt.Aggregate)
	case <-time.After(time.Second):
		t.Fatal("remote event was not delivered")
	}
	assert.Empty(t, r.queue, "remote events must not be forwarded again")
}

func TestRelay_HandleIgnoresOwnEnvelopes(t *testing.T) {
	r, bus := newTestRelay(4)
	key := id.ReviewerIdentity(id.ReviewerID(uuid.New())).Key()
	conn := bus.Subscribe(key, events.ConnMeta{})

	raw, err := json.Marshal(envelope{Origin: r.InstanceID(), Key: key, Event: events.Event{Type: events.TypeSlotUploaded}})
	require.NoError(t, err)
	r.handle(context.Background(), raw)
	r.handle(context.Background(), []byte("not json"))

	assert.Empty(t, conn.Events())
}
