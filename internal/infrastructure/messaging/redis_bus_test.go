package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

type collector struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *collector) handle(e shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) snapshot() []shared.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shared.Event(nil), c.events...)
}

func newRedisBus(t *testing.T, addr string) *RedisEventBus {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr, Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })

	bus, err := NewRedisEventBus(context.Background(), client, RedisEventBusConfig{
		Channel: "test:events",
		Local:   NewInMemoryEventBus(InMemoryEventBusConfig{}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_FansOutToOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisBus(t, mr.Addr())
	b := newRedisBus(t, mr.Addr())

	var aLocal, aRemote, bLocal, bRemote collector
	require.NoError(t, a.SubscribeAll(aLocal.handle))
	require.NoError(t, a.SubscribeRemote(shared.EventLessonUpserted, aRemote.handle))
	require.NoError(t, b.SubscribeAll(bLocal.handle))
	require.NoError(t, b.SubscribeRemote(shared.EventLessonUpserted, bRemote.handle))

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	published := shared.LessonUpsertedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLessonUpserted, "go-basics", at, 0).WithCorrelationID("req-7"),
		Created:   true,
	}
	require.NoError(t, a.Publish(published))

	require.Eventually(t, func() bool { return len(bRemote.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	got := bRemote.snapshot()[0]
	assert.Equal(t, published.EventID(), got.EventID())
	assert.Equal(t, shared.EventLessonUpserted, got.EventType())
	assert.Equal(t, "go-basics", got.AggregateID())
	assert.True(t, at.Equal(got.OccurredAt()))
	assert.Equal(t, map[string]interface{}{"created": true}, got.Payload())

	env, err := shared.NewEnvelope(got)
	require.NoError(t, err)
	assert.Equal(t, "req-7", env.CorrelationID)

	assert.Len(t, aLocal.snapshot(), 1)
	assert.Empty(t, bLocal.snapshot())
	// The publisher never receives its own broadcast.
	assert.Never(t, func() bool { return len(aRemote.snapshot()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRedisEventBus_BroadcastFailureAfterLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newRedisBus(t, mr.Addr())

	var local collector
	require.NoError(t, bus.SubscribeAll(local.handle))

	mr.Close()

	err := bus.Publish(levelUp("u1"))
	assert.Error(t, err)
	assert.Len(t, local.snapshot(), 1)
}

func TestRemoteEvent_DecodesEmptyPayload(t *testing.T) {
	ev, err := newRemoteEvent(shared.EventEnvelope{ID: "e1", Type: shared.EventLevelUp})
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.EventID())
	assert.Empty(t, ev.Payload())

	_, err = newRemoteEvent(shared.EventEnvelope{Payload: []byte("[1,2]")})
	assert.Error(t, err)
}
