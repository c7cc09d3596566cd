package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// Fans events out to every instance over a Redis Pub/Sub channel.
// Events published here reach local subscribers directly. Events published by
// other instances only reach handlers registered with SubscribeRemote, so
// per-instance consumers such as metrics never count the same event twice.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEventChannel is the Pub/Sub channel used when none is configured.
const DefaultEventChannel = "tracker:events"

// RedisEventBusConfig configures RedisEventBus.
type RedisEventBusConfig struct {
	// Channel - Pub/Sub channel name.
	Channel string

	// Local - bus for in-process delivery. nil creates a default one.
	Local *InMemoryEventBus

	// PublishTimeout - bound on one PUBLISH round trip.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// RedisEventBus implements shared.EventBus across instances.
type RedisEventBus struct {
	client     redis.UniversalClient
	pubsub     *redis.PubSub
	channel    string
	instanceID string
	timeout    time.Duration

	local  *InMemoryEventBus
	remote *InMemoryEventBus
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// wireMessage is what travels over the channel.
type wireMessage struct {
	InstanceID string               `json:"instance_id"`
	Event      shared.EventEnvelope `json:"event"`
}

// NewRedisEventBus subscribes to the channel and starts the receive loop.
// It returns once Redis has confirmed the subscription.
func NewRedisEventBus(ctx context.Context, client redis.UniversalClient, cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultEventChannel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.Local == nil {
		local := DefaultInMemoryEventBusConfig()
		local.Logger = cfg.Logger
		cfg.Local = NewInMemoryEventBus(local)
	}

	pubsub := client.Subscribe(ctx, cfg.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Channel, err)
	}

	b := &RedisEventBus{
		client:     client,
		pubsub:     pubsub,
		channel:    cfg.Channel,
		instanceID: uuid.NewString(),
		timeout:    cfg.PublishTimeout,
		local:      cfg.Local,
		remote:     NewInMemoryEventBus(InMemoryEventBusConfig{Logger: cfg.Logger}),
		logger:     cfg.Logger.With("component", "redis_event_bus"),
		done:       make(chan struct{}),
	}
	go b.receive()

	b.logger.Info("event bus subscribed", "channel", cfg.Channel, "instance_id", b.instanceID)
	return b, nil
}

var _ shared.EventBus = (*RedisEventBus)(nil)

// Subscribe registers a handler for events published by this instance.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for every event published by this instance.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// SubscribeRemote registers a handler for events published by other instances.
func (b *RedisEventBus) SubscribeRemote(eventType shared.EventType, handler shared.EventHandler) error {
	return b.remote.Subscribe(eventType, handler)
}

// Publish delivers event locally, then broadcasts it. A broadcast failure is
// returned after local delivery has already happened.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if err := b.local.Publish(event); err != nil {
		return err
	}

	env, err := shared.NewEnvelope(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	data, err := json.Marshal(wireMessage{InstanceID: b.instanceID, Event: env})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("broadcast %s: %w", event.EventType(), err)
	}
	return nil
}

func (b *RedisEventBus) receive() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		var wire wireMessage
		if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
			b.logger.Warn("dropping malformed event", "error", err)
			continue
		}
		if wire.InstanceID == b.instanceID {
			continue
		}

		event, err := newRemoteEvent(wire.Event)
		if err != nil {
			b.logger.Warn("dropping undecodable event", "event_id", wire.Event.ID, "error", err)
			continue
		}
		if err := b.remote.Publish(event); err != nil && !errors.Is(err, ErrEventBusClosed) {
			b.logger.Error("remote delivery failed", "event_type", event.EventType(), "error", err)
		}
	}
}

// Close unsubscribes and drains both local buses.
func (b *RedisEventBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.pubsub.Close()
		<-b.done
		_ = b.remote.Close()
		_ = b.local.Close()
		b.logger.Info("event bus closed")
	})
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// REMOTE EVENT
// ══════════════════════════════════════════════════════════════════════════════

// remoteEvent is an event received from another instance. Its payload is
// the decoded JSON object of the envelope.
type remoteEvent struct {
	env     shared.EventEnvelope
	payload map[string]interface{}
}

func newRemoteEvent(env shared.EventEnvelope) (remoteEvent, error) {
	payload := map[string]interface{}{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return remoteEvent{}, err
		}
	}
	return remoteEvent{env: env, payload: payload}, nil
}

func (e remoteEvent) EventID() string                 { return e.env.ID }
func (e remoteEvent) EventType() shared.EventType     { return e.env.Type }
func (e remoteEvent) OccurredAt() time.Time           { return e.env.Timestamp }
func (e remoteEvent) AggregateID() string             { return e.env.AggregateID }
func (e remoteEvent) Payload() map[string]interface{} { return e.payload }
func (e remoteEvent) Correlation() string             { return e.env.CorrelationID }
