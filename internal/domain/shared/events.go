package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Events emitted by the completion orchestrator after a successful save.
const (
	EventItemCompleted  EventType = "progress.item_completed"
	EventXPAwarded      EventType = "progress.xp_awarded"
	EventLevelUp        EventType = "progress.level_up"
	EventStreakUpdated  EventType = "progress.streak_updated"
	EventBadgeUnlocked  EventType = "progress.badge_unlocked"
	EventLessonUpserted EventType = "catalog.lesson_upserted"
)

// Event is the base interface for all domain events.
type Event interface {
	EventID() string
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the user id for progress events and the lesson id for catalog events.
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int64     `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a base event stamped at the given instant.
// version is the aggregate version the event was produced from.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time, version int64) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     version,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ItemCompletedEvent is emitted when a lesson or quest is completed for the first time.
type ItemCompletedEvent struct {
	BaseEvent
	ItemKind string `json:"item_kind"`
	ItemID   string `json:"item_id"`
}

// Payload implements Event interface.
func (e ItemCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_kind": e.ItemKind,
		"item_id":   e.ItemID,
	}
}

// XPAwardedEvent is emitted when a completion grants XP.
type XPAwardedEvent struct {
	BaseEvent
	ItemKind    string `json:"item_kind"`
	ItemID      string `json:"item_id"`
	BaseAward   int64  `json:"base_award"`
	StreakBonus int64  `json:"streak_bonus"`
	Granted     int64  `json:"granted"`
	Capped      bool   `json:"capped"`
	TotalXP     int64  `json:"total_xp"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_kind":    e.ItemKind,
		"item_id":      e.ItemID,
		"base_award":   e.BaseAward,
		"streak_bonus": e.StreakBonus,
		"granted":      e.Granted,
		"capped":       e.Capped,
		"total_xp":     e.TotalXP,
	}
}

// LevelUpEvent is emitted when an award crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int64 `json:"old_level"`
	NewLevel int64 `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// StreakUpdatedEvent is emitted on every award with the resulting streak.
type StreakUpdatedEvent struct {
	BaseEvent
	PreviousStreak int  `json:"previous_streak"`
	CurrentStreak  int  `json:"current_streak"`
	LongestStreak  int  `json:"longest_streak"`
	Broken         bool `json:"broken"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"current_streak":  e.CurrentStreak,
		"longest_streak":  e.LongestStreak,
		"broken":          e.Broken,
	}
}

// BadgeUnlockedEvent is emitted once per newly unlocked badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	BadgeID   string `json:"badge_id"`
	BadgeType string `json:"badge_type"`
	Rarity    string `json:"rarity"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge_id":   e.BadgeID,
		"badge_type": e.BadgeType,
		"rarity":     e.Rarity,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Catalog Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonUpsertedEvent is emitted when a lesson definition is created or changed.
// Caches listen to it to drop stale lesson lists.
type LessonUpsertedEvent struct {
	BaseEvent
	Created bool `json:"created"`
}

// Payload implements Event interface.
func (e LessonUpsertedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"created": e.Created,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes event into an envelope.
func NewEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          event.EventID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = c.Correlation()
	}
	return env, nil
}

// Correlation returns the correlation id carried by the event.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
