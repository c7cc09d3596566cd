package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT LESSON COMMAND
// Lesson authoring: fills in a suggested XP reward and a catalog position
// when the author leaves them out.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertLessonCommand creates or replaces a lesson definition.
type UpsertLessonCommand struct {
	ID                   shared.LessonID
	Title                string
	Category             string
	Difficulty           int
	EstimatedTimeMinutes *int

	// XPReward - 0 asks for DefaultXPReward.
	XPReward int64

	// Order - 0 appends after the last lesson.
	Order int

	Active bool

	CorrelationID string
}

// Validate validates the command.
func (c UpsertLessonCommand) Validate() error {
	if !c.ID.IsValid() {
		return shared.NewDomainError("lesson", "Validate", shared.ErrInvalidInput, "invalid lesson id")
	}
	if c.Title == "" {
		return shared.NewDomainError("lesson", "Validate", shared.ErrInvalidInput, "title is required")
	}
	if c.XPReward < 0 {
		return shared.NewDomainError("lesson", "Validate", shared.ErrInvalidInput, "xp reward cannot be negative")
	}
	if c.Order < 0 {
		return shared.NewDomainError("lesson", "Validate", shared.ErrInvalidInput, "order cannot be negative")
	}
	return nil
}

// UpsertLessonResult contains the stored definition.
type UpsertLessonResult struct {
	Lesson  progress.LessonDefinition
	Created bool

	// DefaultedReward - XPReward was computed, not supplied.
	DefaultedReward bool
}

// UpsertLessonHandler handles UpsertLessonCommand.
type UpsertLessonHandler struct {
	catalog        progress.Catalog
	clock          timeutil.Clock
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewUpsertLessonHandler creates a new UpsertLessonHandler.
func NewUpsertLessonHandler(
	catalog progress.Catalog,
	clock timeutil.Clock,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *UpsertLessonHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &UpsertLessonHandler{
		catalog:        catalog,
		clock:          clock,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the upsert.
func (h *UpsertLessonHandler) Handle(ctx context.Context, cmd UpsertLessonCommand) (*UpsertLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("upsert_lesson: validation failed: %w", err)
	}

	created := false
	existing, err := h.catalog.GetLesson(ctx, cmd.ID)
	switch {
	case shared.IsNotFound(err):
		created = true
	case err != nil:
		return nil, fmt.Errorf("upsert_lesson: failed to load lesson: %w", err)
	}

	lesson := progress.LessonDefinition{
		ID:                   cmd.ID,
		Title:                cmd.Title,
		Category:             cmd.Category,
		Difficulty:           cmd.Difficulty,
		EstimatedTimeMinutes: cmd.EstimatedTimeMinutes,
		XPReward:             cmd.XPReward,
		Active:               cmd.Active,
		Order:                cmd.Order,
	}

	result := &UpsertLessonResult{Created: created}
	if lesson.XPReward == 0 {
		difficulty := lesson.Difficulty
		lesson.XPReward = progress.DefaultXPReward(&difficulty, lesson.EstimatedTimeMinutes)
		result.DefaultedReward = true
	}

	if lesson.Order == 0 {
		if !created && existing.Order > 0 {
			lesson.Order = existing.Order
		} else {
			maxOrder, err := h.catalog.MaxLessonOrder(ctx)
			if err != nil {
				return nil, fmt.Errorf("upsert_lesson: failed to read lesson order: %w", err)
			}
			lesson.Order = maxOrder + 1
		}
	}

	if err := lesson.Validate(); err != nil {
		return nil, fmt.Errorf("upsert_lesson: %w", err)
	}

	if err := h.catalog.SaveLesson(ctx, lesson); err != nil {
		return nil, fmt.Errorf("upsert_lesson: failed to save lesson: %w", err)
	}
	result.Lesson = lesson

	if h.eventPublisher != nil {
		event := shared.LessonUpsertedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLessonUpserted, lesson.ID.String(), h.clock.Now(), 0),
			Created:   created,
		}
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
		}
	}

	h.logger.Info("lesson saved",
		"lesson_id", lesson.ID,
		"created", created,
		"xp_reward", lesson.XPReward,
		"order", lesson.Order,
	)

	return result, nil
}
