// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/pkg/retry"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE ITEM COMMAND
// The single entry point that turns "user finished lesson X / quest Y" into
// updated progress. XP is awarded at most once per (user, item).
// ══════════════════════════════════════════════════════════════════════════════

// CompleteItemCommand contains the data of a completion event.
type CompleteItemCommand struct {
	UserID shared.UserID
	Kind   progress.ItemKind
	ItemID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteItemCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.NewDomainError("completion", "Validate", shared.ErrInvalidInput, "user_id is required")
	}
	if !c.Kind.IsValid() {
		return shared.NewDomainError("completion", "Validate", shared.ErrInvalidInput, fmt.Sprintf("unknown item kind %q", c.Kind))
	}
	if c.ItemID == "" {
		return shared.NewDomainError("completion", "Validate", shared.ErrInvalidInput, "item_id is required")
	}
	return nil
}

// CompletionResult is returned for both first and repeated completions.
type CompletionResult struct {
	UserID shared.UserID
	Kind   progress.ItemKind
	ItemID string

	// AlreadyCompleted - the item was completed before. Nothing changed.
	AlreadyCompleted bool

	XPGained    int64
	XPBreakdown *progress.XPAward

	TotalXP       int64
	CurrentStreak int
	LongestStreak int
	Level         int64
	LeveledUp     bool

	// NewBadges - badges unlocked by this completion, quest reward first.
	NewBadges []shared.BadgeID

	// Attempts - how many load-modify-save rounds were needed.
	Attempts int

	// Events - domain events published after the save.
	Events []shared.Event
}

// Locker serializes completions of one user across instances. Correctness
// never depends on it: the version check on save still rejects lost updates.
type Locker interface {
	LockUser(ctx context.Context, id shared.UserID) (unlock func(), err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompletionHandler handles CompleteItemCommand.
type CompletionHandler struct {
	progressRepo   progress.ProgressRepository
	definitions    progress.DefinitionRepository
	clock          timeutil.Clock
	eventPublisher shared.EventPublisher
	locker         Locker

	location    *time.Location
	maxAttempts int
	logger      *slog.Logger
}

// CompletionHandlerConfig contains configuration for the handler.
type CompletionHandlerConfig struct {
	// Location is the calendar streak days are counted in.
	Location *time.Location

	// MaxAttempts bounds retries after a save conflict.
	MaxAttempts int

	// Locker is optional.
	Locker Locker

	Logger *slog.Logger
}

// DefaultCompletionHandlerConfig returns default configuration.
func DefaultCompletionHandlerConfig() CompletionHandlerConfig {
	return CompletionHandlerConfig{
		Location:    time.UTC,
		MaxAttempts: 3,
	}
}

// NewCompletionHandler creates a new CompletionHandler.
func NewCompletionHandler(
	progressRepo progress.ProgressRepository,
	definitions progress.DefinitionRepository,
	clock timeutil.Clock,
	eventPublisher shared.EventPublisher,
	config CompletionHandlerConfig,
) *CompletionHandler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultCompletionHandlerConfig().MaxAttempts
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	return &CompletionHandler{
		progressRepo:   progressRepo,
		definitions:    definitions,
		clock:          clock,
		eventPublisher: eventPublisher,
		locker:         config.Locker,
		location:       config.Location,
		maxAttempts:    config.MaxAttempts,
		logger:         config.Logger,
	}
}

// completable is the resolved item definition.
type completable struct {
	award       func(priorStreak int, totalXPBefore int64) progress.XPAward
	badgeReward *progress.BadgeDefinition
}

// Handle executes the completion command.
func (h *CompletionHandler) Handle(ctx context.Context, cmd CompleteItemCommand) (*CompletionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_item: validation failed: %w", err)
	}

	if h.locker != nil {
		unlock, err := h.locker.LockUser(ctx, cmd.UserID)
		if err != nil {
			// The version check still protects the save.
			h.logger.Warn("user lock unavailable, continuing without it",
				"user_id", cmd.UserID,
				"error", err,
			)
		} else {
			defer unlock()
		}
	}

	var (
		result   *CompletionResult
		attempts int
		defs     *itemDefinitions
	)
	retrier := retry.ConflictRetrier(h.maxAttempts, shared.IsConflict)
	err := retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		r, err := h.attempt(ctx, cmd, &defs)
		if err != nil {
			if shared.IsConflict(err) {
				h.logger.Debug("progress save conflict",
					"user_id", cmd.UserID,
					"attempt", attempts,
				)
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if shared.IsConflict(err) && attempts == h.maxAttempts {
			h.logger.Warn("giving up after repeated save conflicts",
				"user_id", cmd.UserID,
				"item_kind", cmd.Kind,
				"item_id", cmd.ItemID,
				"attempts", attempts,
			)
		}
		return nil, fmt.Errorf("complete_item: %w", err)
	}
	result.Attempts = attempts

	h.publish(result.Events)

	if !result.AlreadyCompleted {
		h.logger.Info("item completed",
			"user_id", cmd.UserID,
			"item_kind", cmd.Kind,
			"item_id", cmd.ItemID,
			"xp_gained", result.XPGained,
			"total_xp", result.TotalXP,
			"streak", result.CurrentStreak,
			"new_badges", len(result.NewBadges),
		)
	}

	return result, nil
}

// itemDefinitions is what a first completion needs from the catalog.
type itemDefinitions struct {
	item   completable
	badges []progress.BadgeDefinition
}

// loadDefinitions resolves the item and the active badges once per command.
func (h *CompletionHandler) loadDefinitions(ctx context.Context, cmd CompleteItemCommand, defs **itemDefinitions) (*itemDefinitions, error) {
	if *defs != nil {
		return *defs, nil
	}
	item, err := h.resolve(ctx, cmd)
	if err != nil {
		return nil, err
	}
	badges, err := h.definitions.ListActiveBadgeDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	*defs = &itemDefinitions{item: item, badges: badges}
	return *defs, nil
}

// resolve looks the item up. Inactive items are reported as missing.
func (h *CompletionHandler) resolve(ctx context.Context, cmd CompleteItemCommand) (completable, error) {
	switch cmd.Kind {
	case progress.ItemLesson:
		lesson, err := h.definitions.GetLesson(ctx, shared.LessonID(cmd.ItemID))
		if err != nil {
			return completable{}, err
		}
		if !lesson.Active {
			return completable{}, shared.ErrLessonNotFound
		}
		if err := lesson.Validate(); err != nil {
			return completable{}, err
		}
		return completable{
			award: func(streak int, xp int64) progress.XPAward {
				return progress.ComputeLessonXP(lesson, streak, xp)
			},
		}, nil

	case progress.ItemQuest:
		quest, err := h.definitions.GetQuest(ctx, shared.QuestID(cmd.ItemID))
		if err != nil {
			return completable{}, err
		}
		if !quest.Active {
			return completable{}, shared.ErrQuestNotFound
		}
		if err := quest.Validate(); err != nil {
			return completable{}, err
		}
		item := completable{
			award: func(streak int, xp int64) progress.XPAward {
				return progress.ComputeQuestXP(quest, streak, xp)
			},
		}
		if quest.BadgeReward != "" {
			b, err := h.definitions.GetBadge(ctx, quest.BadgeReward)
			switch {
			case err == nil && b.Active:
				item.badgeReward = &b
			case err == nil, shared.IsNotFound(err):
				h.logger.Warn("quest badge reward unavailable",
					"quest_id", quest.ID,
					"badge_id", quest.BadgeReward,
				)
			default:
				return completable{}, err
			}
		}
		return item, nil
	}

	return completable{}, shared.NewDomainError("completion", "Resolve", shared.ErrInvalidInput, "unknown item kind")
}

// attempt runs one load-modify-save round.
func (h *CompletionHandler) attempt(
	ctx context.Context,
	cmd CompleteItemCommand,
	cached **itemDefinitions,
) (*CompletionResult, error) {
	current, err := h.progressRepo.LoadUserProgress(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if current.HasCompleted(cmd.Kind, cmd.ItemID) {
		return &CompletionResult{
			UserID:           cmd.UserID,
			Kind:             cmd.Kind,
			ItemID:           cmd.ItemID,
			AlreadyCompleted: true,
			TotalXP:          current.TotalXP,
			CurrentStreak:    current.CurrentStreak,
			LongestStreak:    current.LongestStreak,
			Level:            progress.Level(current.TotalXP),
		}, nil
	}

	// Completed items stay completed even after they are retired from the catalog.
	defs, err := h.loadDefinitions(ctx, cmd, cached)
	if err != nil {
		// Catalog failures end the command; only progress saves are retried.
		return nil, retry.Permanent(err)
	}
	item, badges := defs.item, defs.badges

	now := h.clock.Now()
	next := current.Clone()
	next.MarkCompleted(cmd.Kind, cmd.ItemID)

	prior := current.Streak()
	next.SetStreak(progress.UpdateStreak(prior, now, h.location))

	// The bonus uses the streak and total from before this completion.
	award := item.award(prior.CurrentStreak, current.TotalXP)
	next.AddXP(award.Granted)

	var granted []shared.BadgeID
	if item.badgeReward != nil {
		granted = progress.ApplyUnlocks(next, []shared.BadgeID{item.badgeReward.ID})
	}

	eval := progress.EvaluateBadges(next, badges)
	for _, s := range eval.Skipped {
		h.logger.Warn("skipping invalid badge definition",
			"badge_id", s.ID,
			"error", s.Reason,
		)
	}
	granted = append(granted, progress.ApplyUnlocks(next, eval.Unlocked)...)

	next.UpdatedAt = now
	if err := h.progressRepo.SaveUserProgress(ctx, next); err != nil {
		return nil, err
	}

	result := &CompletionResult{
		UserID:        cmd.UserID,
		Kind:          cmd.Kind,
		ItemID:        cmd.ItemID,
		XPGained:      award.Granted,
		XPBreakdown:   &award,
		TotalXP:       next.TotalXP,
		CurrentStreak: next.CurrentStreak,
		LongestStreak: next.LongestStreak,
		Level:         progress.Level(next.TotalXP),
		LeveledUp:     progress.LeveledUp(current.TotalXP, next.TotalXP),
		NewBadges:     granted,
	}
	result.Events = h.buildEvents(cmd, current, next, award, granted, badges, item.badgeReward, now)
	return result, nil
}

func (h *CompletionHandler) buildEvents(
	cmd CompleteItemCommand,
	before, after *progress.UserProgress,
	award progress.XPAward,
	granted []shared.BadgeID,
	badges []progress.BadgeDefinition,
	reward *progress.BadgeDefinition,
	now time.Time,
) []shared.Event {
	base := func(t shared.EventType) shared.BaseEvent {
		e := shared.NewBaseEvent(t, cmd.UserID.String(), now, after.Version)
		if cmd.CorrelationID != "" {
			e = e.WithCorrelationID(cmd.CorrelationID)
		}
		return e
	}

	events := []shared.Event{
		shared.ItemCompletedEvent{
			BaseEvent: base(shared.EventItemCompleted),
			ItemKind:  string(cmd.Kind),
			ItemID:    cmd.ItemID,
		},
		shared.XPAwardedEvent{
			BaseEvent:   base(shared.EventXPAwarded),
			ItemKind:    string(cmd.Kind),
			ItemID:      cmd.ItemID,
			BaseAward:   award.BaseAward,
			StreakBonus: award.StreakBonus,
			Granted:     award.Granted,
			Capped:      award.Capped,
			TotalXP:     after.TotalXP,
		},
		shared.StreakUpdatedEvent{
			BaseEvent:      base(shared.EventStreakUpdated),
			PreviousStreak: before.CurrentStreak,
			CurrentStreak:  after.CurrentStreak,
			LongestStreak:  after.LongestStreak,
			Broken:         progress.StreakBroken(before.Streak(), after.Streak()),
		},
	}

	if progress.LeveledUp(before.TotalXP, after.TotalXP) {
		events = append(events, shared.LevelUpEvent{
			BaseEvent: base(shared.EventLevelUp),
			OldLevel:  progress.Level(before.TotalXP),
			NewLevel:  progress.Level(after.TotalXP),
		})
	}

	byID := make(map[shared.BadgeID]progress.BadgeDefinition, len(badges)+1)
	for _, b := range badges {
		byID[b.ID] = b
	}
	if reward != nil {
		byID[reward.ID] = *reward
	}
	for _, id := range granted {
		b := byID[id]
		events = append(events, shared.BadgeUnlockedEvent{
			BaseEvent: base(shared.EventBadgeUnlocked),
			BadgeID:   id.String(),
			BadgeType: b.Type.String(),
			Rarity:    string(b.Rarity),
		})
	}

	return events
}

// publish sends events. Failures are logged and never fail the command,
// because the progress is already saved.
func (h *CompletionHandler) publish(events []shared.Event) {
	if h.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Error("failed to publish event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}
}
