package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDED LESSONS QUERY
// Suggests the next lessons: nothing harder than what the learner's number of
// completed lessons suggests, easiest first.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultRecommendationLimit is used when the query leaves Limit at 0.
	DefaultRecommendationLimit = 10

	// MaxRecommendationLimit bounds Limit.
	MaxRecommendationLimit = 50
)

// GetRecommendedLessonsQuery contains the query parameters.
type GetRecommendedLessonsQuery struct {
	UserID shared.UserID

	// Category - optional category filter.
	Category string

	// Limit - 1..50, default 10.
	Limit int
}

// Validate validates the query and applies defaults.
func (q *GetRecommendedLessonsQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.NewDomainError("recommendations", "Validate", shared.ErrInvalidInput, "user_id is required")
	}
	if q.Limit < 0 {
		return shared.NewDomainError("recommendations", "Validate", shared.ErrInvalidInput, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultRecommendationLimit
	}
	q.Limit = min(q.Limit, MaxRecommendationLimit)
	return nil
}

// GetRecommendedLessonsResult contains the recommendations.
type GetRecommendedLessonsResult struct {
	UserID                shared.UserID               `json:"user_id"`
	RecommendedDifficulty int                         `json:"recommended_difficulty"`
	Lessons               []progress.LessonDefinition `json:"lessons"`
}

// GetRecommendedLessonsHandler handles GetRecommendedLessonsQuery.
type GetRecommendedLessonsHandler struct {
	progressRepo progress.ProgressRepository
	definitions  progress.DefinitionRepository
	defaultLimit int
}

// NewGetRecommendedLessonsHandler creates a new handler. defaultLimit replaces
// DefaultRecommendationLimit when positive.
func NewGetRecommendedLessonsHandler(
	progressRepo progress.ProgressRepository,
	definitions progress.DefinitionRepository,
	defaultLimit int,
) *GetRecommendedLessonsHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRecommendationLimit
	}
	return &GetRecommendedLessonsHandler{
		progressRepo: progressRepo,
		definitions:  definitions,
		defaultLimit: min(defaultLimit, MaxRecommendationLimit),
	}
}

// Handle executes the query.
func (h *GetRecommendedLessonsHandler) Handle(ctx context.Context, q GetRecommendedLessonsQuery) (*GetRecommendedLessonsResult, error) {
	if q.Limit == 0 {
		q.Limit = h.defaultLimit
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_recommended_lessons: %w", err)
	}

	p, err := h.progressRepo.LoadUserProgress(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_recommended_lessons: %w", err)
	}

	difficulty := progress.RecommendedDifficulty(p.CompletedLessons.Len())
	lessons, err := h.definitions.ListActiveLessonDefinitions(ctx, progress.LessonFilter{
		MaxDifficulty: difficulty,
		Category:      q.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("get_recommended_lessons: failed to list lessons: %w", err)
	}

	return &GetRecommendedLessonsResult{
		UserID:                q.UserID,
		RecommendedDifficulty: difficulty,
		Lessons:               progress.RecommendLessons(p, lessons, q.Limit),
	}, nil
}
