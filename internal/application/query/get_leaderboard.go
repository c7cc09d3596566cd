package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Top learners by total XP.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultLeaderboardLimit is used when the query leaves Limit at 0.
	DefaultLeaderboardLimit = 10

	// MaxLeaderboardLimit bounds Limit.
	MaxLeaderboardLimit = 100
)

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Limit - 1..100, default 10.
	Limit int

	// UserID - optional. When set, the result also reports that user's row
	// if it made the page.
	UserID shared.UserID
}

// Validate validates the query and applies defaults.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrInvalidInput, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	q.Limit = min(q.Limit, MaxLeaderboardLimit)
	return nil
}

// GetLeaderboardResult contains the leaderboard page.
type GetLeaderboardResult struct {
	Entries []progress.LeaderboardEntry `json:"entries"`

	// Me - the requesting user's row, nil when not on the page.
	Me *progress.LeaderboardEntry `json:"me,omitempty"`
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	progressRepo progress.ProgressRepository
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(progressRepo progress.ProgressRepository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{progressRepo: progressRepo}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	records, err := h.progressRepo.TopByXP(ctx, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{Entries: progress.RankByXP(records)}
	if q.UserID != "" {
		for i := range result.Entries {
			if result.Entries[i].UserID == q.UserID {
				result.Me = &result.Entries[i]
				break
			}
		}
	}
	return result, nil
}
