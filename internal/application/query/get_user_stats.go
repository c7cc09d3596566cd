// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// The dashboard numbers of one learner: XP, level position, streaks, counts.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsQuery contains the query parameters.
type GetUserStatsQuery struct {
	UserID shared.UserID
}

// Validate validates the query.
func (q GetUserStatsQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.NewDomainError("stats", "Validate", shared.ErrInvalidInput, "user_id is required")
	}
	return nil
}

// GetUserStatsHandler handles GetUserStatsQuery.
type GetUserStatsHandler struct {
	progressRepo progress.ProgressRepository
}

// NewGetUserStatsHandler creates a new GetUserStatsHandler.
func NewGetUserStatsHandler(progressRepo progress.ProgressRepository) *GetUserStatsHandler {
	return &GetUserStatsHandler{progressRepo: progressRepo}
}

// Handle executes the query.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*progress.UserStats, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_user_stats: %w", err)
	}

	p, err := h.progressRepo.LoadUserProgress(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_stats: %w", err)
	}

	stats := progress.ComputeStats(p)
	return &stats, nil
}
