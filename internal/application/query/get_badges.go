package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgeProgressQuery asks how close a learner is to every active badge.
type GetBadgeProgressQuery struct {
	UserID shared.UserID

	// OnlyLocked - hide badges that are already unlocked.
	OnlyLocked bool
}

// GetBadgeProgressResult contains per-badge progress in catalog display order.
type GetBadgeProgressResult struct {
	UserID   shared.UserID            `json:"user_id"`
	Badges   []progress.BadgeProgress `json:"badges"`
	Unlocked int                      `json:"unlocked"`
	Total    int                      `json:"total"`
}

// GetUserBadgesQuery lists the badges a learner has unlocked.
type GetUserBadgesQuery struct {
	UserID shared.UserID
}

// GetUserBadgesResult contains unlocked badges ordered for display.
type GetUserBadgesResult struct {
	UserID shared.UserID              `json:"user_id"`
	Badges []progress.BadgeDefinition `json:"badges"`
}

// BadgeQueryHandler serves the badge read models.
type BadgeQueryHandler struct {
	progressRepo progress.ProgressRepository
	definitions  progress.DefinitionRepository
}

// NewBadgeQueryHandler creates a new BadgeQueryHandler.
func NewBadgeQueryHandler(progressRepo progress.ProgressRepository, definitions progress.DefinitionRepository) *BadgeQueryHandler {
	return &BadgeQueryHandler{progressRepo: progressRepo, definitions: definitions}
}

// Progress executes GetBadgeProgressQuery.
func (h *BadgeQueryHandler) Progress(ctx context.Context, q GetBadgeProgressQuery) (*GetBadgeProgressResult, error) {
	p, badges, err := h.load(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_badge_progress: %w", err)
	}

	progress.SortBadgesForDisplay(badges)

	result := &GetBadgeProgressResult{
		UserID: q.UserID,
		Badges: make([]progress.BadgeProgress, 0, len(badges)),
		Total:  len(badges),
	}
	for _, b := range badges {
		bp := progress.ComputeBadgeProgress(p, b)
		if bp.Unlocked {
			result.Unlocked++
			if q.OnlyLocked {
				continue
			}
		}
		result.Badges = append(result.Badges, bp)
	}
	return result, nil
}

// UserBadges executes GetUserBadgesQuery. Unlocked badges whose definition was
// deactivated since are still listed.
func (h *BadgeQueryHandler) UserBadges(ctx context.Context, q GetUserBadgesQuery) (*GetUserBadgesResult, error) {
	p, active, err := h.load(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_user_badges: %w", err)
	}

	byID := make(map[shared.BadgeID]progress.BadgeDefinition, len(active))
	for _, b := range active {
		byID[b.ID] = b
	}

	owned := make([]progress.BadgeDefinition, 0, p.UnlockedBadges.Len())
	for _, id := range p.UnlockedBadges.Sorted() {
		if b, ok := byID[id]; ok {
			owned = append(owned, b)
			continue
		}
		b, err := h.definitions.GetBadge(ctx, id)
		if shared.IsNotFound(err) {
			// Removed from the catalog. The unlock stays on the record.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get_user_badges: %w", err)
		}
		owned = append(owned, b)
	}

	progress.SortBadgesForDisplay(owned)
	return &GetUserBadgesResult{UserID: q.UserID, Badges: owned}, nil
}

func (h *BadgeQueryHandler) load(ctx context.Context, id shared.UserID) (*progress.UserProgress, []progress.BadgeDefinition, error) {
	if !id.IsValid() {
		return nil, nil, shared.NewDomainError("badges", "Validate", shared.ErrInvalidInput, "user_id is required")
	}
	p, err := h.progressRepo.LoadUserProgress(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	badges, err := h.definitions.ListActiveBadgeDefinitions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p, badges, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgeCatalogResult contains the active catalog and its summary.
type GetBadgeCatalogResult struct {
	Badges  []progress.BadgeDefinition   `json:"badges"`
	Summary progress.BadgeCatalogSummary `json:"summary"`
}

// Catalog lists every active badge with counts by type and rarity.
func (h *BadgeQueryHandler) Catalog(ctx context.Context) (*GetBadgeCatalogResult, error) {
	badges, err := h.definitions.ListActiveBadgeDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_badge_catalog: %w", err)
	}
	progress.SortBadgesForDisplay(badges)
	return &GetBadgeCatalogResult{
		Badges:  badges,
		Summary: progress.SummarizeBadgeCatalog(badges),
	}, nil
}
