package progress

import (
	"context"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository stores UserProgress records with optimistic versioning.
type ProgressRepository interface {
	// LoadUserProgress returns the current record.
	// Returns ErrUserNotFound if there is none.
	LoadUserProgress(ctx context.Context, id shared.UserID) (*UserProgress, error)

	// SaveUserProgress writes p if the stored version still equals p.Version,
	// then sets p.Version to the new version.
	// Returns ErrProgressConflict when another writer got there first.
	SaveUserProgress(ctx context.Context, p *UserProgress) error

	// CreateUserProgress inserts a fresh record.
	// Returns ErrUserExists if the user already has one.
	CreateUserProgress(ctx context.Context, p *UserProgress) error

	// TopByXP returns up to limit records ordered by TotalXP descending, then user id.
	TopByXP(ctx context.Context, limit int) ([]*UserProgress, error)
}

// LessonFilter narrows ListActiveLessonDefinitions.
type LessonFilter struct {
	// MaxDifficulty - 0 means no bound.
	MaxDifficulty int

	// Category - empty means any.
	Category string
}

// Matches reports whether l passes the filter. Activity is checked by callers.
func (f LessonFilter) Matches(l LessonDefinition) bool {
	if f.MaxDifficulty > 0 && l.Difficulty > f.MaxDifficulty {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	return true
}

// DefinitionRepository reads the lesson, quest and badge catalog.
type DefinitionRepository interface {
	// ListActiveBadgeDefinitions returns active badges in catalog order.
	ListActiveBadgeDefinitions(ctx context.Context) ([]BadgeDefinition, error)

	// ListActiveLessonDefinitions returns active lessons matching filter, by Order.
	ListActiveLessonDefinitions(ctx context.Context, filter LessonFilter) ([]LessonDefinition, error)

	// GetLesson returns ErrLessonNotFound for unknown ids.
	GetLesson(ctx context.Context, id shared.LessonID) (LessonDefinition, error)

	// GetQuest returns ErrQuestNotFound for unknown ids.
	GetQuest(ctx context.Context, id shared.QuestID) (QuestDefinition, error)

	// GetBadge returns ErrBadgeNotFound for unknown ids.
	GetBadge(ctx context.Context, id shared.BadgeID) (BadgeDefinition, error)
}

// DefinitionWriter maintains the catalog. Used by authoring and seeding.
type DefinitionWriter interface {
	SaveLesson(ctx context.Context, l LessonDefinition) error
	SaveQuest(ctx context.Context, q QuestDefinition) error
	SaveBadge(ctx context.Context, b BadgeDefinition) error

	// MaxLessonOrder returns the highest Order in use, 0 for an empty catalog.
	MaxLessonOrder(ctx context.Context) (int, error)
}

// Catalog combines reading and writing definitions.
type Catalog interface {
	DefinitionRepository
	DefinitionWriter
}
