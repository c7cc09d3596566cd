// Package memory is an in-process implementation of the progress and catalog
// repositories. It backs tests and single-instance development runs and
// enforces the same version check as the SQL stores.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// Store holds progress records and definitions in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users   map[shared.UserID]*progress.UserProgress
	lessons map[shared.LessonID]progress.LessonDefinition
	quests  map[shared.QuestID]progress.QuestDefinition
	badges  map[shared.BadgeID]progress.BadgeDefinition

	// badgeOrder keeps badges in insertion order, which is the catalog order.
	badgeOrder []shared.BadgeID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[shared.UserID]*progress.UserProgress),
		lessons: make(map[shared.LessonID]progress.LessonDefinition),
		quests:  make(map[shared.QuestID]progress.QuestDefinition),
		badges:  make(map[shared.BadgeID]progress.BadgeDefinition),
	}
}

var (
	_ progress.ProgressRepository = (*Store)(nil)
	_ progress.Catalog            = (*Store)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LoadUserProgress returns a copy of the stored record.
func (s *Store) LoadUserProgress(_ context.Context, id shared.UserID) (*progress.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return p.Clone(), nil
}

// SaveUserProgress stores p if its version matches and bumps the version.
func (s *Store) SaveUserProgress(_ context.Context, p *progress.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[p.UserID]
	if !ok {
		return shared.ErrUserNotFound
	}
	if stored.Version != p.Version {
		return shared.ErrProgressConflict
	}

	p.Version++
	s.users[p.UserID] = p.Clone()
	return nil
}

// CreateUserProgress inserts a new record at version 1.
func (s *Store) CreateUserProgress(_ context.Context, p *progress.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; ok {
		return shared.ErrUserExists
	}
	p.Version = 1
	s.users[p.UserID] = p.Clone()
	return nil
}

// TopByXP returns the records with the most XP.
func (s *Store) TopByXP(_ context.Context, limit int) ([]*progress.UserProgress, error) {
	s.mu.RLock()
	all := make([]*progress.UserProgress, 0, len(s.users))
	for _, p := range s.users {
		all = append(all, p.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b *progress.UserProgress) int {
		if c := cmp.Compare(b.TotalXP, a.TotalXP); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// ListActiveBadgeDefinitions returns active badges in insertion order.
func (s *Store) ListActiveBadgeDefinitions(_ context.Context) ([]progress.BadgeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]progress.BadgeDefinition, 0, len(s.badgeOrder))
	for _, id := range s.badgeOrder {
		if b := s.badges[id]; b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListActiveLessonDefinitions returns active lessons matching filter by Order.
func (s *Store) ListActiveLessonDefinitions(_ context.Context, filter progress.LessonFilter) ([]progress.LessonDefinition, error) {
	s.mu.RLock()
	out := make([]progress.LessonDefinition, 0, len(s.lessons))
	for _, l := range s.lessons {
		if l.Active && filter.Matches(l) {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b progress.LessonDefinition) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetLesson returns a lesson by id.
func (s *Store) GetLesson(_ context.Context, id shared.LessonID) (progress.LessonDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		return progress.LessonDefinition{}, shared.ErrLessonNotFound
	}
	return l, nil
}

// GetQuest returns a quest by id.
func (s *Store) GetQuest(_ context.Context, id shared.QuestID) (progress.QuestDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quests[id]
	if !ok {
		return progress.QuestDefinition{}, shared.ErrQuestNotFound
	}
	return q, nil
}

// GetBadge returns a badge by id.
func (s *Store) GetBadge(_ context.Context, id shared.BadgeID) (progress.BadgeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.badges[id]
	if !ok {
		return progress.BadgeDefinition{}, shared.ErrBadgeNotFound
	}
	return b, nil
}

// SaveLesson inserts or replaces a lesson.
func (s *Store) SaveLesson(_ context.Context, l progress.LessonDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
	return nil
}

// SaveQuest inserts or replaces a quest.
func (s *Store) SaveQuest(_ context.Context, q progress.QuestDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quests[q.ID] = q
	return nil
}

// SaveBadge inserts or replaces a badge, keeping its catalog position.
func (s *Store) SaveBadge(_ context.Context, b progress.BadgeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.badges[b.ID]; !ok {
		s.badgeOrder = append(s.badgeOrder, b.ID)
	}
	s.badges[b.ID] = b
	return nil
}

// MaxLessonOrder returns the highest lesson Order.
func (s *Store) MaxLessonOrder(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxOrder := 0
	for _, l := range s.lessons {
		maxOrder = max(maxOrder, l.Order)
	}
	return maxOrder, nil
}
