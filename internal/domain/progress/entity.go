// Package progress holds the gamification rules engine: leveling, streaks,
// XP awards, badge unlocks and the reporting views derived from them.
// Every function here is pure. Persistence and time are supplied by callers.
package progress

import (
	"fmt"
	"slices"
	"time"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ID SET
// ══════════════════════════════════════════════════════════════════════════════

// IDSet is an unordered set of identifiers with a stable sorted view.
type IDSet[T ~string] map[T]struct{}

// NewIDSet builds a set from ids.
func NewIDSet[T ~string](ids ...T) IDSet[T] {
	s := make(IDSet[T], len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet[T]) Has(id T) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s IDSet[T]) Add(id T) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of ids.
func (s IDSet[T]) Len() int {
	return len(s)
}

// Sorted returns the ids in ascending order.
func (s IDSet[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s IDSet[T]) Clone() IDSet[T] {
	out := make(IDSet[T], len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress is the gamification state of one learner. It is mutated only by
// the completion orchestrator and read by everything else.
type UserProgress struct {
	// UserID - owner of this record.
	UserID shared.UserID

	// DisplayName - shown on the leaderboard.
	DisplayName string

	// TotalXP - cumulative experience, never decreases.
	TotalXP int64

	// CurrentStreak - consecutive calendar days with an award, ending at LastActivityAt.
	CurrentStreak int

	// LongestStreak - best streak ever reached, always >= CurrentStreak.
	LongestStreak int

	// LastActivityAt - instant of the latest award, nil before the first one.
	LastActivityAt *time.Time

	UnlockedBadges   IDSet[shared.BadgeID]
	CompletedLessons IDSet[shared.LessonID]
	CompletedQuests  IDSet[shared.QuestID]

	// Version - optimistic concurrency token. Persistence bumps it on every save.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserProgress creates the all-zero record for a new account.
func NewUserProgress(id shared.UserID, displayName string, now time.Time) (*UserProgress, error) {
	if !id.IsValid() {
		return nil, shared.NewDomainError("progress", "Create", shared.ErrInvalidInput, "invalid user id")
	}
	return &UserProgress{
		UserID:           id,
		DisplayName:      displayName,
		UnlockedBadges:   NewIDSet[shared.BadgeID](),
		CompletedLessons: NewIDSet[shared.LessonID](),
		CompletedQuests:  NewIDSet[shared.QuestID](),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Clone returns a deep copy. Evaluations run against clones so the loaded
// snapshot stays untouched if a save fails.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastActivityAt != nil {
		t := *p.LastActivityAt
		c.LastActivityAt = &t
	}
	c.UnlockedBadges = p.UnlockedBadges.Clone()
	c.CompletedLessons = p.CompletedLessons.Clone()
	c.CompletedQuests = p.CompletedQuests.Clone()
	return &c
}

// Streak extracts the streak fields.
func (p *UserProgress) Streak() StreakState {
	return StreakState{
		CurrentStreak:  p.CurrentStreak,
		LongestStreak:  p.LongestStreak,
		LastActivityAt: p.LastActivityAt,
	}
}

// SetStreak writes streak fields back.
func (p *UserProgress) SetStreak(s StreakState) {
	p.CurrentStreak = s.CurrentStreak
	p.LongestStreak = s.LongestStreak
	p.LastActivityAt = s.LastActivityAt
}

// HasCompleted reports whether the item is already in the matching completed set.
func (p *UserProgress) HasCompleted(kind ItemKind, id string) bool {
	switch kind {
	case ItemLesson:
		return p.CompletedLessons.Has(shared.LessonID(id))
	case ItemQuest:
		return p.CompletedQuests.Has(shared.QuestID(id))
	}
	return false
}

// MarkCompleted adds the item to the matching completed set.
func (p *UserProgress) MarkCompleted(kind ItemKind, id string) bool {
	p.ensureSets()
	switch kind {
	case ItemLesson:
		return p.CompletedLessons.Add(shared.LessonID(id))
	case ItemQuest:
		return p.CompletedQuests.Add(shared.QuestID(id))
	}
	return false
}

// ensureSets allocates sets left nil by a zero-value literal.
func (p *UserProgress) ensureSets() {
	if p.UnlockedBadges == nil {
		p.UnlockedBadges = NewIDSet[shared.BadgeID]()
	}
	if p.CompletedLessons == nil {
		p.CompletedLessons = NewIDSet[shared.LessonID]()
	}
	if p.CompletedQuests == nil {
		p.CompletedQuests = NewIDSet[shared.QuestID]()
	}
}

// AddXP adds a non-negative amount.
func (p *UserProgress) AddXP(amount int64) {
	if amount > 0 {
		p.TotalXP += amount
	}
}

// Validate checks the record invariants.
func (p *UserProgress) Validate() error {
	switch {
	case !p.UserID.IsValid():
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "invalid user id")
	case p.TotalXP < 0:
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "total xp is negative")
	case p.CurrentStreak < 0 || p.LongestStreak < 0:
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "streak is negative")
	case p.LongestStreak < p.CurrentStreak:
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "longest streak below current streak")
	}
	return nil
}

// String implements fmt.Stringer.
func (p *UserProgress) String() string {
	return fmt.Sprintf(
		"UserProgress{ID: %s, XP: %d, Level: %d, Streak: %d/%d, Badges: %d, Version: %d}",
		p.UserID, p.TotalXP, Level(p.TotalXP), p.CurrentStreak, p.LongestStreak,
		p.UnlockedBadges.Len(), p.Version,
	)
}

// ItemKind distinguishes the two completable item kinds.
type ItemKind string

const (
	ItemLesson ItemKind = "lesson"
	ItemQuest  ItemKind = "quest"
)

// IsValid reports whether k is a known kind.
func (k ItemKind) IsValid() bool {
	return k == ItemLesson || k == ItemQuest
}

// ParseItemKind converts a string into an ItemKind.
func ParseItemKind(s string) (ItemKind, error) {
	k := ItemKind(s)
	if !k.IsValid() {
		return "", shared.NewDomainError("progress", "ParseItemKind", shared.ErrInvalidInput, fmt.Sprintf("unknown item kind %q", s))
	}
	return k, nil
}
