package progress

import "github.com/alem-hub/learning-tracker/internal/domain/shared"

// SkippedBadge is a definition the engine could not evaluate.
type SkippedBadge struct {
	ID     shared.BadgeID
	Reason error
}

// BadgeEvaluation is the result of one evaluation pass.
type BadgeEvaluation struct {
	// Unlocked - newly qualified badges in input order.
	Unlocked []shared.BadgeID

	// Skipped - invalid definitions. They never unlock and never abort the pass.
	Skipped []SkippedBadge
}

// BadgeMeasure returns the progress value a badge type compares against its
// threshold. measurable is false for types the engine never unlocks.
func BadgeMeasure(p *UserProgress, t BadgeType) (value int64, measurable bool) {
	switch t {
	case BadgeXPMilestone:
		return p.TotalXP, true
	case BadgeLessonCompletion:
		return int64(p.CompletedLessons.Len()), true
	case BadgeQuestCompletion:
		return int64(p.CompletedQuests.Len()), true
	case BadgeStreakAchievement:
		return int64(max(p.CurrentStreak, p.LongestStreak)), true
	case BadgeCollector:
		return int64(p.UnlockedBadges.Len()), true
	case BadgeDailyLearner:
		// Proxy: real multi-day activity history is not tracked.
		return int64(p.CurrentStreak), true
	case BadgeSpecialEvent:
		return 0, false
	}
	// Reached only for values outside AllBadgeTypes, which Validate rejects.
	return 0, false
}

// Eligible reports whether snapshot meets badge's threshold. Inactive,
// already unlocked and invalid badges are never eligible.
func Eligible(snapshot *UserProgress, badge BadgeDefinition) bool {
	if !badge.Active || snapshot.UnlockedBadges.Has(badge.ID) || badge.Validate() != nil {
		return false
	}
	v, ok := BadgeMeasure(snapshot, badge.Type)
	return ok && v >= badge.Required()
}

// EvaluateBadges finds the badges snapshot newly qualifies for. snapshot is not
// modified, so every badge, collectors included, is judged against the state
// before this pass. Apply the result with ApplyUnlocks.
func EvaluateBadges(snapshot *UserProgress, badges []BadgeDefinition) BadgeEvaluation {
	var res BadgeEvaluation
	seen := make(map[shared.BadgeID]struct{}, len(badges))

	for _, b := range badges {
		if !b.Active || snapshot.UnlockedBadges.Has(b.ID) {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}

		if err := b.Validate(); err != nil {
			res.Skipped = append(res.Skipped, SkippedBadge{ID: b.ID, Reason: err})
			continue
		}
		if v, ok := BadgeMeasure(snapshot, b.Type); ok && v >= b.Required() {
			res.Unlocked = append(res.Unlocked, b.ID)
		}
	}
	return res
}

// ApplyUnlocks adds ids to p and returns those that were not already unlocked.
func ApplyUnlocks(p *UserProgress, ids []shared.BadgeID) []shared.BadgeID {
	p.ensureSets()
	var added []shared.BadgeID
	for _, id := range ids {
		if p.UnlockedBadges.Add(id) {
			added = append(added, id)
		}
	}
	return added
}
