package progress

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the reporting view of one learner's progress.
type UserStats struct {
	UserID           shared.UserID `json:"user_id"`
	DisplayName      string        `json:"display_name,omitempty"`
	TotalXP          int64         `json:"total_xp"`
	CurrentStreak    int           `json:"current_streak"`
	LongestStreak    int           `json:"longest_streak"`
	BadgesCount      int           `json:"badges_count"`
	LessonsCompleted int           `json:"lessons_completed"`
	QuestsCompleted  int           `json:"quests_completed"`
	Level            int64         `json:"level"`
	XPForNextLevel   int64         `json:"xp_for_next_level"`
	XPToNextLevel    int64         `json:"xp_to_next_level"`
	LevelProgress    float64       `json:"level_progress"`
	LastActivityAt   *time.Time    `json:"last_activity_at,omitempty"`
}

// ComputeStats derives UserStats from p.
func ComputeStats(p *UserProgress) UserStats {
	return UserStats{
		UserID:           p.UserID,
		DisplayName:      p.DisplayName,
		TotalXP:          p.TotalXP,
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		BadgesCount:      p.UnlockedBadges.Len(),
		LessonsCompleted: p.CompletedLessons.Len(),
		QuestsCompleted:  p.CompletedQuests.Len(),
		Level:            Level(p.TotalXP),
		XPForNextLevel:   XPForNextLevel(p.TotalXP),
		XPToNextLevel:    XPToNextLevel(p.TotalXP),
		LevelProgress:    LevelProgressPercent(p.TotalXP),
		LastActivityAt:   p.LastActivityAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// BadgeProgress shows how close a learner is to one badge.
type BadgeProgress struct {
	Badge      BadgeDefinition `json:"badge"`
	Unlocked   bool            `json:"unlocked"`
	Progress   int64           `json:"progress"`
	Percentage float64         `json:"progress_percentage"`
}

// ComputeBadgeProgress uses the same measure as eligibility. The percentage is
// capped at 100 and is 0 when the badge has no threshold.
func ComputeBadgeProgress(p *UserProgress, badge BadgeDefinition) BadgeProgress {
	bp := BadgeProgress{
		Badge:    badge,
		Unlocked: p.UnlockedBadges.Has(badge.ID),
	}
	bp.Progress, _ = BadgeMeasure(p, badge.Type)

	if required := badge.Required(); required > 0 {
		bp.Percentage = math.Min(100, float64(bp.Progress)/float64(required)*100)
	}
	return bp
}

// SortBadgesForDisplay orders badges by required value ascending, badges
// without a threshold last, then by id.
func SortBadgesForDisplay(badges []BadgeDefinition) {
	slices.SortStableFunc(badges, func(a, b BadgeDefinition) int {
		switch {
		case a.RequiredValue == nil && b.RequiredValue != nil:
			return 1
		case a.RequiredValue != nil && b.RequiredValue == nil:
			return -1
		}
		if c := cmp.Compare(a.Required(), b.Required()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// BadgeCatalogSummary counts a badge catalog by type and rarity.
type BadgeCatalogSummary struct {
	TotalBadges int            `json:"total_badges"`
	ByType      map[string]int `json:"badges_by_type"`
	ByRarity    map[string]int `json:"badges_by_rarity"`
}

// SummarizeBadgeCatalog counts badges. Badges without a rarity are not counted by rarity.
func SummarizeBadgeCatalog(badges []BadgeDefinition) BadgeCatalogSummary {
	s := BadgeCatalogSummary{
		TotalBadges: len(badges),
		ByType:      make(map[string]int),
		ByRarity:    make(map[string]int),
	}
	for _, b := range badges {
		s.ByType[b.Type.String()]++
		if b.Rarity != "" {
			s.ByRarity[string(b.Rarity)]++
		}
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RecommendedDifficulty maps the number of completed lessons to the highest
// difficulty worth recommending.
func RecommendedDifficulty(completedCount int) int {
	switch {
	case completedCount < 5:
		return 1
	case completedCount < 15:
		return 2
	case completedCount < 30:
		return 3
	case completedCount < 50:
		return 4
	default:
		return 5
	}
}

// RecommendLessons picks active, not yet completed lessons at or below the
// recommended difficulty. Results are ordered by difficulty ascending, then XP
// reward descending, then id. A non-positive limit returns every candidate.
func RecommendLessons(p *UserProgress, lessons []LessonDefinition, limit int) []LessonDefinition {
	maxDifficulty := RecommendedDifficulty(p.CompletedLessons.Len())

	out := make([]LessonDefinition, 0, len(lessons))
	for _, l := range lessons {
		if !l.Active || p.CompletedLessons.Has(l.ID) || l.Difficulty > maxDifficulty {
			continue
		}
		out = append(out, l)
	}

	slices.SortFunc(out, func(a, b LessonDefinition) int {
		if c := cmp.Compare(a.Difficulty, b.Difficulty); c != 0 {
			return c
		}
		if c := cmp.Compare(b.XPReward, a.XPReward); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank          int           `json:"rank"`
	UserID        shared.UserID `json:"user_id"`
	DisplayName   string        `json:"display_name"`
	TotalXP       int64         `json:"total_xp"`
	Level         int64         `json:"level"`
	CurrentStreak int           `json:"current_streak"`
	BadgesCount   int           `json:"badges_count"`
}

// RankByXP turns progress records, already ordered by XP descending, into
// leaderboard rows. Equal XP shares a rank.
func RankByXP(records []*UserProgress) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(records))
	rank := 0
	for i, p := range records {
		if i == 0 || p.TotalXP != records[i-1].TotalXP {
			rank = i + 1
		}
		out = append(out, LeaderboardEntry{
			Rank:          rank,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			TotalXP:       p.TotalXP,
			Level:         Level(p.TotalXP),
			CurrentStreak: p.CurrentStreak,
			BadgesCount:   p.UnlockedBadges.Len(),
		})
	}
	return out
}
