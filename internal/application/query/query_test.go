package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()

	for _, b := range []progress.BadgeDefinition{
		{ID: "xp-1000", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(1000), Rarity: progress.RarityRare, Active: true},
		{ID: "xp-100", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(100), Rarity: progress.RarityCommon, Active: true},
		{ID: "event", Type: progress.BadgeSpecialEvent, Rarity: progress.RarityLegendary, Active: true},
		{ID: "streak-7", Type: progress.BadgeStreakAchievement, RequiredValue: progress.Int64(7), Rarity: progress.RarityUncommon, Active: true},
		{ID: "retired", Type: progress.BadgeLessonCompletion, RequiredValue: progress.Int64(1), Rarity: progress.RarityCommon, Active: false},
	} {
		require.NoError(t, s.SaveBadge(ctx, b))
	}

	for i, d := range []int{1, 1, 2, 3, 1} {
		require.NoError(t, s.SaveLesson(ctx, progress.LessonDefinition{
			ID:         shared.LessonID(fmt.Sprintf("l%d", i+1)),
			Title:      "Lesson",
			Category:   []string{"go", "sql"}[i%2],
			Difficulty: d,
			XPReward:   int64(10 * (i + 1)),
			Active:     true,
			Order:      i + 1,
		}))
	}

	p, _ := progress.NewUserProgress("u1", "Ada", time.Now())
	p.TotalXP = 450
	p.CurrentStreak, p.LongestStreak = 2, 5
	p.MarkCompleted(progress.ItemLesson, "l2")
	p.UnlockedBadges.Add("xp-100")
	p.UnlockedBadges.Add("retired")
	require.NoError(t, s.CreateUserProgress(ctx, p))

	return s
}

func TestGetUserStats(t *testing.T) {
	s := seedStore(t)
	h := NewGetUserStatsHandler(s)

	stats, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(450), stats.TotalXP)
	assert.Equal(t, int64(3), stats.Level)
	assert.Equal(t, int64(900), stats.XPForNextLevel)
	assert.Equal(t, int64(450), stats.XPToNextLevel)
	assert.Equal(t, 2, stats.BadgesCount)
	assert.Equal(t, 1, stats.LessonsCompleted)
	assert.Equal(t, 5, stats.LongestStreak)

	_, err = h.Handle(context.Background(), GetUserStatsQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetUserStatsQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestBadgeProgress(t *testing.T) {
	s := seedStore(t)
	h := NewBadgeQueryHandler(s, s)

	res, err := h.Progress(context.Background(), GetBadgeProgressQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, res.Badges, 4)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Unlocked)

	ids := make([]shared.BadgeID, 0, len(res.Badges))
	for _, b := range res.Badges {
		ids = append(ids, b.Badge.ID)
	}
	assert.Equal(t, []shared.BadgeID{"streak-7", "xp-100", "xp-1000", "event"}, ids)

	streak := res.Badges[0]
	assert.Equal(t, int64(5), streak.Progress)
	assert.InDelta(t, 71.43, streak.Percentage, 0.01)

	assert.True(t, res.Badges[1].Unlocked)
	assert.Equal(t, 100.0, res.Badges[1].Percentage)
	assert.InDelta(t, 45.0, res.Badges[2].Percentage, 1e-9)
	assert.Zero(t, res.Badges[3].Percentage)

	locked, err := h.Progress(context.Background(), GetBadgeProgressQuery{UserID: "u1", OnlyLocked: true})
	require.NoError(t, err)
	assert.Len(t, locked.Badges, 3)
}

func TestUserBadges_IncludesDeactivated(t *testing.T) {
	s := seedStore(t)
	h := NewBadgeQueryHandler(s, s)

	res, err := h.UserBadges(context.Background(), GetUserBadgesQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, res.Badges, 2)
	assert.Equal(t, shared.BadgeID("retired"), res.Badges[0].ID)
	assert.Equal(t, shared.BadgeID("xp-100"), res.Badges[1].ID)
}

func TestBadgeCatalog(t *testing.T) {
	s := seedStore(t)
	h := NewBadgeQueryHandler(s, s)

	res, err := h.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Summary.TotalBadges)
	assert.Equal(t, 2, res.Summary.ByType["XP_MILESTONE"])
	assert.Equal(t, 1, res.Summary.ByRarity["LEGENDARY"])
	assert.Zero(t, res.Summary.ByType["LESSON_COMPLETION"])
}

func TestRecommendedLessons(t *testing.T) {
	s := seedStore(t)
	h := NewGetRecommendedLessonsHandler(s, s, 0)
	ctx := context.Background()

	res, err := h.Handle(ctx, GetRecommendedLessonsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecommendedDifficulty)

	// l2 is done, l3 and l4 are too hard. Higher reward first at equal difficulty.
	require.Len(t, res.Lessons, 2)
	assert.Equal(t, shared.LessonID("l5"), res.Lessons[0].ID)
	assert.Equal(t, shared.LessonID("l1"), res.Lessons[1].ID)

	res, err = h.Handle(ctx, GetRecommendedLessonsQuery{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Lessons, 1)

	res, err = h.Handle(ctx, GetRecommendedLessonsQuery{UserID: "u1", Category: "go"})
	require.NoError(t, err)
	for _, l := range res.Lessons {
		assert.Equal(t, "go", l.Category)
	}

	_, err = h.Handle(ctx, GetRecommendedLessonsQuery{UserID: "u1", Limit: -1})
	assert.True(t, shared.IsValidation(err))
}

func TestRecommendedLessonsQuery_Validate(t *testing.T) {
	q := GetRecommendedLessonsQuery{UserID: "u1", Limit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, MaxRecommendationLimit, q.Limit)

	q = GetRecommendedLessonsQuery{UserID: "u1"}
	require.NoError(t, q.Validate())
	assert.Equal(t, DefaultRecommendationLimit, q.Limit)
}

func TestLeaderboard(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	for id, xp := range map[shared.UserID]int64{"u2": 900, "u3": 450, "u4": 10} {
		p, _ := progress.NewUserProgress(id, "", time.Now())
		p.TotalXP = xp
		require.NoError(t, s.CreateUserProgress(ctx, p))
	}

	h := NewGetLeaderboardHandler(s)
	res, err := h.Handle(ctx, GetLeaderboardQuery{Limit: 3, UserID: "u3"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	assert.Equal(t, shared.UserID("u2"), res.Entries[0].UserID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, 2, res.Entries[1].Rank)
	assert.Equal(t, 2, res.Entries[2].Rank)
	require.NotNil(t, res.Me)
	assert.Equal(t, shared.UserID("u3"), res.Me.UserID)

	res, err = h.Handle(ctx, GetLeaderboardQuery{UserID: "u4", Limit: 2})
	require.NoError(t, err)
	assert.Nil(t, res.Me)
}
