package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	n, err := db.Migrate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, db.Ping(context.Background()))
}

func TestProgressRepository_RoundTripAndVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(openTestDB(t))

	now := time.Date(2024, 3, 10, 9, 0, 0, 123, time.UTC)
	p, err := progress.NewUserProgress("u1", "Ada", now)
	require.NoError(t, err)
	require.NoError(t, repo.CreateUserProgress(ctx, p))
	assert.Equal(t, int64(1), p.Version)
	assert.ErrorIs(t, repo.CreateUserProgress(ctx, p), shared.ErrUserExists)

	a, err := repo.LoadUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, a.LastActivityAt)
	assert.True(t, now.Equal(a.CreatedAt))
	assert.Zero(t, a.UnlockedBadges.Len())

	b, err := repo.LoadUserProgress(ctx, "u1")
	require.NoError(t, err)

	a.TotalXP = 147
	a.CurrentStreak, a.LongestStreak = 1, 4
	a.LastActivityAt = &now
	a.MarkCompleted(progress.ItemLesson, "go-basics")
	a.MarkCompleted(progress.ItemQuest, "first-quest")
	a.UnlockedBadges.Add("first-lesson")
	require.NoError(t, repo.SaveUserProgress(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.TotalXP = 1
	assert.True(t, shared.IsConflict(repo.SaveUserProgress(ctx, b)))

	got, err := repo.LoadUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(147), got.TotalXP)
	assert.Equal(t, 4, got.LongestStreak)
	require.NotNil(t, got.LastActivityAt)
	assert.True(t, now.Equal(*got.LastActivityAt))
	assert.True(t, got.HasCompleted(progress.ItemLesson, "go-basics"))
	assert.True(t, got.HasCompleted(progress.ItemQuest, "first-quest"))
	assert.True(t, got.UnlockedBadges.Has("first-lesson"))
	assert.Equal(t, int64(2), got.Version)

	_, err = repo.LoadUserProgress(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err))

	ghost, _ := progress.NewUserProgress("ghost", "", now)
	assert.ErrorIs(t, repo.SaveUserProgress(ctx, ghost), shared.ErrUserNotFound)
}

func TestProgressRepository_ConcurrentSavesOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(openTestDB(t))
	p, _ := progress.NewUserProgress("u1", "", time.Now())
	require.NoError(t, repo.CreateUserProgress(ctx, p))

	const writers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		loaded, err := repo.LoadUserProgress(ctx, "u1")
		require.NoError(t, err)
		wg.Add(1)
		go func(p *progress.UserProgress, xp int64) {
			defer wg.Done()
			p.TotalXP = xp
			err := repo.SaveUserProgress(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if shared.IsConflict(err) {
				conflicts++
			}
		}(loaded, int64(i+1))
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestProgressRepository_TopByXP(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(openTestDB(t))
	for id, xp := range map[shared.UserID]int64{"a": 10, "b": 300, "c": 300, "d": 50} {
		p, _ := progress.NewUserProgress(id, "", time.Now())
		p.TotalXP = xp
		require.NoError(t, repo.CreateUserProgress(ctx, p))
	}

	top, err := repo.TopByXP(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []shared.UserID{"b", "c", "d"}, []shared.UserID{top[0].UserID, top[1].UserID, top[2].UserID})

	all, err := repo.TopByXP(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDefinitionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDefinitionRepository(openTestDB(t))

	order, err := repo.MaxLessonOrder(ctx)
	require.NoError(t, err)
	assert.Zero(t, order)

	require.NoError(t, repo.SaveBadge(ctx, progress.BadgeDefinition{ID: "z", Name: "Z", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(1), Rarity: progress.RarityRare, Active: true}))
	require.NoError(t, repo.SaveBadge(ctx, progress.BadgeDefinition{ID: "a", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(2), Active: false}))
	require.NoError(t, repo.SaveBadge(ctx, progress.BadgeDefinition{ID: "m", Type: progress.BadgeSpecialEvent, Active: true}))
	// An update keeps the catalog position.
	require.NoError(t, repo.SaveBadge(ctx, progress.BadgeDefinition{ID: "z", Name: "Zed", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(5), Active: true}))

	badges, err := repo.ListActiveBadgeDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, shared.BadgeID("z"), badges[0].ID)
	assert.Equal(t, "Zed", badges[0].Name)
	assert.Equal(t, int64(5), badges[0].Required())
	assert.Equal(t, shared.BadgeID("m"), badges[1].ID)
	assert.Nil(t, badges[1].RequiredValue)

	inactive, err := repo.GetBadge(ctx, "a")
	require.NoError(t, err)
	assert.False(t, inactive.Active)
	_, err = repo.GetBadge(ctx, "none")
	assert.ErrorIs(t, err, shared.ErrBadgeNotFound)

	require.NoError(t, repo.SaveLesson(ctx, progress.LessonDefinition{ID: "l2", Title: "Two", Difficulty: 2, XPReward: 10, Active: true, Order: 2, Category: "go", EstimatedTimeMinutes: progress.Int(15)}))
	require.NoError(t, repo.SaveLesson(ctx, progress.LessonDefinition{ID: "l1", Title: "One", Difficulty: 4, XPReward: 10, Active: true, Order: 1, Category: "go"}))
	require.NoError(t, repo.SaveLesson(ctx, progress.LessonDefinition{ID: "l3", Title: "Three", Difficulty: 1, XPReward: 10, Active: true, Order: 3, Category: "sql"}))
	require.NoError(t, repo.SaveLesson(ctx, progress.LessonDefinition{ID: "l4", Title: "Off", Difficulty: 1, XPReward: 10, Active: false, Order: 4}))

	all, err := repo.ListActiveLessonDefinitions(ctx, progress.LessonFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, shared.LessonID("l1"), all[0].ID)
	assert.Nil(t, all[0].EstimatedTimeMinutes)

	easyGo, err := repo.ListActiveLessonDefinitions(ctx, progress.LessonFilter{MaxDifficulty: 3, Category: "go"})
	require.NoError(t, err)
	require.Len(t, easyGo, 1)
	assert.Equal(t, shared.LessonID("l2"), easyGo[0].ID)
	require.NotNil(t, easyGo[0].EstimatedTimeMinutes)
	assert.Equal(t, 15, *easyGo[0].EstimatedTimeMinutes)

	order, err = repo.MaxLessonOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, order)

	_, err = repo.GetLesson(ctx, "none")
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	require.NoError(t, repo.SaveQuest(ctx, progress.QuestDefinition{ID: "q1", Title: "Q", Difficulty: 2, XPReward: 200, BadgeReward: "m", Active: true}))
	q, err := repo.GetQuest(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, shared.BadgeID("m"), q.BadgeReward)
	assert.Equal(t, int64(200), q.XPReward)

	_, err = repo.GetQuest(ctx, "none")
	assert.ErrorIs(t, err, shared.ErrQuestNotFound)
}
