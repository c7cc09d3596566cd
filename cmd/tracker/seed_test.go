package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeed_ExampleFile(t *testing.T) {
	f, err := readSeedFile(filepath.Join("..", "..", "configs", "definitions.example.toml"))
	require.NoError(t, err)

	store := memory.NewStore()
	res, err := seedCatalog(context.Background(), store, f, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, seedResult{lessons: 2, quests: 1, badges: 4}, res)

	ctx := context.Background()
	basics, err := store.GetLesson(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, progress.DefaultXPReward(progress.Int(1), progress.Int(30)), basics.XPReward)
	assert.Equal(t, 1, basics.Order)
	assert.True(t, basics.Active)

	conc, err := store.GetLesson(ctx, "go-concurrency")
	require.NoError(t, err)
	assert.Equal(t, int64(150), conc.XPReward)
	assert.Equal(t, 2, conc.Order)

	quest, err := store.GetQuest(ctx, "build-api")
	require.NoError(t, err)
	assert.Equal(t, shared.BadgeID("quest-hero"), quest.BadgeReward)

	badge, err := store.GetBadge(ctx, "xp-1000")
	require.NoError(t, err)
	assert.Equal(t, progress.BadgeXPMilestone, badge.Type)
	assert.Equal(t, int64(1000), badge.Required())
}

func TestSeed_RejectsInvalidDefinitions(t *testing.T) {
	f := &seedFile{
		Badges: []seedBadge{
			{ID: "ok", Type: progress.BadgeXPMilestone, RequiredValue: progress.Int64(10)},
			{ID: "no-threshold", Type: progress.BadgeStreakAchievement},
		},
		Quests: []seedQuest{
			{ID: "q1", Title: "Quest", Difficulty: 2, XPReward: 50, BadgeReward: "missing"},
		},
		Lessons: []seedLesson{
			{ID: "l1", Title: "Lesson", Difficulty: 1, XPReward: 10},
			{ID: "l2", Title: "Too hard", Difficulty: 9, XPReward: 10},
		},
	}

	store := memory.NewStore()
	res, err := seedCatalog(context.Background(), store, f, discardLogger())
	require.Error(t, err)
	assert.Equal(t, seedResult{lessons: 1, badges: 1}, res)
	assert.ErrorContains(t, err, `badge "no-threshold"`)
	assert.ErrorContains(t, err, `quest "q1"`)
	assert.ErrorContains(t, err, `lesson "l2"`)

	_, err = store.GetQuest(context.Background(), "q1")
	assert.True(t, shared.IsNotFound(err))
}

func TestReadSeedFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[lessons]]\nid = \"a\"\nxp = 5\n"), 0o600))

	_, err := readSeedFile(path)
	assert.ErrorContains(t, err, "unknown key")

	require.NoError(t, os.WriteFile(path, []byte("[[badges]]\nid = \"a\"\ntype = \"NOPE\"\n"), 0o600))
	_, err = readSeedFile(path)
	assert.ErrorContains(t, err, "parse seed file")
}
