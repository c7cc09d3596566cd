package progress

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

func TestBadgeType_RoundTripsEveryVariant(t *testing.T) {
	for _, typ := range AllBadgeTypes() {
		code := typ.String()
		assert.False(t, strings.HasPrefix(code, "BadgeType("), "variant %d has no code", int(typ))

		parsed, err := ParseBadgeType(code)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
}

func TestParseBadgeType_Unknown(t *testing.T) {
	_, err := ParseBadgeType("LOGIN_COUNT")
	assert.True(t, shared.IsInvalidDefinition(err))

	parsed, err := ParseBadgeType(" streak_achievement ")
	require.NoError(t, err)
	assert.Equal(t, BadgeStreakAchievement, parsed)
}

func TestBadgeDefinition_JSON(t *testing.T) {
	var b BadgeDefinition
	require.NoError(t, json.Unmarshal([]byte(`{"id":"xp-1k","name":"Grinder","type":"XP_MILESTONE","required_value":1000,"rarity":"RARE","active":true}`), &b))
	assert.Equal(t, BadgeXPMilestone, b.Type)
	assert.Equal(t, int64(1000), b.Required())
	require.NoError(t, b.Validate())

	err := json.Unmarshal([]byte(`{"id":"x","type":"NOPE"}`), &b)
	assert.Error(t, err)
}

func TestBadgeDefinition_Validate(t *testing.T) {
	assert.NoError(t, BadgeDefinition{ID: "event", Type: BadgeSpecialEvent}.Validate())
	assert.Error(t, BadgeDefinition{ID: "xp", Type: BadgeXPMilestone}.Validate())
	assert.Error(t, BadgeDefinition{ID: "xp", Type: BadgeXPMilestone, RequiredValue: Int64(-5)}.Validate())
	assert.Error(t, BadgeDefinition{ID: "xp", Type: BadgeType(42), RequiredValue: Int64(5)}.Validate())
	assert.Error(t, BadgeDefinition{ID: "xp", Type: BadgeXPMilestone, RequiredValue: Int64(5), Rarity: "MYTHIC"}.Validate())
}

func TestLessonDefinition_Validate(t *testing.T) {
	ok := LessonDefinition{ID: "l1", Difficulty: 3, XPReward: 100, EstimatedTimeMinutes: Int(0)}
	assert.NoError(t, ok.Validate())

	bad := []LessonDefinition{
		{ID: "", Difficulty: 1, XPReward: 10},
		{ID: "l1", Difficulty: 0, XPReward: 10},
		{ID: "l1", Difficulty: 6, XPReward: 10},
		{ID: "l1", Difficulty: 1, XPReward: 0},
		{ID: "l1", Difficulty: 1, XPReward: 10, EstimatedTimeMinutes: Int(-1)},
	}
	for _, l := range bad {
		assert.True(t, shared.IsInvalidDefinition(l.Validate()), "%+v", l)
	}
}

func TestQuestDefinition_Validate(t *testing.T) {
	assert.NoError(t, QuestDefinition{ID: "q1", Difficulty: 2, XPReward: 300, BadgeReward: "quest-hero"}.Validate())
	assert.Error(t, QuestDefinition{ID: "q1", Difficulty: 2, XPReward: 300, BadgeReward: "bad id"}.Validate())
}

func TestUserProgress_CloneIsDeep(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := NewUserProgress("u1", "Ada", now)
	require.NoError(t, err)
	p.LastActivityAt = &now
	p.MarkCompleted(ItemLesson, "l1")

	c := p.Clone()
	c.MarkCompleted(ItemLesson, "l2")
	c.MarkCompleted(ItemQuest, "q1")
	c.UnlockedBadges.Add("b1")
	*c.LastActivityAt = now.Add(time.Hour)

	assert.Equal(t, 1, p.CompletedLessons.Len())
	assert.Zero(t, p.CompletedQuests.Len())
	assert.Zero(t, p.UnlockedBadges.Len())
	assert.Equal(t, now, *p.LastActivityAt)
}

func TestUserProgress_CompletedSets(t *testing.T) {
	p := &UserProgress{UserID: "u1"}
	assert.False(t, p.HasCompleted(ItemLesson, "l1"))
	assert.True(t, p.MarkCompleted(ItemLesson, "l1"))
	assert.False(t, p.MarkCompleted(ItemLesson, "l1"))
	assert.True(t, p.HasCompleted(ItemLesson, "l1"))
	assert.False(t, p.HasCompleted(ItemQuest, "l1"))
	assert.Equal(t, []shared.LessonID{"l1"}, p.CompletedLessons.Sorted())
}

func TestUserProgress_Validate(t *testing.T) {
	assert.NoError(t, (&UserProgress{UserID: "u1", CurrentStreak: 2, LongestStreak: 3}).Validate())
	assert.Error(t, (&UserProgress{UserID: "u1", CurrentStreak: 4, LongestStreak: 3}).Validate())
	assert.Error(t, (&UserProgress{UserID: "u1", TotalXP: -1}).Validate())

	_, err := NewUserProgress("", "nobody", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestParseItemKind(t *testing.T) {
	k, err := ParseItemKind("quest")
	require.NoError(t, err)
	assert.Equal(t, ItemQuest, k)

	_, err = ParseItemKind("course")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
