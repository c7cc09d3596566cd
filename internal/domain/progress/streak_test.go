package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestUpdateStreak(t *testing.T) {
	tests := []struct {
		name        string
		state       StreakState
		now         time.Time
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "first activity",
			state:       StreakState{},
			now:         at("2024-03-10T12:00:00Z"),
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "first activity keeps a larger longest",
			state:       StreakState{LongestStreak: 9},
			now:         at("2024-03-10T12:00:00Z"),
			wantCurrent: 1,
			wantLongest: 9,
		},
		{
			name:        "same day leaves streak unchanged",
			state:       StreakState{CurrentStreak: 3, LongestStreak: 5, LastActivityAt: ptr(at("2024-03-10T01:00:00Z"))},
			now:         at("2024-03-10T23:00:00Z"),
			wantCurrent: 3,
			wantLongest: 5,
		},
		{
			name:        "next day extends",
			state:       StreakState{CurrentStreak: 3, LongestStreak: 5, LastActivityAt: ptr(at("2024-03-10T08:00:00Z"))},
			now:         at("2024-03-11T08:00:00Z"),
			wantCurrent: 4,
			wantLongest: 5,
		},
		{
			name:        "next day raises longest",
			state:       StreakState{CurrentStreak: 5, LongestStreak: 5, LastActivityAt: ptr(at("2024-03-10T08:00:00Z"))},
			now:         at("2024-03-11T08:00:00Z"),
			wantCurrent: 6,
			wantLongest: 6,
		},
		{
			name:        "thirty hours across one midnight counts as one day",
			state:       StreakState{CurrentStreak: 2, LongestStreak: 2, LastActivityAt: ptr(at("2024-03-10T00:30:00Z"))},
			now:         at("2024-03-11T06:30:00Z"),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "gap resets to one",
			state:       StreakState{CurrentStreak: 7, LongestStreak: 7, LastActivityAt: ptr(at("2024-03-10T08:00:00Z"))},
			now:         at("2024-03-12T08:00:00Z"),
			wantCurrent: 1,
			wantLongest: 7,
		},
		{
			name:        "activity before the last one is ignored",
			state:       StreakState{CurrentStreak: 4, LongestStreak: 4, LastActivityAt: ptr(at("2024-03-10T08:00:00Z"))},
			now:         at("2024-03-08T08:00:00Z"),
			wantCurrent: 4,
			wantLongest: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateStreak(tt.state, tt.now, time.UTC)
			assert.Equal(t, tt.wantCurrent, got.CurrentStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			require.NotNil(t, got.LastActivityAt)
			assert.True(t, got.LastActivityAt.Equal(tt.now))
			assert.GreaterOrEqual(t, got.LongestStreak, got.CurrentStreak)
		})
	}
}

func TestUpdateStreak_SameDayIdempotent(t *testing.T) {
	start := StreakState{CurrentStreak: 2, LongestStreak: 4, LastActivityAt: ptr(at("2024-03-09T10:00:00Z"))}
	now := at("2024-03-10T10:00:00Z")

	once := UpdateStreak(start, now, time.UTC)
	twice := UpdateStreak(once, now, time.UTC)

	assert.Equal(t, once.CurrentStreak, twice.CurrentStreak)
	assert.Equal(t, once.LongestStreak, twice.LongestStreak)
}

func TestUpdateStreak_ReferenceLocation(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	// 22:00 UTC on the 10th is 03:00 on the 11th in Almaty.
	last := at("2024-03-10T10:00:00Z")
	now := at("2024-03-10T22:00:00Z")
	s := StreakState{CurrentStreak: 1, LongestStreak: 1, LastActivityAt: &last}

	assert.Equal(t, 1, UpdateStreak(s, now, time.UTC).CurrentStreak)
	assert.Equal(t, 2, UpdateStreak(s, now, almaty).CurrentStreak)
}

func TestUpdateStreak_DoesNotAliasInput(t *testing.T) {
	last := at("2024-03-10T10:00:00Z")
	s := StreakState{CurrentStreak: 1, LongestStreak: 1, LastActivityAt: &last}

	_ = UpdateStreak(s, at("2024-03-11T10:00:00Z"), time.UTC)
	assert.Equal(t, at("2024-03-10T10:00:00Z"), *s.LastActivityAt)
}

func TestStreakBroken(t *testing.T) {
	prev := StreakState{CurrentStreak: 5, LongestStreak: 5, LastActivityAt: ptr(at("2024-03-01T10:00:00Z"))}
	next := UpdateStreak(prev, at("2024-03-05T10:00:00Z"), time.UTC)
	assert.True(t, StreakBroken(prev, next))

	assert.False(t, StreakBroken(StreakState{}, UpdateStreak(StreakState{}, at("2024-03-05T10:00:00Z"), time.UTC)))
}
