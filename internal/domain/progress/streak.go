package progress

import (
	"time"

	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

// StreakState is the slice of UserProgress the streak tracker reads and writes.
type StreakState struct {
	CurrentStreak  int
	LongestStreak  int
	LastActivityAt *time.Time
}

// UpdateStreak applies an award at now to s. Days are counted on the calendar of loc.
//
//	no previous activity  -> current 1
//	same calendar day     -> unchanged
//	next calendar day     -> current + 1
//	later than that       -> current reset to 1
//
// An activity that appears to precede the last one (clock skew) leaves the
// counters as they are. LastActivityAt always becomes now.
func UpdateStreak(s StreakState, now time.Time, loc *time.Location) StreakState {
	next := s
	at := now
	next.LastActivityAt = &at

	if s.LastActivityAt == nil {
		next.CurrentStreak = 1
		next.LongestStreak = max(s.LongestStreak, 1)
		return next
	}

	switch days := timeutil.CalendarDaysBetween(*s.LastActivityAt, now, loc); {
	case days == 1:
		next.CurrentStreak = s.CurrentStreak + 1
		next.LongestStreak = max(s.LongestStreak, next.CurrentStreak)
	case days > 1:
		next.CurrentStreak = 1
	}
	return next
}

// StreakBroken reports whether the transition from prev to next reset a running streak.
func StreakBroken(prev, next StreakState) bool {
	return prev.LastActivityAt != nil && prev.CurrentStreak > 1 && next.CurrentStreak == 1
}
