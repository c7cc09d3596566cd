package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDaysBetween(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)

	tests := []struct {
		name string
		a, b time.Time
		loc  *time.Location
		want int
	}{
		{
			name: "same instant",
			a:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "same day hours apart",
			a:    time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 23, 55, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "thirty hours crossing one midnight",
			a:    time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 11, 6, 30, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "ten minutes crossing midnight",
			a:    time.Date(2024, 3, 10, 23, 55, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "reference location shifts the day boundary",
			a:    time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC), // 23:00 in Almaty
			b:    time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC), // 01:00 next day in Almaty
			loc:  almaty,
			want: 1,
		},
		{
			name: "backwards",
			a:    time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			want: -2,
		},
		{
			name: "across month end",
			a:    time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalendarDaysBetween(tt.a, tt.b, tt.loc))
		})
	}
}

func TestCalendarDaysBetween_DSTDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 2024-03-10 is a 23 hour day in New York.
	a := time.Date(2024, 3, 10, 0, 30, 0, 0, ny)
	b := time.Date(2024, 3, 11, 0, 10, 0, 0, ny)
	assert.Equal(t, 1, CalendarDaysBetween(a, b, ny))
}

func TestCalendarDaysBetween_FixedZoneShiftsDate(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	a := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, CalendarDaysBetween(a, b, time.UTC))
	assert.Equal(t, 1, CalendarDaysBetween(a, b, almaty))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(36 * time.Hour)
	assert.Equal(t, start.Add(36*time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
