package progress

import "math"

// XPPerLevelUnit scales the quadratic level curve: level L starts at (L-1)^2 * 100 XP.
const XPPerLevelUnit = 100

// Level maps cumulative XP to a level: floor(sqrt(totalXP/100)) + 1.
// The square root is taken over integers so the boundaries are exact.
func Level(totalXP int64) int64 {
	if totalXP < 0 {
		totalXP = 0
	}
	return isqrt(totalXP/XPPerLevelUnit) + 1
}

// XPForNextLevel returns the cumulative XP at which the next level starts.
func XPForNextLevel(totalXP int64) int64 {
	l := Level(totalXP)
	return l * l * XPPerLevelUnit
}

// XPToNextLevel returns how much XP is missing for the next level.
// The curve guarantees a positive value. It is clamped to 0 anyway.
func XPToNextLevel(totalXP int64) int64 {
	return max(0, XPForNextLevel(totalXP)-totalXP)
}

// LeveledUp reports whether an award from oldXP to newXP crossed a level boundary.
func LeveledUp(oldXP, newXP int64) bool {
	return Level(oldXP) < Level(newXP)
}

// LevelProgressPercent returns how far through the current level totalXP is, 0..100.
func LevelProgressPercent(totalXP int64) float64 {
	l := Level(totalXP)
	start := (l - 1) * (l - 1) * XPPerLevelUnit
	span := l*l*XPPerLevelUnit - start
	if span <= 0 {
		return 0
	}
	pct := float64(totalXP-start) / float64(span) * 100
	return math.Min(100, math.Max(0, pct))
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	// Correct float error without multiplying, which could overflow near MaxInt64.
	for r > n/r {
		r--
	}
	for r+1 <= n/(r+1) {
		r++
	}
	return r
}
