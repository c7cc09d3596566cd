package progress

import "math"

// XP award tunables.
const (
	difficultyStep      = 0.2
	timeBonusPerHour    = 0.1
	maxTimeBonus        = 0.5
	streakBonusPerDay   = 0.1
	maxStreakBonusRate  = 0.5
	baseDailyCap        = 1000
	dailyCapStep        = 100
	dailyCapXPPerStep   = 1000
	defaultRewardBase   = 50
	defaultRewardPerLvl = 25
	defaultRewardPerMin = 2

	timeUnitsPerBonus    = 600
	maxTimeBonusUnits    = 300
	maxStreakBonusTenths = 5
)

// XPAward is the breakdown of one completion's XP grant.
type XPAward struct {
	DifficultyMultiplier float64 `json:"difficulty_multiplier"`
	TimeBonus            float64 `json:"time_bonus"`
	BaseAward            int64   `json:"base_award"`
	StreakBonusRate      float64 `json:"streak_bonus_rate"`
	StreakBonus          int64   `json:"streak_bonus"`
	RawTotal             int64   `json:"raw_total"`
	DailyCap             int64   `json:"daily_cap"`
	Granted              int64   `json:"granted"`
	Capped               bool    `json:"capped"`
}

// ComputeLessonXP computes the XP for completing lesson.
// priorStreak and totalXPBefore must be read before this completion is applied.
func ComputeLessonXP(lesson LessonDefinition, priorStreak int, totalXPBefore int64) XPAward {
	return computeAward(lesson.XPReward, lesson.Difficulty, lesson.EstimatedTimeMinutes, priorStreak, totalXPBefore)
}

// ComputeQuestXP computes the XP for completing quest. Quests carry no time
// estimate, so only difficulty and streak modify the reward.
func ComputeQuestXP(quest QuestDefinition, priorStreak int, totalXPBefore int64) XPAward {
	return computeAward(quest.XPReward, quest.Difficulty, nil, priorStreak, totalXPBefore)
}

// computeAward rounds in integer arithmetic so exact .5 ties always round up.
// The float fields of the breakdown are informational only.
func computeAward(reward int64, difficulty int, minutes *int, priorStreak int, totalXPBefore int64) XPAward {
	a := XPAward{
		DifficultyMultiplier: DifficultyMultiplier(difficulty),
		TimeBonus:            timeBonus(minutes),
		StreakBonusRate:      StreakBonusRate(priorStreak),
		DailyCap:             DailyCap(totalXPBefore),
	}

	// reward * (4+d)/5 * (600+min(300,m))/600
	num := reward * int64(4+difficulty) * (timeUnitsPerBonus + timeBonusUnits(minutes))
	a.BaseAward = divHalfUp(num, 5*timeUnitsPerBonus)

	if tenths := streakBonusTenths(priorStreak); tenths > 0 {
		a.StreakBonus = divHalfUp(a.BaseAward*tenths, 10)
	}
	a.RawTotal = a.BaseAward + a.StreakBonus

	// The cap bounds this single award, not the sum of a day's awards.
	a.Granted = min(a.RawTotal, a.DailyCap)
	a.Capped = a.Granted < a.RawTotal
	return a
}

// DifficultyMultiplier is 1.0 at difficulty 1 and grows 0.2 per step.
func DifficultyMultiplier(difficulty int) float64 {
	return 1.0 + float64(difficulty-1)*difficultyStep
}

// timeBonusUnits is the time bonus in minutes over a base of 600,
// so 60 minutes adds 10% and the bonus stops at 300 minutes.
func timeBonusUnits(minutes *int) int64 {
	if minutes == nil || *minutes <= 0 {
		return 0
	}
	return min(int64(*minutes), maxTimeBonusUnits)
}

func streakBonusTenths(priorStreak int) int64 {
	if priorStreak <= 1 {
		return 0
	}
	return min(int64(priorStreak-1), maxStreakBonusTenths)
}

func timeBonus(minutes *int) float64 {
	if minutes == nil {
		return 1.0
	}
	return 1.0 + math.Min(maxTimeBonus, float64(*minutes)/60.0*timeBonusPerHour)
}

// StreakBonusRate is the fraction of the base award added for a running streak.
// Streaks of 0 or 1 earn nothing and the rate tops out at 50%.
func StreakBonusRate(priorStreak int) float64 {
	if priorStreak <= 1 {
		return 0
	}
	return math.Min(maxStreakBonusRate, float64(priorStreak-1)*streakBonusPerDay)
}

// DailyCap grows by 100 for every full 1000 XP already earned.
func DailyCap(totalXPBefore int64) int64 {
	if totalXPBefore < 0 {
		totalXPBefore = 0
	}
	return baseDailyCap + (totalXPBefore/dailyCapXPPerStep)*dailyCapStep
}

// DefaultXPReward suggests a base reward for a lesson authored without one.
// Missing fields contribute nothing.
func DefaultXPReward(difficulty *int, minutes *int) int64 {
	reward := int64(defaultRewardBase)
	if difficulty != nil {
		reward += int64(*difficulty-1) * defaultRewardPerLvl
	}
	if minutes != nil {
		reward += int64(*minutes) * defaultRewardPerMin
	}
	return reward
}

// divHalfUp divides n by a positive d, rounding ties towards +Inf.
func divHalfUp(n, d int64) int64 {
	q := (2*n + d) / (2 * d)
	if 2*n+d < 0 && (2*n+d)%(2*d) != 0 {
		q--
	}
	return q
}
