package progress

import (
	"fmt"
	"strings"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE TYPE
// ══════════════════════════════════════════════════════════════════════════════

// BadgeType is the closed set of badge eligibility rules.
type BadgeType int

const (
	BadgeXPMilestone BadgeType = iota + 1
	BadgeLessonCompletion
	BadgeQuestCompletion
	BadgeStreakAchievement
	BadgeCollector
	BadgeDailyLearner
	BadgeSpecialEvent
)

// AllBadgeTypes lists every variant in declaration order.
func AllBadgeTypes() []BadgeType {
	return []BadgeType{
		BadgeXPMilestone,
		BadgeLessonCompletion,
		BadgeQuestCompletion,
		BadgeStreakAchievement,
		BadgeCollector,
		BadgeDailyLearner,
		BadgeSpecialEvent,
	}
}

// String returns the storage code of the type.
func (t BadgeType) String() string {
	switch t {
	case BadgeXPMilestone:
		return "XP_MILESTONE"
	case BadgeLessonCompletion:
		return "LESSON_COMPLETION"
	case BadgeQuestCompletion:
		return "QUEST_COMPLETION"
	case BadgeStreakAchievement:
		return "STREAK_ACHIEVEMENT"
	case BadgeCollector:
		return "BADGE_COLLECTOR"
	case BadgeDailyLearner:
		return "DAILY_LEARNER"
	case BadgeSpecialEvent:
		return "SPECIAL_EVENT"
	}
	return fmt.Sprintf("BadgeType(%d)", int(t))
}

// RequiresValue reports whether the type needs a positive RequiredValue.
func (t BadgeType) RequiresValue() bool {
	return t != BadgeSpecialEvent
}

// ParseBadgeType converts a storage code into a BadgeType.
func ParseBadgeType(code string) (BadgeType, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, t := range AllBadgeTypes() {
		if t.String() == code {
			return t, nil
		}
	}
	return 0, shared.NewDomainError("badge", "ParseType", shared.ErrInvalidDefinition, fmt.Sprintf("unknown badge type %q", code))
}

// MarshalText implements encoding.TextMarshaler.
func (t BadgeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BadgeType) UnmarshalText(b []byte) error {
	parsed, err := ParseBadgeType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RARITY
// ══════════════════════════════════════════════════════════════════════════════

// Rarity is a display attribute of a badge.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// AllRarities lists rarities from most to least common.
func AllRarities() []Rarity {
	return []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}
}

// IsValid reports whether r is a known rarity.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// LessonDefinition is a lesson as authored in the catalog.
type LessonDefinition struct {
	ID       shared.LessonID `json:"id"`
	Title    string          `json:"title"`
	Category string          `json:"category,omitempty"`

	// Difficulty - 1 (easiest) to 5.
	Difficulty int `json:"difficulty"`

	// XPReward - base XP before modifiers.
	XPReward int64 `json:"xp_reward"`

	// EstimatedTimeMinutes - nil when unknown.
	EstimatedTimeMinutes *int `json:"estimated_time_minutes,omitempty"`

	Active bool `json:"active"`

	// Order - position in the catalog listing.
	Order int `json:"order"`
}

// Validate checks the fields the XP calculator depends on.
func (l LessonDefinition) Validate() error {
	if !l.ID.IsValid() {
		return invalidDefinition("lesson", "invalid lesson id")
	}
	if err := validateDifficulty("lesson", l.Difficulty); err != nil {
		return err
	}
	if l.XPReward <= 0 {
		return invalidDefinition("lesson", "xp reward must be positive")
	}
	if l.EstimatedTimeMinutes != nil && *l.EstimatedTimeMinutes < 0 {
		return invalidDefinition("lesson", "estimated time cannot be negative")
	}
	return nil
}

// QuestDefinition is a multi-step quest as authored in the catalog.
type QuestDefinition struct {
	ID         shared.QuestID `json:"id"`
	Title      string         `json:"title"`
	Difficulty int            `json:"difficulty"`
	XPReward   int64          `json:"xp_reward"`

	// BadgeReward - badge granted on completion, empty for none.
	BadgeReward shared.BadgeID `json:"badge_reward,omitempty"`

	Active bool `json:"active"`
}

// Validate checks the fields the XP calculator depends on.
func (q QuestDefinition) Validate() error {
	if !q.ID.IsValid() {
		return invalidDefinition("quest", "invalid quest id")
	}
	if err := validateDifficulty("quest", q.Difficulty); err != nil {
		return err
	}
	if q.XPReward <= 0 {
		return invalidDefinition("quest", "xp reward must be positive")
	}
	if q.BadgeReward != "" && !q.BadgeReward.IsValid() {
		return invalidDefinition("quest", "invalid badge reward id")
	}
	return nil
}

// BadgeDefinition is an achievement and its unlock threshold.
type BadgeDefinition struct {
	ID          shared.BadgeID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        BadgeType      `json:"type"`

	// RequiredValue - threshold compared against BadgeMeasure. Nil only for SpecialEvent.
	RequiredValue *int64 `json:"required_value,omitempty"`

	Rarity   Rarity `json:"rarity,omitempty"`
	Category string `json:"category,omitempty"`
	Active   bool   `json:"active"`
}

// Required returns the threshold, or 0 when unset.
func (b BadgeDefinition) Required() int64 {
	if b.RequiredValue == nil {
		return 0
	}
	return *b.RequiredValue
}

// Validate checks that the badge can be evaluated.
func (b BadgeDefinition) Validate() error {
	if !b.ID.IsValid() {
		return invalidDefinition("badge", "invalid badge id")
	}
	if b.Type < BadgeXPMilestone || b.Type > BadgeSpecialEvent {
		return invalidDefinition("badge", "unknown badge type")
	}
	if b.Type.RequiresValue() && b.Required() <= 0 {
		return invalidDefinition("badge", fmt.Sprintf("%s badge needs a positive required value", b.Type))
	}
	if b.Rarity != "" && !b.Rarity.IsValid() {
		return invalidDefinition("badge", fmt.Sprintf("unknown rarity %q", b.Rarity))
	}
	return nil
}

func validateDifficulty(domain string, d int) error {
	if d < MinDifficulty || d > MaxDifficulty {
		return invalidDefinition(domain, fmt.Sprintf("difficulty %d out of range %d..%d", d, MinDifficulty, MaxDifficulty))
	}
	return nil
}

func invalidDefinition(domain, msg string) error {
	return shared.NewDomainError(domain, "Validate", shared.ErrInvalidDefinition, msg)
}

// Int64 returns a pointer to v. Handy for RequiredValue literals.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v. Handy for EstimatedTimeMinutes literals.
func Int(v int) *int { return &v }
