package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers are opaque strings issued by the account and catalog services.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

func validID(s string) bool {
	return idRegex.MatchString(s)
}

// UserID identifies a learner.
type UserID string

// IsValid checks if the id is well formed.
func (u UserID) IsValid() bool { return validID(string(u)) }

// String returns the string representation.
func (u UserID) String() string { return string(u) }

// NewUserID creates a UserID with validation.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return "", NewDomainError("progress", "Validate", ErrInvalidInput, "invalid user id")
	}
	return UserID(id), nil
}

// LessonID identifies a lesson definition.
type LessonID string

// IsValid checks if the id is well formed.
func (l LessonID) IsValid() bool { return validID(string(l)) }

// String returns the string representation.
func (l LessonID) String() string { return string(l) }

// QuestID identifies a quest definition.
type QuestID string

// IsValid checks if the id is well formed.
func (q QuestID) IsValid() bool { return validID(string(q)) }

// String returns the string representation.
func (q QuestID) String() string { return string(q) }

// BadgeID identifies a badge definition.
type BadgeID string

// IsValid checks if the id is well formed.
func (b BadgeID) IsValid() bool { return validID(string(b)) }

// String returns the string representation.
func (b BadgeID) String() string { return string(b) }
