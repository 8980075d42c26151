package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// StatusState is the learning state of a word for one user.
type StatusState string

const (
	StatusNew      StatusState = "NEW"
	StatusLearning StatusState = "LEARNING"
	StatusMastered StatusState = "MASTERED"
)

// ParseStatusState maps arbitrary input onto a known state, defaulting to NEW.
func ParseStatusState(s string) StatusState {
	switch StatusState(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusLearning:
		return StatusLearning
	case StatusMastered:
		return StatusMastered
	default:
		return StatusNew
	}
}

// UserWordStatus tracks one user's progress on one word. Scheduler is an
// opaque payload owned by the spaced-repetition scheduler.
type UserWordStatus struct {
	ID        string
	UserID    string
	WordID    string
	State     StatusState
	Scheduler json.RawMessage
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize ensures defaults & constraints before persistence.
func (s *UserWordStatus) Normalize(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	s.State = ParseStatusState(string(s.State))
}

// WordReview is a single review event of a UserWordStatus.
type WordReview struct {
	ID         string
	UserID     string
	StatusID   string
	Rating     int
	DurationMs int
	ReviewedAt time.Time
}
