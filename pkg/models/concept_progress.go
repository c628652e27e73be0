package models

import "time"

// Initial SM-2 state of a concept nobody has answered yet
const (
	InitialEasinessFactor = 2.5
	InitialIntervalDays   = 1.0
)

// ConceptProgress tracks a user's progress with a specific concept using the SM-2 algorithm.
// A row exists only after the first attempt; NewConceptProgress builds the implicit state before that.
type ConceptProgress struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	ConceptID       int64      `json:"concept_id" db:"concept_id"`
	Mastery         float64    `json:"mastery" db:"mastery"` // 0..1
	Status          string     `json:"status" db:"status"`   // new, learning, reviewing, mastered
	EasinessFactor  float64    `json:"easiness_factor" db:"easiness_factor"`
	IntervalDays    float64    `json:"interval_days" db:"interval_days"`
	Repetitions     int        `json:"repetitions" db:"repetitions"`
	TotalAttempts   int        `json:"total_attempts" db:"total_attempts"`
	CorrectAttempts int        `json:"correct_attempts" db:"correct_attempts"`
	LastQuality     int        `json:"last_quality" db:"last_quality"`
	NextReviewAt    *time.Time `json:"next_review_at" db:"next_review_at"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"`
	Version         int64      `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// NewConceptProgress returns the implicit "new" state of a concept for a user
func NewConceptProgress(userID, conceptID int64) ConceptProgress {
	return ConceptProgress{
		UserID:         userID,
		ConceptID:      conceptID,
		Status:         "new",
		EasinessFactor: InitialEasinessFactor,
		IntervalDays:   InitialIntervalDays,
	}
}

// Persisted reports whether the record was loaded from the store
func (p ConceptProgress) Persisted() bool {
	return p.Version > 0
}
