package models

import "time"

// ReviewLog records one scheduled review of a concept
type ReviewLog struct {
	ID             string    `json:"id" db:"id"`
	EventID        string    `json:"event_id" db:"event_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	ConceptID      int64     `json:"concept_id" db:"concept_id"`
	Quality        int       `json:"quality" db:"quality"`
	IsCorrect      bool      `json:"is_correct" db:"is_correct"`
	ResponseTimeMs *int64    `json:"response_time_ms" db:"response_time_ms"`
	IntervalDays   float64   `json:"interval_days" db:"interval_days"`
	EasinessFactor float64   `json:"easiness_factor" db:"easiness_factor"`
	ReviewedAt     time.Time `json:"reviewed_at" db:"reviewed_at"`
}
