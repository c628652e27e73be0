package models

import "github.com/google/uuid"

// AnswerEvent is emitted by the question flow once a learner answered a question
type AnswerEvent struct {
	ID             uuid.UUID `json:"id"`
	UserID         int64     `json:"user_id"`
	ConceptIDs     []int64   `json:"concept_ids"`
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"` // nil when the client sent no timing
}
