package models

import "time"

// Concept is an atomic learnable unit: a word, a grammar rule, a writing character.
// Concepts are authored content and never change after import.
type Concept struct {
	ID          int64     `json:"id" db:"id"`
	ExternalKey string    `json:"external_key" db:"external_key"` // Stable authoring key, e.g. "es.vocab.hola"
	ConceptType string    `json:"concept_type" db:"concept_type"` // vocabulary, grammar, character, ...
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	Level       string    `json:"level" db:"level"` // CEFR-like tag (A1, B2, ...)
	Language    string    `json:"language" db:"language"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
