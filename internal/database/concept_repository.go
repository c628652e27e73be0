package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/progression/pkg/models"
)

const conceptColumns = "id, external_key, concept_type, sort_order, level, language, created_at"

// ConceptRepository handles database operations for concepts
type ConceptRepository struct{}

// NewConceptRepository creates a new repository instance
func NewConceptRepository() *ConceptRepository {
	return &ConceptRepository{}
}

// Upsert inserts a concept or updates the one with the same external key
func (r *ConceptRepository) Upsert(ctx context.Context, q sqlx.ExtContext, concept *models.Concept) error {
	query := q.Rebind(`
		INSERT INTO concepts (external_key, concept_type, sort_order, level, language)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_key) DO UPDATE SET
			concept_type = excluded.concept_type,
			sort_order = excluded.sort_order,
			level = excluded.level,
			language = excluded.language
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, q, &concept.ID, query,
		concept.ExternalKey,
		concept.ConceptType,
		concept.SortOrder,
		concept.Level,
		concept.Language,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert concept %q: %w", concept.ExternalKey, err)
	}
	return nil
}

// GetByID returns a concept by ID
func (r *ConceptRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Concept, error) {
	var concept models.Concept
	err := sqlx.GetContext(ctx, q, &concept, q.Rebind("SELECT "+conceptColumns+" FROM concepts WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("concept %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get concept by ID: %w", err)
	}
	return &concept, nil
}

// GetByKey returns a concept by its external key
func (r *ConceptRepository) GetByKey(ctx context.Context, q sqlx.ExtContext, key string) (*models.Concept, error) {
	var concept models.Concept
	err := sqlx.GetContext(ctx, q, &concept, q.Rebind("SELECT "+conceptColumns+" FROM concepts WHERE external_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("concept %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get concept by key: %w", err)
	}
	return &concept, nil
}

// GetBySkill returns the concepts owned by a skill
func (r *ConceptRepository) GetBySkill(ctx context.Context, q sqlx.ExtContext, skillID int64) ([]models.Concept, error) {
	var concepts []models.Concept
	err := sqlx.SelectContext(ctx, q, &concepts, q.Rebind(`
		SELECT c.id, c.external_key, c.concept_type, c.sort_order, c.level, c.language, c.created_at
		FROM concepts c
		JOIN skill_concepts sc ON sc.concept_id = c.id
		WHERE sc.skill_id = ?
		ORDER BY c.sort_order, c.id
	`), skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to get concepts by skill: %w", err)
	}
	return concepts, nil
}

// ExistingIDs returns the subset of ids that refer to stored concepts
func (r *ConceptRepository) ExistingIDs(ctx context.Context, q sqlx.ExtContext, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query, args, err := inQuery(q, "SELECT id FROM concepts WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var existing []int64
	if err := sqlx.SelectContext(ctx, q, &existing, query, args...); err != nil {
		return nil, fmt.Errorf("failed to check concepts: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}
