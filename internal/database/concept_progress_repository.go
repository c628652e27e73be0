package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/progression/pkg/models"
)

const conceptProgressColumns = `id, user_id, concept_id, mastery, status, easiness_factor, interval_days,
	repetitions, total_attempts, correct_attempts, last_quality, next_review_at, last_reviewed_at,
	version, created_at, updated_at`

// ConceptProgressRepository handles database operations for per-user concept progress
type ConceptProgressRepository struct{}

// NewConceptProgressRepository creates a new repository instance
func NewConceptProgressRepository() *ConceptProgressRepository {
	return &ConceptProgressRepository{}
}

// Get returns progress for a specific user and concept. When the user never
// answered the concept the implicit new state is returned (Persisted() == false).
// forUpdate locks the row until the surrounding transaction ends.
func (r *ConceptProgressRepository) Get(ctx context.Context, q sqlx.ExtContext, userID, conceptID int64, forUpdate bool) (models.ConceptProgress, error) {
	query := "SELECT " + conceptProgressColumns + " FROM concept_progress WHERE user_id = ? AND concept_id = ?"
	if forUpdate {
		query = lockForUpdate(q, query)
	}

	var progress models.ConceptProgress
	err := sqlx.GetContext(ctx, q, &progress, q.Rebind(query), userID, conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewConceptProgress(userID, conceptID), nil
	}
	if err != nil {
		return models.ConceptProgress{}, fmt.Errorf("failed to get concept progress: %w", err)
	}
	return progress, nil
}

// Save writes progress with an optimistic version check. A first save inserts the row;
// ErrConflict is returned when another transaction got there first.
func (r *ConceptProgressRepository) Save(ctx context.Context, q sqlx.ExtContext, p *models.ConceptProgress, now time.Time) error {
	now = now.UTC()
	if !p.Persisted() {
		return r.create(ctx, q, p, now)
	}

	query := q.Rebind(`
		UPDATE concept_progress SET
			mastery = ?,
			status = ?,
			easiness_factor = ?,
			interval_days = ?,
			repetitions = ?,
			total_attempts = ?,
			correct_attempts = ?,
			last_quality = ?,
			next_review_at = ?,
			last_reviewed_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`)
	result, err := q.ExecContext(ctx, query,
		p.Mastery,
		p.Status,
		p.EasinessFactor,
		p.IntervalDays,
		p.Repetitions,
		p.TotalAttempts,
		p.CorrectAttempts,
		p.LastQuality,
		utcPtr(p.NextReviewAt),
		utcPtr(p.LastReviewedAt),
		now,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update concept progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("concept progress user=%d concept=%d: %w", p.UserID, p.ConceptID, ErrConflict)
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

func (r *ConceptProgressRepository) create(ctx context.Context, q sqlx.ExtContext, p *models.ConceptProgress, now time.Time) error {
	query := q.Rebind(`
		INSERT INTO concept_progress (
			user_id, concept_id, mastery, status, easiness_factor, interval_days,
			repetitions, total_attempts, correct_attempts, last_quality,
			next_review_at, last_reviewed_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, q, &p.ID, query,
		p.UserID,
		p.ConceptID,
		p.Mastery,
		p.Status,
		p.EasinessFactor,
		p.IntervalDays,
		p.Repetitions,
		p.TotalAttempts,
		p.CorrectAttempts,
		p.LastQuality,
		utcPtr(p.NextReviewAt),
		utcPtr(p.LastReviewedAt),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("concept progress user=%d concept=%d: %w", p.UserID, p.ConceptID, ErrConflict)
		}
		return fmt.Errorf("failed to create concept progress: %w", err)
	}

	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetDue returns the concepts of a user whose next review is at or before now
func (r *ConceptProgressRepository) GetDue(ctx context.Context, q sqlx.ExtContext, userID int64, now time.Time) ([]models.ConceptProgress, error) {
	var progress []models.ConceptProgress
	err := sqlx.SelectContext(ctx, q, &progress, q.Rebind(`
		SELECT `+conceptProgressColumns+` FROM concept_progress
		WHERE user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?
		ORDER BY next_review_at ASC
	`), userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get due concepts: %w", err)
	}
	return progress, nil
}

// CountDue returns how many concepts of a user are due at now
func (r *ConceptProgressRepository) CountDue(ctx context.Context, q sqlx.ExtContext, userID int64, now time.Time) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, q.Rebind(`
		SELECT COUNT(*) FROM concept_progress
		WHERE user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?
	`), userID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count due concepts: %w", err)
	}
	return count, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
