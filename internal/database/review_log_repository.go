package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/progression/pkg/models"
)

// ReviewLogRepository stores the history of scheduled reviews
type ReviewLogRepository struct{}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository() *ReviewLogRepository {
	return &ReviewLogRepository{}
}

// Create appends a review entry, assigning an ID when missing
func (r *ReviewLogRepository) Create(ctx context.Context, q sqlx.ExtContext, entry *models.ReviewLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO review_logs (
			id, event_id, user_id, concept_id, quality, is_correct, response_time_ms,
			interval_days, easiness_factor, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		entry.ID,
		entry.EventID,
		entry.UserID,
		entry.ConceptID,
		entry.Quality,
		entry.IsCorrect,
		entry.ResponseTimeMs,
		entry.IntervalDays,
		entry.EasinessFactor,
		entry.ReviewedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save review log: %w", err)
	}
	return nil
}

// GetByUser returns the most recent review entries of a user, newest first
func (r *ReviewLogRepository) GetByUser(ctx context.Context, q sqlx.ExtContext, userID int64, limit int) ([]models.ReviewLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.ReviewLog
	err := sqlx.SelectContext(ctx, q, &entries, q.Rebind(`
		SELECT id, event_id, user_id, concept_id, quality, is_correct, response_time_ms,
			interval_days, easiness_factor, reviewed_at
		FROM review_logs
		WHERE user_id = ?
		ORDER BY reviewed_at DESC, id
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs: %w", err)
	}
	return entries, nil
}

// CountByEvent returns how many entries an answer event produced
func (r *ReviewLogRepository) CountByEvent(ctx context.Context, q sqlx.ExtContext, eventID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind("SELECT COUNT(*) FROM review_logs WHERE event_id = ?"), eventID); err != nil {
		return 0, fmt.Errorf("failed to count review logs: %w", err)
	}
	return count, nil
}
