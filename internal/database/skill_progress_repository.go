package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

const skillProgressColumns = "id, user_id, skill_id, status, mastery, unlocked_at, mastered_at, version, created_at, updated_at"

// SkillProgressRepository handles database operations for per-user skill progress
type SkillProgressRepository struct{}

// NewSkillProgressRepository creates a new repository instance
func NewSkillProgressRepository() *SkillProgressRepository {
	return &SkillProgressRepository{}
}

// ImplicitSkillProgress is the state of a skill without a stored row
func ImplicitSkillProgress(userID, skillID int64, hasPrerequisites bool) models.SkillProgress {
	return models.SkillProgress{
		UserID:  userID,
		SkillID: skillID,
		Status:  string(unlock.InitialStatus(hasPrerequisites)),
	}
}

// Get returns a user's progress on a skill, or its implicit state when no row exists
func (r *SkillProgressRepository) Get(ctx context.Context, q sqlx.ExtContext, userID, skillID int64, hasPrerequisites, forUpdate bool) (models.SkillProgress, error) {
	query := "SELECT " + skillProgressColumns + " FROM skill_progress WHERE user_id = ? AND skill_id = ?"
	if forUpdate {
		query = lockForUpdate(q, query)
	}

	var progress models.SkillProgress
	err := sqlx.GetContext(ctx, q, &progress, q.Rebind(query), userID, skillID)
	if errors.Is(err, sql.ErrNoRows) {
		return ImplicitSkillProgress(userID, skillID, hasPrerequisites), nil
	}
	if err != nil {
		return models.SkillProgress{}, fmt.Errorf("failed to get skill progress: %w", err)
	}
	return progress, nil
}

// GetByUser returns every stored skill progress row of a user keyed by skill
func (r *SkillProgressRepository) GetByUser(ctx context.Context, q sqlx.ExtContext, userID int64) (map[int64]models.SkillProgress, error) {
	var rows []models.SkillProgress
	err := sqlx.SelectContext(ctx, q, &rows,
		q.Rebind("SELECT "+skillProgressColumns+" FROM skill_progress WHERE user_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get skill progress: %w", err)
	}
	result := make(map[int64]models.SkillProgress, len(rows))
	for _, row := range rows {
		result[row.SkillID] = row
	}
	return result, nil
}

// MasteryMap returns the stored aggregate mastery of the given skills.
// Skills without a row are left out; readers treat them as 0.
func (r *SkillProgressRepository) MasteryMap(ctx context.Context, q sqlx.ExtContext, userID int64, skillIDs []int64) (map[int64]float64, error) {
	result := make(map[int64]float64, len(skillIDs))
	if len(skillIDs) == 0 {
		return result, nil
	}

	query, args, err := inQuery(q, "SELECT skill_id, mastery FROM skill_progress WHERE user_id = ? AND skill_id IN (?)", userID, skillIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		SkillID int64   `db:"skill_id"`
		Mastery float64 `db:"mastery"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get skill masteries: %w", err)
	}
	for _, row := range rows {
		result[row.SkillID] = row.Mastery
	}
	return result, nil
}

// Save writes progress with an optimistic version check, inserting the first time
func (r *SkillProgressRepository) Save(ctx context.Context, q sqlx.ExtContext, p *models.SkillProgress, now time.Time) error {
	if !unlock.SkillStatus(p.Status).IsValid() {
		return fmt.Errorf("skill progress user=%d skill=%d: unknown status %q", p.UserID, p.SkillID, p.Status)
	}
	now = now.UTC()
	if !p.Persisted() {
		err := sqlx.GetContext(ctx, q, &p.ID, q.Rebind(`
			INSERT INTO skill_progress (
				user_id, skill_id, status, mastery, unlocked_at, mastered_at, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
			RETURNING id
		`),
			p.UserID,
			p.SkillID,
			p.Status,
			p.Mastery,
			utcPtr(p.UnlockedAt),
			utcPtr(p.MasteredAt),
			now,
			now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("skill progress user=%d skill=%d: %w", p.UserID, p.SkillID, ErrConflict)
			}
			return fmt.Errorf("failed to create skill progress: %w", err)
		}
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		return nil
	}

	result, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE skill_progress SET
			status = ?,
			mastery = ?,
			unlocked_at = ?,
			mastered_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`),
		p.Status,
		p.Mastery,
		utcPtr(p.UnlockedAt),
		utcPtr(p.MasteredAt),
		now,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update skill progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("skill progress user=%d skill=%d: %w", p.UserID, p.SkillID, ErrConflict)
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}
