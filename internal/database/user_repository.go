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

const userColumns = "id, telegram_chat_id, username, notification_enabled, notification_hour, reviews_per_day, created_at, updated_at"

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, q.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

// Upsert inserts a new user or updates the settings of an existing one
func (r *UserRepository) Upsert(ctx context.Context, q sqlx.ExtContext, user *models.User, now time.Time) error {
	now = now.UTC()
	if user.ReviewsPerDay <= 0 {
		user.ReviewsPerDay = 20
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (
			id, telegram_chat_id, username, notification_enabled, notification_hour, reviews_per_day,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			telegram_chat_id = excluded.telegram_chat_id,
			username = excluded.username,
			notification_enabled = excluded.notification_enabled,
			notification_hour = excluded.notification_hour,
			reviews_per_day = excluded.reviews_per_day,
			updated_at = excluded.updated_at
	`),
		user.ID,
		user.TelegramChatID,
		user.Username,
		user.NotificationEnabled,
		user.NotificationHour,
		user.ReviewsPerDay,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create/update user: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

// EnsureExists creates a bare user row when none exists yet
func (r *UserRepository) EnsureExists(ctx context.Context, q sqlx.ExtContext, id int64, now time.Time) error {
	now = now.UTC()
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), id, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", id, err)
	}
	return nil
}

// GetUsersForNotification returns users with reminders enabled for the given hour.
// With requireChat only users linked to a Telegram chat are returned.
func (r *UserRepository) GetUsersForNotification(ctx context.Context, q sqlx.ExtContext, hour int, requireChat bool) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE notification_enabled = ? AND notification_hour = ?`
	if requireChat {
		query += ` AND telegram_chat_id <> 0`
	}
	query += ` ORDER BY id`

	var users []models.User
	if err := sqlx.SelectContext(ctx, q, &users, q.Rebind(query), true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
