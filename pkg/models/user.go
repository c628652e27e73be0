package models

import "time"

// User is a learner. TelegramChatID is zero for users without reminders.
type User struct {
	ID                  int64     `json:"id" db:"id"`
	TelegramChatID      int64     `json:"telegram_chat_id" db:"telegram_chat_id"`
	Username            string    `json:"username" db:"username"`
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for notifications (0-23)
	ReviewsPerDay       int       `json:"reviews_per_day" db:"reviews_per_day"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
