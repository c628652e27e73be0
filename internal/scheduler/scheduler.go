package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/pkg/models"
)

// Notifier delivers a due-review reminder to a user
type Notifier interface {
	SendReminder(ctx context.Context, user models.User, dueCount int) error
}

// ChatNotifier is implemented by notifiers that can only reach users linked to a chat
type ChatNotifier interface {
	RequiresChat() bool
}

// DueCounter reports how many concepts a user has due now
type DueCounter interface {
	CountDue(ctx context.Context, userID int64) (int, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	log       *logger.Logger
	scheduler *gocron.Scheduler
	notifier  Notifier
	due       DueCounter
	users     *database.UserRepository
	now       func() time.Time

	startHour int
	endHour   int
}

// New creates a new scheduler instance. Hours are UTC.
func New(log *logger.Logger, cfg *config.Config, due DueCounter, notifier Notifier) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		log:       log.With("service", "ReminderScheduler"),
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		due:       due,
		users:     database.NewUserRepository(),
		now:       time.Now,
		startHour: cfg.NotificationStartHour,
		endHour:   cfg.NotificationEndHour,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Hourly check for users who need notifications
	_, err := s.scheduler.Every(1).Hour().StartAt(nextHour(s.now())).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.CheckAndSendReminders(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// CheckAndSendReminders notifies every user whose reminder hour is now and who
// has reviews due. It returns the number of reminders sent.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) int {
	currentHour := s.now().UTC().Hour()
	if currentHour < s.startHour || currentHour > s.endHour {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", currentHour, "start", s.startHour, "end", s.endHour)
		return 0
	}

	users, err := s.users.GetUsersForNotification(ctx, database.DB, currentHour, s.requiresChat())
	if err != nil {
		s.log.Error("failed to get users for notification", "error", err)
		return 0
	}

	sent := 0
	for _, user := range users {
		ok, err := s.remind(ctx, user)
		if err != nil {
			s.log.Warn("failed to send reminder", "user_id", user.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	s.log.Info("reminders sent", "hour", currentHour, "users", len(users), "sent", sent)
	return sent
}

// RunManualCheck forces a reminder check for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.GetByID(ctx, database.DB, userID)
	if err != nil {
		return false, err
	}
	return s.remind(ctx, *user)
}

func (s *Scheduler) remind(ctx context.Context, user models.User) (bool, error) {
	count, err := s.due.CountDue(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	// Don't announce more than the user's daily preference
	if user.ReviewsPerDay > 0 && count > user.ReviewsPerDay {
		count = user.ReviewsPerDay
	}
	if err := s.notifier.SendReminder(ctx, user, count); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) requiresChat() bool {
	cn, ok := s.notifier.(ChatNotifier)
	return ok && cn.RequiresChat()
}

func nextHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour).Add(time.Hour)
}
