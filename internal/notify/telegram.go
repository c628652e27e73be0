package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/progression/internal/logger"
	"github.com/example/progression/pkg/models"
)

// Callback data of the reminder button
const StartReviewCallback = "start_review"

// sender is the part of *tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends due-review reminders through a Telegram bot
type TelegramNotifier struct {
	log *logger.Logger
	api sender
}

// NewTelegramNotifier authorizes the bot token
func NewTelegramNotifier(log *logger.Logger, token string) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return newTelegramNotifier(log, api), nil
}

func newTelegramNotifier(log *logger.Logger, api sender) *TelegramNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &TelegramNotifier{log: log.With("service", "TelegramNotifier"), api: api}
}

// SendReminder implements scheduler.Notifier
func (n *TelegramNotifier) SendReminder(ctx context.Context, user models.User, dueCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.TelegramChatID == 0 {
		return fmt.Errorf("user %d has no telegram chat", user.ID)
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, ReminderText(dueCount))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start review", StartReviewCallback),
		),
	)

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", user.ID, err)
	}
	n.log.Debug("reminder sent", "user_id", user.ID, "due", dueCount)
	return nil
}

// RequiresChat implements scheduler.ChatNotifier
func (n *TelegramNotifier) RequiresChat() bool { return true }

// ReminderText formats the reminder message
func ReminderText(count int) string {
	noun := "concepts"
	if count == 1 {
		noun = "concept"
	}
	return fmt.Sprintf("You have %d %s to review! Press Start review to begin.", count, noun)
}

// LogNotifier writes reminders to the log; used when no bot token is configured
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) SendReminder(_ context.Context, user models.User, dueCount int) error {
	n.log.Info("reminder", "user_id", user.ID, "due", dueCount, "text", ReminderText(dueCount))
	return nil
}
