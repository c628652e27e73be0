package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/pkg/models"
)

type fakeCounter map[int64]int

func (f fakeCounter) CountDue(_ context.Context, userID int64) (int, error) {
	return f[userID], nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  map[int64]int
	fails map[int64]bool
}

func (f *fakeNotifier) SendReminder(_ context.Context, user models.User, dueCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[user.ID] {
		return errors.New("chat not found")
	}
	if f.sent == nil {
		f.sent = map[int64]int{}
	}
	f.sent[user.ID] = dueCount
	return nil
}

func setup(t *testing.T, at time.Time, due fakeCounter, notifier *fakeNotifier) *Scheduler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "progression.db")
	require.NoError(t, database.Connect(cfg))
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	users := database.NewUserRepository()
	for _, u := range []models.User{
		{ID: 1, TelegramChatID: 101, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 5},
		{ID: 2, TelegramChatID: 102, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 20},
		{ID: 3, TelegramChatID: 103, NotificationEnabled: true, NotificationHour: 9},
		{ID: 4, TelegramChatID: 104, NotificationEnabled: true, NotificationHour: 10},
		{ID: 5, TelegramChatID: 105, NotificationEnabled: true, NotificationHour: 9},
	} {
		u := u
		require.NoError(t, users.Upsert(ctx, database.DB, &u, at))
	}

	s := New(logger.NewNop(), cfg, due, notifier)
	s.now = func() time.Time { return at }
	return s
}

func TestCheckAndSendReminders(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	notifier := &fakeNotifier{fails: map[int64]bool{5: true}}
	s := setup(t, at, fakeCounter{1: 12, 2: 3, 4: 7, 5: 2}, notifier)

	sent := s.CheckAndSendReminders(context.Background())

	// user 3 has nothing due, user 4 is due at 10:00, user 5 fails to deliver
	assert.Equal(t, 2, sent)
	assert.Equal(t, map[int64]int{1: 5, 2: 3}, notifier.sent)
}

type chatOnlyNotifier struct{ *fakeNotifier }

func (chatOnlyNotifier) RequiresChat() bool { return true }

func TestRemindersForUsersWithoutChat(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := fakeCounter{1: 2, 6: 4}

	notifier := &fakeNotifier{}
	s := setup(t, at, due, notifier)
	// created by a first answer: default hour 9, no chat
	require.NoError(t, database.NewUserRepository().EnsureExists(context.Background(), database.DB, 6, at))

	assert.Equal(t, 2, s.CheckAndSendReminders(context.Background()))
	assert.Equal(t, map[int64]int{1: 2, 6: 4}, notifier.sent)

	chat := chatOnlyNotifier{&fakeNotifier{}}
	s.notifier = chat
	assert.Equal(t, 1, s.CheckAndSendReminders(context.Background()))
	assert.Equal(t, map[int64]int{1: 2}, chat.sent)
}

func TestRemindersOutsideHours(t *testing.T) {
	at := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	s := setup(t, at, fakeCounter{1: 12}, notifier)

	assert.Zero(t, s.CheckAndSendReminders(context.Background()))
	assert.Empty(t, notifier.sent)
}

func TestRunManualCheck(t *testing.T) {
	at := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	s := setup(t, at, fakeCounter{4: 7}, notifier)

	ok, err := s.RunManualCheck(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, notifier.sent[4])

	ok, err = s.RunManualCheck(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.RunManualCheck(context.Background(), 99)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestNextHour(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), nextHour(time.Date(2026, 3, 1, 9, 30, 5, 0, time.UTC)))
}
