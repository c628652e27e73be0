package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a progression event
type Type string

const (
	SkillUnlocked Type = "skill_unlocked"
	SkillMastered Type = "skill_mastered"
)

// Event is published after an answer transaction committed
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     int64     `json:"user_id"`
	SkillID    int64     `json:"skill_id"`
	AnswerID   string    `json:"answer_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event with a fresh ID
func New(t Type, userID, skillID int64, answerID string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		SkillID:    skillID,
		AnswerID:   answerID,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers progression events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type nopPublisher struct{}

// NewNop returns a publisher that drops every event
func NewNop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// Memory keeps published events in process, for tests and the CLI
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
