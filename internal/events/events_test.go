package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/progression/internal/logger"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestEventJSON(t *testing.T) {
	ev := New(SkillUnlocked, 7, 3, "answer-1", t0)
	require.NotEmpty(t, ev.ID)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"skill_unlocked"`)
	assert.Contains(t, string(raw), `"skill_id":3`)
}

func TestMemoryPublisher(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Publish(context.Background(), New(SkillMastered, 7, 1, "", t0)))
	require.NoError(t, NewNop().Publish(context.Background(), New(SkillMastered, 7, 1, "", t0)))

	got := m.Events()
	require.Len(t, got, 1)
	assert.Equal(t, SkillMastered, got[0].Type)
}

func TestRedisPublisherRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub, err := NewRedisPublisher(logger.NewNop(), addr, "progression-test")
	require.NoError(t, err)
	defer pub.Close()

	received := make(chan Event, 1)
	require.NoError(t, pub.Subscribe(ctx, func(ev Event) { received <- ev }))

	sent := New(SkillUnlocked, 7, 3, "answer-1", t0)
	require.NoError(t, pub.Publish(ctx, sent))

	select {
	case ev := <-received:
		assert.Equal(t, sent.ID, ev.ID)
		assert.True(t, sent.OccurredAt.Equal(ev.OccurredAt))
	case <-ctx.Done():
		t.Fatal("event not received")
	}
}
