package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPublisher(t *testing.T) *RedisPublisher {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisPublisher(zap.NewNop(), rdb, "")
}

func TestDecode(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t)
	ev := practice.Event{
		Type:      practice.EventTick,
		SessionID: uuid.New(),
		Time:      time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC),
		Tick:      &practice.TickResult{PoseID: "tree", Accuracy: 88, Detected: true, Feedback: []string{"ok"}},
	}

	t.Run("events from other instances pass", func(t *testing.T) {
		t.Parallel()
		raw, err := json.Marshal(envelope{Origin: "other", Event: ev})
		require.NoError(t, err)
		got, ok := p.decode(raw)
		require.True(t, ok)
		assert.Equal(t, ev.SessionID, got.SessionID)
		assert.Equal(t, 88, got.Tick.Accuracy)
		assert.True(t, got.Time.Equal(ev.Time))
	})

	t.Run("own events are skipped", func(t *testing.T) {
		t.Parallel()
		raw, err := json.Marshal(envelope{Origin: p.origin, Event: ev})
		require.NoError(t, err)
		_, ok := p.decode(raw)
		assert.False(t, ok)
	})

	t.Run("garbage is skipped", func(t *testing.T) {
		t.Parallel()
		_, ok := p.decode([]byte("{"))
		assert.False(t, ok)
	})
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t)
	assert.Equal(t, "free-yoga:practice", p.channel)
	for i := 0; i < queueSize+5; i++ {
		p.Publish(practice.Event{Type: practice.EventState, SessionID: uuid.New()})
	}
	assert.Len(t, p.queue, queueSize)
}
