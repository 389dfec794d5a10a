package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep() (int, int) {
	s.calls.Add(1)
	return 1, 0
}

func TestReaperSweepsOnInterval(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sweeper := &countingSweeper{}
	core, logs := observer.New(zap.DebugLevel)
	r := NewReaper(zap.New(core), clock, sweeper, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

	clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return sweeper.calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Swept practice sessions").Len() == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, clock.Tickers())
}

func TestNewReaperDefaults(t *testing.T) {
	t.Parallel()
	r := NewReaper(zap.NewNop(), nil, &countingSweeper{}, 0)
	assert.Equal(t, 30*time.Second, r.interval)
	assert.IsType(t, timeutil.RealClock{}, r.clock)
}
