package services

import (
	"context"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"go.uber.org/zap"
)

// Sweeper expires idle practice sessions and forgets old finished ones.
type Sweeper interface {
	Sweep() (expired, removed int)
}

// Reaper sweeps the practice manager on a fixed interval.
type Reaper struct {
	log      *zap.Logger
	clock    timeutil.Clock
	sweeper  Sweeper
	interval time.Duration
}

func NewReaper(log *zap.Logger, clock timeutil.Clock, sweeper Sweeper, interval time.Duration) *Reaper {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{
		log:      log.With(zap.String("component", "reaper")),
		clock:    clock,
		sweeper:  sweeper,
		interval: interval,
	}
}

// Run sweeps until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info("Starting practice session reaper...", zap.Duration("interval", r.interval))
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			r.runSweep()
		}
	}
}

func (r *Reaper) runSweep() {
	expired, removed := r.sweeper.Sweep()
	if expired > 0 || removed > 0 {
		r.log.Info("Swept practice sessions", zap.Int("expired", expired), zap.Int("removed", removed))
		return
	}
	r.log.Debug("Running practice session sweep")
}
