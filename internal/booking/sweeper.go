package booking

import (
	"context"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
)

const DefaultSweepInterval = 30 * time.Second

// Sweeper runs Coordinator.SweepExpired on a fixed interval.
type Sweeper struct {
	coordinator *Coordinator
	interval    time.Duration
}

func NewSweeper(coordinator *Coordinator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{coordinator: coordinator, interval: interval}
}

// Run sweeps once immediately, then every interval, until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info(ctx, "expiration sweeper started", "interval", s.interval.String())
	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			logging.Info(context.WithoutCancel(ctx), "expiration sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.coordinator.SweepExpired(ctx)
	if err != nil && ctx.Err() == nil {
		logging.Error(ctx, "expiration sweep failed", "expired", n, "error", err.Error())
		return
	}
	if n > 0 {
		logging.Info(ctx, "expiration sweep finished", "expired", n)
	}
}
