package alerting

import (
	"context"
	"log/slog"
	"time"
)

// Default lifecycle sweep parameters
const (
	DefaultSweepInterval = 60 * time.Second
	DefaultResolveGrace  = 5 * time.Minute
)

// Sweeper periodically auto-resolves stale alerts. One sweeper runs for the
// lifetime of the process.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a lifecycle sweeper. Non-positive interval or grace fall
// back to the defaults.
func NewSweeper(engine *Engine, interval, grace time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if grace <= 0 {
		grace = DefaultResolveGrace
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		grace:    grace,
		logger:   logger,
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Starting alert lifecycle sweeper", "interval", s.interval, "grace", s.grace)
	go s.run(ctx)
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Alert lifecycle sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if resolved := s.engine.ResolveExpired(time.Now().UTC(), s.grace); resolved > 0 {
				s.logger.Info("Lifecycle sweep resolved alerts", "count", resolved)
			}
		case <-ctx.Done():
			return
		}
	}
}
