package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/workflow"
)

// TimeoutSweeper periodically asks the engine to act on overdue instances:
// auto-approving expired optional steps and escalating expired mandatory
// ones. The engine's versioned writes make the sweep safe to race against
// live decisions.
type TimeoutSweeper struct {
	engine *workflow.Engine
	logger *zap.Logger

	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTimeoutSweeper creates a sweeper that runs every interval.
func NewTimeoutSweeper(engine *workflow.Engine, interval time.Duration, logger *zap.Logger) *TimeoutSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TimeoutSweeper{
		engine:   engine,
		logger:   logger,
		interval: interval,
	}
}

// Start starts the sweeper loop
func (s *TimeoutSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("timeout sweeper is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("TimeoutSweeper started", zap.Duration("interval", s.interval))

	go s.loop(runCtx)
	return nil
}

// Stop stops the sweeper and waits for the current pass to finish
func (s *TimeoutSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("TimeoutSweeper stopped")
}

// Name returns the worker name for identification
func (s *TimeoutSweeper) Name() string {
	return "TimeoutSweeper"
}

func (s *TimeoutSweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			acted, err := s.engine.SweepTimeouts(ctx)
			if err != nil {
				s.logger.Error("Timeout sweep failed", zap.Error(err))
				continue
			}
			if acted > 0 {
				s.logger.Info("Timeout sweep completed", zap.Int("acted", acted))
			}
		}
	}
}
