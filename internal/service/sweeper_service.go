package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/pkg/jobs"
)

type expiredSessionSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// SweeperConfig controls the periodic expired-session sweep.
type SweeperConfig struct {
	Interval time.Duration
	Workers  int
}

// SweeperService marks scheduled sessions whose end time has passed as
// completed. Sweeps run on a ticker and are executed by a worker queue
// so a slow database never blocks the schedule.
type SweeperService struct {
	sessions expiredSessionSweeper
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperService builds the sweep job runner.
func NewSweeperService(sessions expiredSessionSweeper, logger *zap.Logger, cfg SweeperConfig) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	svc := &SweeperService{
		sessions: sessions,
		interval: cfg.Interval,
		logger:   logger,
		now:      time.Now,
	}
	svc.queue = jobs.NewQueue("session-sweeper", svc.handle, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return svc
}

// Start launches the queue workers and the tick loop.
func (s *SweeperService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Start(ctx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "sweep"}); err != nil {
					s.logger.Warn("failed to enqueue sweep", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the tick loop and drains the workers.
func (s *SweeperService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.queue.Stop()
}

// SweepNow runs one sweep synchronously.
func (s *SweeperService) SweepNow(ctx context.Context) (int64, error) {
	swept, err := s.sessions.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info("swept expired sessions", zap.Int64("count", swept))
	}
	return swept, nil
}

func (s *SweeperService) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.SweepNow(ctx)
	return err
}
