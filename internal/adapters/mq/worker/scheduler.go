package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/baculator/internal/adapters/mq/queue"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/pkg/logger"
	"github.com/okian/baculator/pkg/metrics"
)

const defaultRefreshInterval = time.Minute

// Sweeper is the slice of the session store the scheduler needs.
type Sweeper interface {
	CloseIdleSessions(ctx context.Context, now time.Time) (int, error)
	ActiveSessions(ctx context.Context, now time.Time) ([]model.Session, error)
}

// Scheduler periodically closes idle sessions and enqueues a refresh job for
// every session that is still active.
type Scheduler struct {
	sweeper  Sweeper
	queue    queue.Queue
	interval time.Duration
	clock    func() time.Time
	logger   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(sweeper Sweeper, q queue.Queue, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sweeper:  sweeper,
		queue:    q,
		interval: defaultRefreshInterval,
		clock:    time.Now,
		logger:   logger.Get().Named("scheduler"),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start launches the loop. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)

	s.logger.Info(ctx, "refresh scheduler started", logger.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for the in-flight tick.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done
	return nil
}

// Trigger asks a running loop to tick now. Extra triggers coalesce.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tickAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickAndLog(ctx)
		case <-s.trigger:
			s.tickAndLog(ctx)
		}
	}
}

func (s *Scheduler) tickAndLog(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error(ctx, "refresh tick failed", logger.Error(err))
	}
}

// Tick runs one sweep and returns the number of jobs enqueued.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRefreshLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	now := s.clock()

	closed, err := s.sweeper.CloseIdleSessions(ctx, now)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", "close_idle")
		return 0, err
	}
	if closed > 0 {
		metrics.RecordSessionsAutoClosed(closed)
		s.logger.Info(ctx, "closed idle sessions", logger.Int("count", closed))
	}

	active, err := s.sweeper.ActiveSessions(ctx, now)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", "active_sessions")
		return 0, err
	}
	metrics.UpdateActiveSessions(len(active))

	enqueued := 0
	for _, sess := range active {
		err := queue.Submit(ctx, s.queue, model.RefreshJob{UserID: sess.UserID, SessionID: sess.ID, Now: now})
		switch {
		case err == nil:
			enqueued++
		case errors.Is(err, queue.ErrFull):
			s.logger.Warn(ctx, "refresh queue full, job dropped", logger.String("user_id", sess.UserID))
		default:
			return enqueued, err
		}
	}

	metrics.UpdateRefreshLastUnix(float64(now.Unix()))
	s.logger.Debug(ctx, "refresh tick",
		logger.Int("active", len(active)),
		logger.Int("enqueued", enqueued),
	)
	return enqueued, nil
}
