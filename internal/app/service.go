// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	jobqueue "github.com/okian/baculator/internal/adapters/mq/queue"
	workerpool "github.com/okian/baculator/internal/adapters/mq/worker"
	repository "github.com/okian/baculator/internal/adapters/repository"
	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/internal/domain/dedupe"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/pkg/logger"
	"github.com/okian/baculator/pkg/metrics"
)

// Service implements the API dependencies for the BAC tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine    *bac.Engine
	store     repository.Store
	deduper   dedupe.Deduper
	jobQueue  *jobqueue.InMemoryQueue
	pool      *workerpool.Pool
	scheduler *workerpool.Scheduler

	snapMu    sync.RWMutex
	snapshots map[string]model.Snapshot

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	refreshInterval time.Duration
	clock           func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger  logger.Logger
	logOnce sync.Once
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many drink idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRefreshInterval sets the scheduler period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine sets the BAC engine.
func WithEngine(e *bac.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithStore sets the session store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock replaces the wall clock. It is the only place the service reads
// the current time.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10000,
		dedupeSize:      50000,
		refreshInterval: time.Minute,
		clock:           time.Now,
		snapshots:       make(map[string]model.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = bac.NewEngine()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	return s
}

// Engine returns the engine the service evaluates with.
func (s *Service) Engine() *bac.Engine { return s.engine }

func (s *Service) log() logger.Logger {
	s.logOnce.Do(func() {
		if s.logger == nil {
			s.logger = logger.Get().Named("service")
		}
	})
	return s.logger
}

// Start launches the refresh queue, worker pool and scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	log := s.log()
	log.Info(ctx, "starting bac service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.jobQueue, s)
	s.pool.Start(runCtx)

	s.scheduler = workerpool.NewScheduler(s.store, s.jobQueue,
		workerpool.WithInterval(s.refreshInterval),
		workerpool.WithClock(s.clock),
	)
	if err := s.scheduler.Start(runCtx); err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.started = true
	log.Info(ctx, "bac service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

// Stop gracefully shuts down the background components.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.log().Info(ctx, "stopping bac service...")

	if err := s.scheduler.Stop(); err != nil {
		s.log().Warn(ctx, "scheduler stop", logger.Error(err))
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.log().Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.log().Info(ctx, "bac service stopped")
}

// Started reports whether the background components are running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// RefreshNow asks the scheduler to run a tick immediately.
func (s *Service) RefreshNow() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.started {
		s.scheduler.Trigger()
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	cfg := s.engine.Config()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"dedupeEntries":   s.deduper.Size(),
		"refreshInterval": s.refreshInterval.String(),
		"legalLimit":      cfg.LegalLimit,
		"timezone":        cfg.Location.String(),
	}

	if open, err := s.store.Count(ctx); err == nil {
		stats["openSessions"] = open
	}

	s.snapMu.RLock()
	stats["snapshots"] = len(s.snapshots)
	s.snapMu.RUnlock()

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["busyWorkers"] = s.pool.Busy()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
