package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
)

// Fetcher produces today's observations from the backend.
type Fetcher interface {
	Snapshot(ctx context.Context, date string) ([]domain.Observation, error)
}

// HistoryStore persists the rolling observation history and run outputs.
type HistoryStore interface {
	Append(obs []domain.Observation) error
	Load() ([]domain.Observation, error)
	WriteSnapshot(snap domain.Snapshot) error
}

// SnapshotPublisher pushes a finished snapshot downstream.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Scheduler runs fetch-append-classify cycles on a fixed interval. The clock
// is injected so tests can advance time deterministically.
type Scheduler struct {
	driver    *Driver
	fetcher   Fetcher
	history   HistoryStore
	publisher SnapshotPublisher // optional
	clock     clockwork.Clock
	interval  time.Duration
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool

	mu     sync.RWMutex
	latest *domain.Snapshot
}

// NewScheduler creates a Scheduler. publisher may be nil to disable
// downstream publishing.
func NewScheduler(
	driver *Driver,
	fetcher Fetcher,
	history HistoryStore,
	publisher SnapshotPublisher,
	clock clockwork.Clock,
	interval time.Duration,
	opts Options,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Scheduler {
	return &Scheduler{
		driver:    driver,
		fetcher:   fetcher,
		history:   history,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one cycle immediately, then one per interval until the context
// is cancelled. A failed cycle is logged and retried at the next tick; the
// scheduler itself only stops on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.runCycle(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

// CheckReadiness returns nil once at least one cycle has produced a snapshot.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no snapshot produced yet")
	}
	return nil
}

// Latest returns the most recent snapshot, if any cycle has completed.
func (s *Scheduler) Latest() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return domain.Snapshot{}, false
	}
	return *s.latest, true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	date := s.clock.Now().UTC().Format("2006-01-02")

	obs, err := s.fetcher.Snapshot(ctx, date)
	if err != nil {
		s.logger.Error("fetch failed, skipping cycle", "date", date, "error", err)
		return
	}
	if err := s.history.Append(obs); err != nil {
		s.logger.Error("history append failed, skipping cycle", "date", date, "error", err)
		return
	}

	history, err := s.history.Load()
	if err != nil {
		s.logger.Error("history load failed, skipping cycle", "date", date, "error", err)
		return
	}

	snap, err := s.driver.Run(ctx, history, s.opts)
	if err != nil {
		// Driver already logged and counted the failure.
		return
	}

	if err := s.history.WriteSnapshot(snap); err != nil {
		s.logger.Error("snapshot write failed", "date", snap.Date, "error", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			s.logger.Error("snapshot publish failed", "date", snap.Date, "error", err)
		}
	}

	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
	s.ready.Store(true)
}
