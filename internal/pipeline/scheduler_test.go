package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
	"github.com/heatwatch/heat-risk-pipeline/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (m *mockFetcher) Snapshot(_ context.Context, date string) ([]domain.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.dates = append(m.dates, date)
	return []domain.Observation{
		{BarangayID: "a", Date: date, Temperature: 31, FacilityDistance: 1.0},
		{BarangayID: "b", Date: date, Temperature: 36, FacilityDistance: 0.5},
		{BarangayID: "c", Date: date, Temperature: 41, FacilityDistance: 0.2},
	}, nil
}

func (m *mockFetcher) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dates)
}

type memoryStore struct {
	mu      sync.Mutex
	history []domain.Observation
	written []domain.Snapshot
}

func (s *memoryStore) Append(obs []domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, obs...)
	return nil
}

func (s *memoryStore) Load() ([]domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Observation(nil), s.history...), nil
}

func (s *memoryStore) WriteSnapshot(snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, snap)
	return nil
}

func (s *memoryStore) writtenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.Snapshot
}

func (p *mockPublisher) PublishSnapshot(_ context.Context, snap domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, snap)
	return nil
}

func (p *mockPublisher) publishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// --- tests ---

func newScheduler(fetcher pipeline.Fetcher, store pipeline.HistoryStore, publisher pipeline.SnapshotPublisher, clock clockwork.Clock) *pipeline.Scheduler {
	metrics := observability.NewMetricsForTesting()
	driver := pipeline.New(nil, testLogger(), metrics)
	opts := pipeline.Options{UseRolling: true, Window: 7, Clusters: 3, Seed: 42}
	return pipeline.NewScheduler(driver, fetcher, store, publisher, clock, 24*time.Hour, opts, testLogger(), metrics)
}

func TestScheduler_RunsImmediatelyAndStoresSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.August, 29, 6, 0, 0, 0, time.UTC))
	fetcher := &mockFetcher{}
	store := &memoryStore{}
	publisher := &mockPublisher{}
	s := newScheduler(fetcher, store, publisher, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, ok := s.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	snap, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "2026-08-29", snap.Date)
	assert.Len(t, snap.Assessments, 3)
	assert.NoError(t, s.CheckReadiness(ctx))
	assert.Equal(t, 1, store.writtenCount())
	assert.Equal(t, 1, publisher.publishedCount())

	cancel()
	<-done
}

func TestScheduler_TicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.August, 29, 6, 0, 0, 0, time.UTC))
	fetcher := &mockFetcher{}
	store := &memoryStore{}
	s := newScheduler(fetcher, store, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return fetcher.fetchCount() == 1 }, time.Second, 5*time.Millisecond)

	// Wait for the ticker to be armed before advancing the fake clock.
	clock.BlockUntil(1)
	clock.Advance(24 * time.Hour)
	require.Eventually(t, func() bool { return fetcher.fetchCount() == 2 }, time.Second, 5*time.Millisecond)

	// The second cycle ran a day later, so it fetched the next date.
	snap, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "2026-08-30", snap.Date)

	cancel()
	<-done
}

func TestScheduler_NotReadyBeforeFirstCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newScheduler(&mockFetcher{}, &memoryStore{}, nil, clock)

	err := s.CheckReadiness(context.Background())
	require.Error(t, err)

	_, ok := s.Latest()
	assert.False(t, ok)
}

func TestScheduler_FetchFailureSkipsCycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &mockFetcher{err: errors.New("backend down")}
	store := &memoryStore{}
	s := newScheduler(fetcher, store, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	// Give the immediate cycle a moment to fail; nothing should be stored.
	time.Sleep(50 * time.Millisecond)
	assert.Error(t, s.CheckReadiness(ctx))
	assert.Equal(t, 0, store.writtenCount())

	cancel()
	<-done
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newScheduler(&mockFetcher{}, &memoryStore{}, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
}
