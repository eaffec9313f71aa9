package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/claude-afk/afk/internal/model"
)

type mockDecisionRepo struct {
	mu          sync.Mutex
	cutoffs     []time.Time
	deleteCount int64
	deleteErr   error
}

func (m *mockDecisionRepo) FindByID(ctx context.Context, id string) (*model.PendingDecision, error) {
	return nil, nil
}

func (m *mockDecisionRepo) Create(ctx context.Context, params model.CreatePendingDecisionParams) (*model.PendingDecision, error) {
	return nil, nil
}

func (m *mockDecisionRepo) Resolve(ctx context.Context, id string, outcome model.DecisionOutcome, decidedAt time.Time) (bool, error) {
	return false, nil
}

func (m *mockDecisionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleteCount, m.deleteErr
}

func (m *mockDecisionRepo) calls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.cutoffs...)
}

func TestCleanupJob_Sweep(t *testing.T) {
	t.Run("deletes decisions older than retention", func(t *testing.T) {
		repo := &mockDecisionRepo{deleteCount: 3}
		job := NewCleanupJob(repo, 24*time.Hour, time.Hour)
		now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
		job.now = func() time.Time { return now }

		assert.Equal(t, int64(3), job.sweep(context.Background()))

		calls := repo.calls()
		assert.Len(t, calls, 1)
		assert.True(t, calls[0].Equal(now.Add(-24*time.Hour)))
	})

	t.Run("survives repository errors", func(t *testing.T) {
		repo := &mockDecisionRepo{deleteErr: errors.New("db down")}
		job := NewCleanupJob(repo, time.Hour, time.Hour)

		assert.Equal(t, int64(0), job.sweep(context.Background()))
		assert.Len(t, repo.calls(), 1)
	})
}

func TestCleanupJob_StartStop(t *testing.T) {
	repo := &mockDecisionRepo{}
	job := NewCleanupJob(repo, time.Hour, 10*time.Millisecond)

	job.Start(context.Background())
	assert.Eventually(t, func() bool { return len(repo.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	job.Stop()

	stopped := len(repo.calls())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, len(repo.calls()), "no sweeps after Stop returns")
}

func TestCleanupJob_StopsWithContext(t *testing.T) {
	repo := &mockDecisionRepo{}
	job := NewCleanupJob(repo, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)
	assert.Eventually(t, func() bool { return len(repo.calls()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	job.wg.Wait()
	job.Stop()
}

func TestCleanupJob_StopWithoutStart(t *testing.T) {
	assert.NotPanics(t, NewCleanupJob(&mockDecisionRepo{}, time.Hour, time.Hour).Stop)
}
