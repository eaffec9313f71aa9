package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/repository"
)

const sweepTimeout = 30 * time.Second

// CleanupJob deletes decisions created before the retention cutoff. Expiry
// is evaluated on read, so this only bounds table growth and never changes
// what a status poll reports for a live decision.
type CleanupJob struct {
	decisions repository.PendingDecisionRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupJob(
	decisions repository.PendingDecisionRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		decisions: decisions,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Start sweeps once immediately and then every interval until Stop or ctx ends.
func (j *CleanupJob) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx)
	}()

	log.Info().
		Dur("interval", j.interval).
		Dur("retention", j.retention).
		Msg("decision cleanup started")
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (j *CleanupJob) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	j.wg.Wait()
	log.Info().Msg("decision cleanup stopped")
}

func (j *CleanupJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *CleanupJob) sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	n, err := j.decisions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("failed to delete old decisions")
		return 0
	}
	if n > 0 {
		log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("deleted old decisions")
	}
	return n
}
