package jobcache

import (
	"context"
	"log/slog"
	"time"
)

// TrackInterval is how often the Tracker checks for due jobs.
const TrackInterval = 30 * time.Second

// Tracker keeps NextRunAt current while the console is running. Jobs run on
// the platform, not here; the tracker only logs that a job became due and
// moves its next run forward so Upcoming stays correct between syncs.
type Tracker struct {
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over cache.
func NewTracker(cache *Cache, logger *slog.Logger) *Tracker {
	return &Tracker{
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Run starts the tracking loop (blocking). It checks once immediately to
// catch jobs that came due while the console was stopped, then every
// TrackInterval.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("job tracker started")
	ticker := time.NewTicker(TrackInterval)
	defer ticker.Stop()

	t.advance()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("job tracker stopping")
			return
		case <-ticker.C:
			t.advance()
		}
	}
}

// advance rolls every due job forward to its next fire time after now and
// returns how many jobs were due.
func (t *Tracker) advance() int {
	now := t.now()
	due, err := t.cache.Due(now)
	if err != nil {
		t.logger.Error("failed to get due jobs",
			slog.String("error", err.Error()),
		)
		return 0
	}

	if len(due) == 0 {
		t.logger.Debug("no due jobs")
		return 0
	}

	for _, job := range due {
		t.logger.Info("job due",
			slog.String("job_id", job.ID),
			slog.String("name", job.Name),
			slog.Time("scheduled_at", job.NextRunAt),
		)

		job.NextRunAt = CalculateNextRun(job, now)
		if err := t.cache.Save(job); err != nil {
			t.logger.Error("failed to update next run time",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		t.logger.Debug("updated next run time",
			slog.String("job_id", job.ID),
			slog.Time("next_run_at", job.NextRunAt),
		)
	}
	return len(due)
}

// Shutdown is a no-op; context cancellation stops Run.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.logger.Info("job tracker shutdown initiated")
	return nil
}
