// Package outbox - Flusher Component
//
// This file implements the flusher that replays queued schedule updates
// against the jobs API. Updates are queued when a schedule change cannot be
// sent (offline, API down) and are sent in queue order once the server is
// reachable.
//
// Key features:
//   - Configurable flush interval (flush_interval, default 30 seconds)
//   - Updates are sent one at a time, oldest first
//   - A job deleted on the server drops its update instead of retrying forever
//   - The first transport failure ends the cycle so order is preserved
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/doughall/jobconsole/internal/client"
)

// batchSize caps how many updates one cycle sends.
const batchSize = 50

// Updater sends a schedule change to the jobs API.
// *client.Client satisfies it; tests use a fake.
type Updater interface {
	UpdateJobSchedule(ctx context.Context, id string, update client.ScheduleUpdate) (*client.Job, error)
}

// FlushResult summarizes one flush cycle.
type FlushResult struct {
	Sent    int
	Dropped int
	Pending int
}

// Flusher periodically sends queued updates.
type Flusher struct {
	queue    *Queue
	updater  Updater
	logger   *slog.Logger
	interval time.Duration

	// OnSent, if set, is called with the server's copy of each job after
	// its update was accepted.
	OnSent func(job *client.Job)

	// Synchronization for graceful shutdown
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFlusher creates a flusher that runs every interval.
func NewFlusher(queue *Queue, updater Updater, interval time.Duration, logger *slog.Logger) *Flusher {
	return &Flusher{
		queue:    queue,
		updater:  updater,
		logger:   logger.With(slog.String("component", "outbox")),
		interval: interval,
	}
}

// Run starts the flush loop. It blocks until the context is cancelled and
// flushes once immediately on startup.
func (f *Flusher) Run(ctx context.Context) {
	internalCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	f.logger.Info("outbox flusher started",
		slog.Duration("interval", f.interval),
	)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.cycle(internalCtx)

	for {
		select {
		case <-internalCtx.Done():
			f.logger.Info("outbox flusher stopping")
			return
		case <-ticker.C:
			f.cycle(internalCtx)
		}
	}
}

func (f *Flusher) cycle(ctx context.Context) {
	f.wg.Add(1)
	defer f.wg.Done()

	if _, err := f.Flush(ctx); err != nil {
		f.logger.Warn("outbox flush incomplete, will retry next cycle",
			slog.String("error", err.Error()),
		)
	}
}

// Flush sends pending updates in queue order until the queue is empty or a
// send fails. Updates for jobs the server no longer has are dropped. The
// returned error is the failure that stopped the cycle, if any.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	default:
	}

	updates, err := f.queue.Peek(batchSize)
	if err != nil {
		return res, err
	}
	if len(updates) == 0 {
		f.logger.Debug("no pending updates")
		return res, nil
	}

	f.logger.Info("flushing schedule updates",
		slog.Int("count", len(updates)),
	)

	var sendErr error
	for _, u := range updates {
		job, err := f.updater.UpdateJobSchedule(ctx, u.JobID, client.ScheduleUpdate{
			CronExpression: u.CronExpression,
			Enabled:        u.Enabled,
		})
		switch {
		case err == nil:
			res.Sent++
			if f.OnSent != nil {
				f.OnSent(job)
			}
		case errors.Is(err, client.ErrNotFound):
			res.Dropped++
			f.logger.Warn("job no longer exists, dropping queued update",
				slog.String("job_id", u.JobID),
			)
		default:
			if markErr := f.queue.MarkAttempt(u.ID); markErr != nil {
				f.logger.Warn("failed to record attempt",
					slog.Uint64("update_id", u.ID),
					slog.String("error", markErr.Error()),
				)
			}
			sendErr = err
		}
		if sendErr != nil {
			break
		}
		if err := f.queue.Remove([]uint64{u.ID}); err != nil {
			// Sent but still queued; the next cycle resends it.
			sendErr = err
			break
		}
	}

	res.Pending, _ = f.queue.Count()
	if res.Sent > 0 || res.Dropped > 0 {
		f.logger.Info("schedule updates flushed",
			slog.Int("sent", res.Sent),
			slog.Int("dropped", res.Dropped),
			slog.Int("pending", res.Pending),
		)
	}
	return res, sendErr
}

// Shutdown stops the flusher and waits for an in-flight cycle to complete.
// It respects the shutdown context's deadline.
func (f *Flusher) Shutdown(ctx context.Context) error {
	f.logger.Info("outbox flusher shutdown initiated")

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("outbox flusher shutdown complete")
		return nil
	case <-ctx.Done():
		f.logger.Warn("outbox flusher shutdown timed out")
		return ctx.Err()
	}
}
