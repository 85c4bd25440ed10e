// Package poller implements the job sync loop with jitter.
// It periodically lists the project's jobs from the API and replaces the
// local job cache with the result, so upcoming-run views stay correct.
//
// The polling loop uses time.Timer instead of time.Ticker to support
// variable intervals with jitter. This prevents "thundering herd" problems
// where many consoles poll the API simultaneously.
//
// The poller coordinates graceful shutdown using sync.WaitGroup to track
// in-flight work, ensuring an active sync completes before exit.
//
// Usage:
//
//	p := poller.NewPoller(apiClient, cache, 60*time.Second, 15*time.Second, logger)
//	go p.Run(ctx)
//	// ... on shutdown:
//	p.Shutdown(shutdownCtx)
package poller

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doughall/jobconsole/internal/client"
)

// JobLister fetches the current job list. *client.Client satisfies it.
type JobLister interface {
	ListJobs(ctx context.Context) ([]client.Job, error)
}

// JobStore receives each fetched job list. *jobcache.Cache satisfies it.
type JobStore interface {
	ReplaceAll(jobs []client.Job, now time.Time) error
}

// Poller manages the periodic job sync loop.
type Poller struct {
	lister       JobLister
	store        JobStore
	baseInterval time.Duration
	jitter       time.Duration
	logger       *slog.Logger

	// trigger requests an immediate sync; buffered so Trigger never blocks.
	trigger chan struct{}

	// Synchronization for graceful shutdown
	wg       sync.WaitGroup
	running  atomic.Bool
	lastSync atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller creates a new Poller.
//
// Parameters:
//   - lister: API client used to list jobs
//   - store: cache that receives each fetched list
//   - interval: Base polling interval (e.g., 60 seconds)
//   - jitter: Maximum random jitter added to interval (e.g., 15 seconds)
//   - logger: Structured logger for poll events
//
// The actual poll interval will be: interval + random(0, jitter)
func NewPoller(lister JobLister, store JobStore, interval, jitter time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		lister:       lister,
		store:        store,
		baseInterval: interval,
		jitter:       jitter,
		logger:       logger.With(slog.String("component", "poller")),
		trigger:      make(chan struct{}, 1),
	}
}

// Trigger asks the loop to sync now instead of waiting for the timer.
// Calls while a sync is already pending are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
// The loop:
//
//  1. Syncs immediately
//  2. Waits for the interval (with jitter) or a Trigger
//  3. Syncs again
//  4. Repeats
//
// Run should be called in a goroutine. To stop the poller, cancel the
// context or call Shutdown() to wait for in-flight work.
func (p *Poller) Run(ctx context.Context) {
	internalCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	p.running.Store(true)
	defer p.running.Store(false)

	p.logger.Info("poller starting",
		slog.Duration("interval", p.baseInterval),
		slog.Duration("jitter", p.jitter),
	)

	p.Sync(internalCtx)

	for {
		interval := p.nextInterval()
		p.logger.Debug("waiting for next poll",
			slog.Duration("interval", interval),
		)

		// Use Timer instead of Ticker for variable intervals
		timer := time.NewTimer(interval)

		select {
		case <-internalCtx.Done():
			timer.Stop()
			p.logger.Info("poller stopped")
			return

		case <-p.trigger:
			timer.Stop()
			p.logger.Debug("sync triggered")
			p.Sync(internalCtx)

		case <-timer.C:
			p.Sync(internalCtx)
		}
	}
}

func (p *Poller) nextInterval() time.Duration {
	if p.jitter <= 0 {
		return p.baseInterval
	}
	return p.baseInterval + time.Duration(rand.Int63n(int64(p.jitter)))
}

// Sync performs a single list-and-store cycle. Errors are logged; the next
// cycle retries. It returns true when the cache was updated.
func (p *Poller) Sync(ctx context.Context) bool {
	p.wg.Add(1)
	defer p.wg.Done()

	select {
	case <-ctx.Done():
		return false
	default:
	}

	jobs, err := p.lister.ListJobs(ctx)
	if err != nil {
		p.logger.Error("job sync failed",
			slog.String("error", err.Error()),
		)
		return false
	}

	now := time.Now()
	if err := p.store.ReplaceAll(jobs, now); err != nil {
		p.logger.Error("failed to update job cache",
			slog.String("error", err.Error()),
		)
		return false
	}

	p.lastSync.Store(now.UnixNano())
	p.logger.Debug("jobs synced", slog.Int("count", len(jobs)))
	return true
}

// LastSync returns the time of the last successful sync, or the zero time.
func (p *Poller) LastSync() time.Time {
	ns := p.lastSync.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Shutdown stops the poller and waits for in-flight work to complete.
// It respects the shutdown context's deadline/timeout.
func (p *Poller) Shutdown(ctx context.Context) error {
	p.logger.Info("poller shutting down")

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller shutdown complete")
		return nil
	case <-ctx.Done():
		p.logger.Warn("poller shutdown timed out, some work may be incomplete")
		return ctx.Err()
	}
}

// IsHealthy returns true if the poller loop is running.
// This is used by the systemd watchdog to determine service health.
func (p *Poller) IsHealthy() bool {
	return p.running.Load()
}
