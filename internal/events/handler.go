package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/doughall/jobconsole/internal/jobcache"
)

// JobStore is the part of the job cache events write to.
// *jobcache.Cache satisfies it.
type JobStore interface {
	Save(j *jobcache.CachedJob) error
	Delete(id string) error
}

// Resyncer requests a full job list refresh. *poller.Poller satisfies it.
type Resyncer interface {
	Trigger()
}

// Handler applies events to the job cache. It is shared by every transport.
type Handler struct {
	store  JobStore
	resync Resyncer
	dedup  *Deduplicator
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a handler. resync may be nil, in which case
// jobs_resync events are ignored.
func NewHandler(store JobStore, resync Resyncer, dedup *Deduplicator, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		resync: resync,
		dedup:  dedup,
		logger: logger,
		now:    time.Now,
	}
}

// Handle decodes and applies one event. Errors wrapping ErrMalformed mean
// the event should be discarded; other errors are worth a redelivery.
// Unknown event types are logged and ignored.
func (h *Handler) Handle(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	evLogger := h.logger.With(
		slog.String("event_type", env.Type),
		slog.String("event_id", env.ID),
	)

	if h.dedup != nil && !h.dedup.MarkSeen(env.ID) {
		return nil
	}

	switch env.Type {
	case TypeJobUpdated:
		var job client.Job
		if err := json.Unmarshal(env.Payload, &job); err != nil || job.ID == "" {
			return fmt.Errorf("%w: job_updated payload", ErrMalformed)
		}
		if err := h.store.Save(jobcache.FromJob(job, h.now())); err != nil {
			return fmt.Errorf("save job %s: %w", job.ID, err)
		}
		evLogger.Info("job updated from event",
			slog.String("job_id", job.ID),
			slog.String("cron_expression", job.CronExpression),
		)

	case TypeJobDeleted:
		var p JobDeletedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ID == "" {
			return fmt.Errorf("%w: job_deleted payload", ErrMalformed)
		}
		if err := h.store.Delete(p.ID); err != nil {
			return fmt.Errorf("delete job %s: %w", p.ID, err)
		}
		evLogger.Info("job deleted from event", slog.String("job_id", p.ID))

	case TypeJobsResync:
		if h.resync != nil {
			h.resync.Trigger()
		}
		evLogger.Debug("resync requested")

	default:
		evLogger.Warn("unknown event type")
	}
	return nil
}
