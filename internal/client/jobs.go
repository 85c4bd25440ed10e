// jobs.go provides the job resource calls: listing, fetching and patching
// the schedule of a job. Only the fields the schedule editor needs are
// decoded; the API may send more.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Job is the schedule-relevant view of a job resource.
type Job struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	CronExpression string    `json:"cron_expression"`
	Enabled        bool      `json:"enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ScheduleUpdate is the PATCH body for a job's schedule.
type ScheduleUpdate struct {
	CronExpression string `json:"cron_expression"`
	Enabled        bool   `json:"enabled"`
}

// ListJobs returns every job of the configured project.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.jobsPath(""), nil, &result); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	c.logger.Debug("jobs listed", slog.Int("count", len(result.Jobs)))
	return result.Jobs, nil
}

// GetJob fetches a single job. Returns an error wrapping ErrNotFound when the
// job does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodGet, c.jobsPath(id), nil, &job); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateJobSchedule replaces the cron expression and enabled flag of a job and
// returns the job as stored by the server.
func (c *Client) UpdateJobSchedule(ctx context.Context, id string, update ScheduleUpdate) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodPatch, c.jobsPath(id), update, &job); err != nil {
		return nil, fmt.Errorf("update schedule of job %s: %w", id, err)
	}

	c.logger.Info("job schedule updated",
		slog.String("job_id", id),
		slog.String("cron_expression", job.CronExpression),
	)
	return &job, nil
}
