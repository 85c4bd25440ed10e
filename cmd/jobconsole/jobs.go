package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/doughall/jobconsole/internal/editor"
	"github.com/doughall/jobconsole/internal/jobcache"
	"github.com/doughall/jobconsole/internal/outbox"
	"github.com/doughall/jobconsole/internal/schedule"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// requestTimeout bounds one interactive API call including retries.
const requestTimeout = 60 * time.Second

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs and edit their schedules",
	}
	cmd.AddCommand(
		newJobsListCmd(a),
		newJobsShowCmd(a),
		newJobsScheduleCmd(a),
		newJobsUpcomingCmd(a),
		newJobsOutboxCmd(a),
		newJobsFlushCmd(a),
	)
	return cmd
}

// openCache opens the job cache, creating the data directory if needed.
func (a *app) openCache() (*jobcache.Cache, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return jobcache.Open(a.cfg.JobCachePath())
}

// openOutbox opens the outbox, creating the data directory if needed.
func (a *app) openOutbox() (*outbox.Queue, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return outbox.Open(a.cfg.OutboxPath())
}

// offline reports whether err means the API could not be reached, as
// opposed to the API rejecting the request.
func offline(err error) bool {
	if err == nil || errors.Is(err, client.ErrNotFound) || errors.Is(err, client.ErrUnauthorized) ||
		errors.Is(err, client.ErrNoAPIKey) {
		return false
	}
	var se *client.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func newJobsListCmd(a *app) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the project's jobs with their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c *client.Client
			if !cached {
				var err error
				if c, err = a.apiClient(); err != nil {
					return err
				}
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			if c != nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()

				jobs, err := c.ListJobs(ctx)
				if err != nil {
					return err
				}
				if err := cache.ReplaceAll(jobs, time.Now()); err != nil {
					return fmt.Errorf("failed to update job cache: %w", err)
				}
			}

			all, err := cache.All()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(all))
			for _, j := range all {
				rows = append(rows, []string{
					j.ID, j.Name, j.CronExpression, j.Summary, enabledLabel(j.Enabled), formatNext(j.NextRunAt),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CRON", "SCHEDULE", "ENABLED", "NEXT RUN"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "show the local cache without contacting the API")
	return cmd
}

// loadJob fetches a job from the API, falling back to the cache when the API
// is unreachable. fromCache reports which source answered.
func (a *app) loadJob(ctx context.Context, c *client.Client, cache *jobcache.Cache, id string) (job *client.Job, fromCache bool, err error) {
	job, err = c.GetJob(ctx, id)
	if err == nil {
		_ = cache.Save(jobcache.FromJob(*job, time.Now()))
		return job, false, nil
	}
	if !offline(err) {
		return nil, false, err
	}

	cj, cacheErr := cache.Get(id)
	if cacheErr != nil {
		return nil, false, err
	}
	return &client.Job{
		ID:             cj.ID,
		Name:           cj.Name,
		CronExpression: cj.CronExpression,
		Enabled:        cj.Enabled,
	}, true, nil
}

func newJobsShowCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a job's schedule and its next fire times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			job, fromCache, err := a.loadJob(ctx, c, cache, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if fromCache {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "API unreachable, showing cached job")
			}
			st := schedule.Parse(job.CronExpression)
			fmt.Fprintf(out, "Job:       %s (%s)\n", job.Name, job.ID)
			fmt.Fprintf(out, "Cron:      %s\n", job.CronExpression)
			fmt.Fprintf(out, "Schedule:  %s\n", schedule.Describe(job.CronExpression))
			fmt.Fprintf(out, "Preset:    %s\n", st.Preset.Label())
			fmt.Fprintf(out, "Enabled:   %s\n", enabledLabel(job.Enabled))

			if d, err := cache.Draft(job.ID); err == nil {
				fmt.Fprintf(out, "Draft:     %s (saved %s)\n", d.CronExpression, d.SavedAt.Local().Format(time.RFC3339))
			}

			if count <= 0 {
				count = a.cfg.PreviewCount
			}
			times := schedule.NextFireTimes(job.CronExpression, count, time.Now())
			if len(times) == 0 {
				fmt.Fprintln(out, "Next runs: none")
				return nil
			}
			fmt.Fprintln(out, "Next runs:")
			printTimes(out, times)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of fire times (default preview_count from config)")
	return cmd
}

func newJobsScheduleCmd(a *app) *cobra.Command {
	var (
		flags     stateFlags
		cron      string
		enable    bool
		disable   bool
		dryRun    bool
		saveDraft bool
		fromDraft bool
	)
	cmd := &cobra.Command{
		Use:   "schedule ID",
		Short: "Change a job's schedule",
		Long: `Opens the job's current schedule, applies the given preset and field flags (or a
raw --cron expression), validates the result and sends it to the API. When the
API cannot be reached the change is queued and sent later by "jobs flush" or the
agent.`,
		Example: `  jobconsole jobs schedule job-1 --preset daily --hour 6 --minute 30
  jobconsole jobs schedule job-1 --cron "0 9 * * 1,3,5"
  jobconsole jobs schedule job-1 --hour 7 --draft`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			if cron != "" && flags.any() {
				return errors.New("--cron cannot be combined with preset or field flags")
			}

			c, err := a.apiClient()
			if err != nil {
				return err
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			job, fromCache, err := a.loadJob(ctx, c, cache, args[0])
			if err != nil {
				return err
			}

			start := job.CronExpression
			if fromDraft {
				d, err := cache.Draft(job.ID)
				if err != nil {
					return fmt.Errorf("no draft for job %s", job.ID)
				}
				start = d.CronExpression
			}

			sess := editor.New(start)
			if cron != "" {
				_ = sess.SetPreset(schedule.PresetCustom)
				sess.SetCustom(cron)
			} else {
				st, err := flags.state(sess.State())
				if err != nil {
					return err
				}
				if err := sess.SetPreset(st.Preset); err != nil {
					return err
				}
				sess.SetHour(st.Hour)
				sess.SetMinute(st.Minute)
				sess.SetDayOfWeek(st.DayOfWeek)
				sess.SetDayOfMonth(st.DayOfMonth)
				sess.SetIntervalHours(st.IntervalHours)
			}

			if err := sess.Validate(); err != nil {
				color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), err)
				return &exitError{code: 1}
			}

			enabled := job.Enabled
			if enable {
				enabled = true
			}
			if disable {
				enabled = false
			}

			out := cmd.OutOrStdout()
			newCron := sess.Cron()
			fmt.Fprintf(out, "%s -> %s (%s)\n", job.CronExpression, newCron, sess.Summary())

			if newCron == job.CronExpression && enabled == job.Enabled {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			if dryRun {
				printTimes(out, sess.Preview(a.cfg.PreviewCount, time.Now()))
				return nil
			}
			if saveDraft {
				if err := cache.SaveDraft(job.ID, newCron); err != nil {
					return err
				}
				fmt.Fprintln(out, "draft saved")
				return nil
			}

			update := client.ScheduleUpdate{CronExpression: newCron, Enabled: enabled}
			var sendErr error
			if !fromCache {
				var updated *client.Job
				updated, sendErr = c.UpdateJobSchedule(ctx, job.ID, update)
				if sendErr == nil {
					_ = cache.Save(jobcache.FromJob(*updated, time.Now()))
					_ = cache.DeleteDraft(job.ID)
					color.New(color.FgGreen).Fprintln(out, "schedule updated")
					return nil
				}
				if !offline(sendErr) {
					return sendErr
				}
			}

			q, err := a.openOutbox()
			if err != nil {
				return err
			}
			defer q.Close()
			if err := q.Enqueue(&outbox.PendingUpdate{JobID: job.ID, CronExpression: newCron, Enabled: enabled}); err != nil {
				return fmt.Errorf("failed to queue update: %w", err)
			}
			_ = cache.DeleteDraft(job.ID)
			color.New(color.FgYellow).Fprintln(out, "API unreachable, update queued")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&cron, "cron", "", "raw cron expression (selects the custom preset)")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable the job")
	cmd.Flags().BoolVar(&disable, "disable", false, "disable the job")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the new schedule and its fire times without saving")
	cmd.Flags().BoolVar(&saveDraft, "draft", false, "store the edit locally instead of sending it")
	cmd.Flags().BoolVar(&fromDraft, "from-draft", false, "start from the stored draft instead of the current schedule")
	return cmd
}

func newJobsUpcomingCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List the next job runs from the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			jobs, err := cache.Upcoming(limit)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no upcoming runs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{formatNext(j.NextRunAt), j.Name, j.Summary, j.ID})
			}
			writeTable(cmd.OutOrStdout(), []string{"NEXT RUN", "NAME", "SCHEDULE", "ID"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of jobs (0 for all)")
	return cmd
}

func newJobsOutboxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "List schedule updates waiting to be sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.openOutbox()
			if err != nil {
				return err
			}
			defer q.Close()

			updates, err := q.Peek(1000)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "outbox is empty")
				return nil
			}

			rows := make([][]string, 0, len(updates))
			for _, u := range updates {
				rows = append(rows, []string{
					u.JobID, u.CronExpression, enabledLabel(u.Enabled),
					u.QueuedAt.Local().Format(time.RFC3339), strconv.Itoa(u.Attempts),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"JOB", "CRON", "ENABLED", "QUEUED", "ATTEMPTS"}, rows)
			return nil
		},
	}
}

func newJobsFlushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Send queued schedule updates now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			q, err := a.openOutbox()
			if err != nil {
				return err
			}
			defer q.Close()
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			f := outbox.NewFlusher(q, c, time.Duration(a.cfg.FlushInterval)*time.Second, cliLogger())
			f.OnSent = func(j *client.Job) {
				_ = cache.Save(jobcache.FromJob(*j, time.Now()))
			}
			res, err := f.Flush(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, dropped %d, pending %d\n", res.Sent, res.Dropped, res.Pending)
			return err
		},
	}
}
