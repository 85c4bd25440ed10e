package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/doughall/jobconsole/internal/config"
	"github.com/doughall/jobconsole/internal/events"
	"github.com/doughall/jobconsole/internal/jobcache"
	"github.com/doughall/jobconsole/internal/logging"
	"github.com/doughall/jobconsole/internal/outbox"
	"github.com/doughall/jobconsole/internal/poller"
	"github.com/doughall/jobconsole/internal/shutdown"
	"github.com/doughall/jobconsole/internal/systemd"
	"github.com/doughall/jobconsole/internal/version"
	"github.com/spf13/cobra"
)

// Default shutdown timeout - how long to wait for graceful shutdown
const shutdownTimeout = 30 * time.Second

// statusInterval is how often the agent refreshes its systemd STATUS line.
const statusInterval = time.Minute

func newAgentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Keep the local job cache in sync and send queued updates",
		Long: `Runs until SIGTERM/SIGINT. The agent polls the jobs API for the project's
jobs, keeps next-run times current, sends schedule updates queued while the
API was unreachable and applies job events pushed over NATS or websocket.
Intended to run as a systemd user service (Type=notify).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireAPI(); err != nil {
				return fmt.Errorf("%w (set it in %s)", err, a.configPath)
			}
			return runAgent(cmd.Context(), a.cfg, a.configPath)
		},
	}
}

// runAgent wires the background components and blocks until a shutdown
// signal arrives.
//
// Lifecycle:
//  1. Open the job cache and outbox
//  2. Start the poller, tracker, flusher and event listener
//  3. Notify systemd that the service is ready and start the watchdog
//  4. Wait for SIGTERM/SIGINT
//  5. Notify systemd that the service is stopping
//  6. Coordinated shutdown with timeout
func runAgent(parent context.Context, cfg *config.Config, configPath string) error {
	logger := logging.SetupLogger(cfg.LogLevel)

	logger.Info("agent starting",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("config_path", configPath),
		slog.String("server_url", cfg.ServerURL),
		slog.String("project_id", cfg.ProjectID),
		slog.Int("poll_interval", cfg.PollInterval),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	coordinator := shutdown.NewCoordinator(logger)

	cache, err := jobcache.Open(cfg.JobCachePath())
	if err != nil {
		return err
	}
	// Registered first so the databases close after every loop has stopped.
	coordinator.Register("job-cache", shutdown.Func(cache.Close))
	logger.Info("job cache initialized", slog.String("path", cfg.JobCachePath()))

	queue, err := outbox.Open(cfg.OutboxPath())
	if err != nil {
		cache.Close()
		return err
	}
	coordinator.Register("outbox", shutdown.Func(queue.Close))
	logger.Info("outbox initialized", slog.String("path", cfg.OutboxPath()))

	api := client.NewClient(cfg.ServerURL, cfg.ProjectID, logger)
	api.SetAPIKey(cfg.APIKey)

	tracker := jobcache.NewTracker(cache, logging.WithComponent(logger, "tracker"))
	coordinator.Register("tracker", tracker)

	flusher := outbox.NewFlusher(queue, api, time.Duration(cfg.FlushInterval)*time.Second, logger)
	flusher.OnSent = func(j *client.Job) {
		if err := cache.Save(jobcache.FromJob(*j, time.Now())); err != nil {
			logger.Warn("failed to cache updated job",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	coordinator.Register("flusher", flusher)

	poll := poller.NewPoller(api, cache,
		time.Duration(cfg.PollInterval)*time.Second,
		time.Duration(cfg.JitterSeconds)*time.Second,
		logger)
	coordinator.Register("poller", poll)

	// Event delivery: NATS preferred, websocket as fallback.
	handler := events.NewHandler(cache, poll, events.NewDeduplicator(logger), logger)
	var listener interface{ Run(context.Context) }

	if cfg.NATSEnabled() {
		logger.Info("NATS enabled, initializing listener",
			slog.String("servers", cfg.NATSServers),
			slog.String("tenant_id", cfg.TenantID),
		)
		nl := events.NewNATSListener(events.NATSConfig{
			Servers:   cfg.NATSServers,
			NKeySeed:  cfg.NATSNKeySeed,
			TenantID:  cfg.TenantID,
			ProjectID: cfg.ProjectID,
		}, handler, logger)

		if err := nl.Connect(ctx); err != nil {
			logger.Warn("NATS connection failed",
				slog.String("error", err.Error()),
			)
		} else {
			coordinator.Register("nats", nl)
			listener = nl
		}
	}
	if listener == nil && cfg.WebSocketEnabled {
		logger.Info("using websocket for job events")
		wl := events.NewWSListener(cfg.ServerURL, cfg.APIKey, cfg.ProjectID, handler, logger)
		coordinator.Register("websocket", wl)
		listener = wl
	}

	go poll.Run(ctx)
	go tracker.Run(ctx)
	go flusher.Run(ctx)
	if listener != nil {
		go listener.Run(ctx)
	}

	notifier := systemd.NewNotifier(logger)
	notifier.Ready()
	logger.Info("agent ready", slog.Int("components", coordinator.ComponentCount()))

	notifier.StartWatchdog(ctx, poll.IsHealthy)
	go reportStatus(ctx, notifier, cache, queue, poll)

	<-ctx.Done()
	logger.Info("shutdown signal received, starting graceful shutdown")
	notifier.Stopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		return &exitError{code: 1}
	}

	logger.Info("shutdown complete")
	return nil
}

// reportStatus publishes a systemd STATUS line summarising the cache until
// ctx is cancelled.
func reportStatus(ctx context.Context, n *systemd.Notifier, cache *jobcache.Cache, queue *outbox.Queue, poll *poller.Poller) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		n.Status(statusLine(cache, queue, poll.LastSync()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func statusLine(cache *jobcache.Cache, queue *outbox.Queue, lastSync time.Time) string {
	jobs, _ := cache.All()
	pending, _ := queue.Count()
	synced := "never"
	if !lastSync.IsZero() {
		synced = lastSync.Local().Format(time.TimeOnly)
	}
	return fmt.Sprintf("%d jobs, %d queued updates, last sync %s", len(jobs), pending, synced)
}
