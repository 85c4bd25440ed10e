// Package systemd integrates the sync agent (jobconsole agent) with systemd.
//
// The agent runs as a Type=notify user service: it reports READY=1 once the
// job cache is open and the first sync was attempted, publishes a STATUS=
// line after each sync, and pings the watchdog while the poller is alive.
// Every call is a no-op when NOTIFY_SOCKET is unset, so the agent runs the
// same way from a terminal.
package systemd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier logging through logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger.With(slog.String("component", "systemd"))}
}

// Ready sends READY=1. Returns true if the notification was delivered.
func (n *Notifier) Ready() bool {
	return n.notify(daemon.SdNotifyReady, "ready")
}

// Stopping sends STOPPING=1 so systemd waits for the process to exit.
func (n *Notifier) Stopping() bool {
	return n.notify(daemon.SdNotifyStopping, "stopping")
}

// Status publishes a one-line status shown by `systemctl status`.
func (n *Notifier) Status(msg string) bool {
	return n.notify("STATUS="+msg, "status")
}

func (n *Notifier) notify(state, name string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("failed to send systemd notification",
			slog.String("state", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	if sent {
		n.logger.Debug("sent systemd notification", slog.String("state", name))
	}
	return sent
}

// HealthCheckFunc returns true if the service is healthy.
type HealthCheckFunc func() bool

// StartWatchdog pings the systemd watchdog every WatchdogSec/2 while
// healthCheck passes. A failing check skips the ping and lets systemd restart
// the agent. It returns immediately when the watchdog is not enabled; the
// goroutine exits when ctx is cancelled.
func (n *Notifier) StartWatchdog(ctx context.Context, healthCheck HealthCheckFunc) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		n.logger.Debug("watchdog not enabled")
		return
	}

	ping := interval / 2
	n.logger.Info("starting systemd watchdog",
		slog.Duration("watchdog_interval", interval),
		slog.Duration("ping_interval", ping),
	)
	go n.watchdogLoop(ctx, ping, healthCheck)
}

func (n *Notifier) watchdogLoop(ctx context.Context, interval time.Duration, healthCheck HealthCheckFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !healthCheck() {
				n.logger.Warn("health check failed, skipping watchdog ping")
				continue
			}
			n.notify(daemon.SdNotifyWatchdog, "watchdog")
		}
	}
}

// IsRunningUnderSystemd reports whether NOTIFY_SOCKET is set.
func IsRunningUnderSystemd() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
