// jobconsole - Entry Point
//
// jobconsole is the command-line console for a job-automation platform's
// schedules. It translates between schedule presets and 5-field cron
// expressions, previews fire times, and edits the schedules of a project's
// jobs through the jobs API.
//
// Offline commands (build, parse, preview, describe, validate, presets) need
// no configuration. The jobs commands and the agent read
// ~/.config/jobconsole/config.yaml (or the file given with --config).
//
// The agent subcommand runs as a systemd user service: it keeps the local job
// cache in sync, replays queued schedule updates and applies pushed job
// events until SIGTERM/SIGINT.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/doughall/jobconsole/internal/config"
	"github.com/doughall/jobconsole/internal/logging"
	"github.com/doughall/jobconsole/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// exitError carries a process exit code without printing anything more;
// the command already wrote its own message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config

	// httpClient replaces the retrying client when set (tests).
	httpClient *http.Client
}

func main() {
	err := newRootCmd(&app{}).Execute()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobconsole",
		Short: "Edit and preview job schedules",
		Long: `jobconsole translates between schedule presets and 5-field cron expressions,
previews upcoming fire times and updates the schedules of a project's jobs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath(), "path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newBuildCmd(a),
		newParseCmd(),
		newPreviewCmd(a),
		newDescribeCmd(),
		newValidateCmd(),
		newPresetsCmd(),
		newJobsCmd(a),
		newAgentCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file if present and sets up CLI logging.
// A missing file is fine for offline commands; jobs commands check the API
// settings themselves.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	logging.SetupCLILogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// apiClient builds a jobs API client from the loaded configuration.
func (a *app) apiClient() (*client.Client, error) {
	if err := a.cfg.RequireAPI(); err != nil {
		return nil, fmt.Errorf("%w (set it in %s)", err, a.configPath)
	}
	logger := cliLogger()

	var c *client.Client
	if a.httpClient != nil {
		c = client.NewClientWithHTTP(a.httpClient, a.cfg.ServerURL, a.cfg.ProjectID, logger)
	} else {
		c = client.NewClient(a.cfg.ServerURL, a.cfg.ProjectID, logger)
	}
	c.SetAPIKey(a.cfg.APIKey)
	return c, nil
}

func cliLogger() *slog.Logger {
	return logging.WithComponent(slog.Default(), "cli")
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return cmd
}
