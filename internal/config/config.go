// Package config provides configuration management for jobconsole.
// It uses koanf v2 to load configuration from YAML files and supports
// saving updated configuration (e.g., persisting the api_key after login).
//
// Configuration is loaded from ~/.config/jobconsole/config.yaml by default.
// The file should have restricted permissions (0600) as it contains the
// API key used against the jobs API.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	goyaml "gopkg.in/yaml.v3"
)

// Config holds the console configuration loaded from the YAML config file.
// Fields are tagged for both koanf (loading) and yaml (saving).
type Config struct {
	// ServerURL is the base URL of the jobs API (e.g., "https://jobs.example.com").
	// Required for every command that talks to the API.
	ServerURL string `koanf:"server_url" yaml:"server_url"`

	// APIKey authenticates requests as a Bearer token.
	APIKey string `koanf:"api_key" yaml:"api_key"`

	// ProjectID scopes job listing and updates to a single project.
	ProjectID string `koanf:"project_id" yaml:"project_id"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error".
	// Default: "info".
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// PollInterval is how often (in seconds) the agent refreshes the job list.
	// Default: 60 seconds.
	PollInterval int `koanf:"poll_interval" yaml:"poll_interval"`

	// JitterSeconds is the maximum random jitter added to the poll interval.
	// Default: 15 seconds.
	JitterSeconds int `koanf:"jitter_seconds" yaml:"jitter_seconds"`

	// FlushInterval is how often (in seconds) queued schedule updates are retried.
	// Default: 30 seconds.
	FlushInterval int `koanf:"flush_interval" yaml:"flush_interval"`

	// DataDir holds the job cache and the outbox databases.
	// Default: ~/.local/share/jobconsole.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// PreviewCount is how many upcoming fire times previews show.
	// Default: 5. Range: 1..50.
	PreviewCount int `koanf:"preview_count" yaml:"preview_count"`

	// TenantID is used for NATS subject routing of job events.
	TenantID string `koanf:"tenant_id" yaml:"tenant_id"`

	// NATSServers is a comma-separated list of NATS server URLs.
	// If set, job events are received over NATS.
	NATSServers string `koanf:"nats_servers" yaml:"nats_servers"`

	// NATSNKeySeed is the NKey seed for NATS authentication.
	NATSNKeySeed string `koanf:"nats_nkey_seed" yaml:"nats_nkey_seed"`

	// WebSocketEnabled turns on the websocket event stream when NATS is not
	// configured or unreachable.
	WebSocketEnabled bool `koanf:"websocket_enabled" yaml:"websocket_enabled"`
}

// Validation errors returned by Load and RequireAPI.
var (
	ErrServerURLRequired    = errors.New("server_url is required")
	ErrAPIKeyRequired       = errors.New("api_key is required")
	ErrProjectRequired      = errors.New("project_id is required")
	ErrInvalidPollInterval  = errors.New("poll_interval must be positive")
	ErrInvalidPreviewCount  = errors.New("preview_count must be between 1 and 50")
	ErrInvalidFlushInterval = errors.New("flush_interval must be positive")
	ErrNATSIncomplete       = errors.New("nats_servers requires nats_nkey_seed and tenant_id")
)

// MaxPreviewCount is the upper bound for preview_count.
const MaxPreviewCount = 50

// DefaultConfigPath returns ~/.config/jobconsole/config.yaml, falling back to
// a relative path when the home directory cannot be resolved.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "jobconsole.yaml"
	}
	return filepath.Join(dir, "jobconsole", "config.yaml")
}

// defaultDataDir returns ~/.local/share/jobconsole.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jobconsole"
	}
	return filepath.Join(home, ".local", "share", "jobconsole")
}

// Default returns a configuration with every optional field defaulted and no
// API settings. Offline commands (build, parse, preview) run on it.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified YAML file path.
// It applies defaults for optional fields and validates the fields it can
// check without knowing the command being run.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default() when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// applyDefaults sets default values for optional configuration fields.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 60
	}
	if c.JitterSeconds == 0 {
		c.JitterSeconds = 15
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.PreviewCount == 0 {
		c.PreviewCount = 5
	}
}

// validate checks the fields that are wrong regardless of which command runs.
func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.FlushInterval <= 0 {
		return ErrInvalidFlushInterval
	}
	if c.PreviewCount < 1 || c.PreviewCount > MaxPreviewCount {
		return ErrInvalidPreviewCount
	}
	if c.NATSServers != "" && (c.NATSNKeySeed == "" || c.TenantID == "") {
		return ErrNATSIncomplete
	}
	return nil
}

// RequireAPI checks the settings needed to talk to the jobs API.
func (c *Config) RequireAPI() error {
	if c.ServerURL == "" {
		return ErrServerURLRequired
	}
	if c.APIKey == "" {
		return ErrAPIKeyRequired
	}
	if c.ProjectID == "" {
		return ErrProjectRequired
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// The file is created with 0600 permissions (owner read/write only)
// as it contains the API key.
func Save(path string, cfg *Config) error {
	data, err := goyaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}

	return nil
}

// NATSEnabled returns true if NATS configuration is present.
func (c *Config) NATSEnabled() bool {
	return c.NATSServers != "" && c.NATSNKeySeed != "" && c.TenantID != ""
}

// JobCachePath is the bbolt file holding cached jobs and drafts.
func (c *Config) JobCachePath() string {
	return filepath.Join(c.DataDir, "jobs.db")
}

// OutboxPath is the bbolt file holding schedule updates awaiting upload.
func (c *Config) OutboxPath() string {
	return filepath.Join(c.DataDir, "outbox.db")
}
