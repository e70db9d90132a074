// Package config loads and validates the toolkit configuration from
// YAML, resolving credential references before use.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/shilovk/yandex-cloud-tools/internal/auth"
	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/operation"
	"github.com/shilovk/yandex-cloud-tools/internal/secrets"
	"github.com/shilovk/yandex-cloud-tools/internal/snapshot"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "yct.yaml"

// EnvPath is the environment variable overriding the config path.
const EnvPath = "YCT_CONFIG"

// defaultOAuthRef is assumed when oauth_token is not set at all.
const defaultOAuthRef = "env(YC_OAUTH_TOKEN)"

// Config is the toolkit configuration. OAuthToken may be a secret
// reference (env(VAR), file(PATH), vault(path#key)); after Load it
// holds the resolved value.
type Config struct {
	OAuthToken      string          `yaml:"oauth_token,omitempty"`
	Lifetime        int             `yaml:"lifetime"`
	Instances       []string        `yaml:"instances,omitempty"`
	PruneFilter     string          `yaml:"prune_filter,omitempty"`
	BackupSecondary bool            `yaml:"backup_secondary,omitempty"`
	Concurrency     int             `yaml:"concurrency,omitempty"`
	Poll            PollConfig      `yaml:"poll,omitempty"`
	Retry           RetryConfig     `yaml:"retry,omitempty"`
	Vault           VaultConfig     `yaml:"vault,omitempty"`
	Journal         JournalConfig   `yaml:"journal,omitempty"`
	Report          ReportConfig    `yaml:"report,omitempty"`
	Events          EventsConfig    `yaml:"events,omitempty"`
	MetricsAddr     string          `yaml:"metrics_addr,omitempty"`
	Schedule        ScheduleConfig  `yaml:"schedule,omitempty"`
	Log             LogConfig       `yaml:"log,omitempty"`
	Endpoints       EndpointsConfig `yaml:"endpoints,omitempty"`

	poll  operation.Policy
	retry compute.RetryPolicy
}

// PollConfig overrides the operation poll cadence. Durations are Go
// duration strings ("2s", "10m").
type PollConfig struct {
	Interval string `yaml:"interval,omitempty"`
	Budget   string `yaml:"budget,omitempty"`
}

// RetryConfig overrides how transient API failures are retried.
type RetryConfig struct {
	Attempts int    `yaml:"attempts,omitempty"`
	Delay    string `yaml:"delay,omitempty"`
}

// VaultConfig enables vault() secret references.
type VaultConfig struct {
	Address string `yaml:"address,omitempty"`
	Token   string `yaml:"token,omitempty"`
}

// JournalConfig selects where runs and operations are recorded.
type JournalConfig struct {
	Backend string `yaml:"backend,omitempty"` // "", "none", "badger", "postgres"
	Path    string `yaml:"path,omitempty"`    // badger directory
	DSN     string `yaml:"dsn,omitempty"`     // postgres connection string
}

// ReportConfig selects where run reports are written. Dir and S3 are
// mutually exclusive; neither disables reporting.
type ReportConfig struct {
	Dir string    `yaml:"dir,omitempty"`
	S3  *S3Config `yaml:"s3,omitempty"`
}

// S3Config points at an S3 bucket for run reports. Region and
// endpoint default to Yandex Object Storage when left empty.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// EventsConfig enables NATS event publishing when URL is set.
type EventsConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// ScheduleConfig holds the daemon's cron expressions.
type ScheduleConfig struct {
	Backup string `yaml:"backup,omitempty"`
	Prune  string `yaml:"prune,omitempty"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// EndpointsConfig overrides the provider service URLs, for private
// installations and tests.
type EndpointsConfig struct {
	Instances  string `yaml:"instances,omitempty"`
	Snapshots  string `yaml:"snapshots,omitempty"`
	Operations string `yaml:"operations,omitempty"`
	IAM        string `yaml:"iam,omitempty"`
}

// Load reads, parses, resolves and validates the configuration at
// path. An empty path falls back to $YCT_CONFIG, then DefaultPath.
func Load(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(ctx, data)
}

// Parse parses YAML bytes, resolves secret references and validates.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	var chain secrets.Chain
	if c.Vault.Address != "" {
		token, err := chain.Resolve(ctx, c.Vault.Token)
		if err != nil {
			return fmt.Errorf("resolve vault token: %w", err)
		}
		chain.AttachVault(secrets.NewVaultResolver(c.Vault.Address, token))
	}

	ref := c.OAuthToken
	if ref == "" {
		ref = defaultOAuthRef
	}
	token, err := chain.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve oauth_token: %w", err)
	}
	c.OAuthToken = token
	return nil
}

// Validate checks field constraints and parses durations and cron
// expressions so later accessors cannot fail.
func (c *Config) Validate() error {
	if c.OAuthToken == "" {
		return fmt.Errorf("config: oauth_token is required")
	}
	if c.Lifetime < 0 {
		return fmt.Errorf("config: lifetime must be non-negative, got %d", c.Lifetime)
	}

	if c.PruneFilter != "" {
		if _, err := snapshot.CompileFilter(c.PruneFilter); err != nil {
			return fmt.Errorf("config: prune_filter: %w", err)
		}
	}

	poll := operation.DefaultPolicy()
	if c.Poll.Interval != "" {
		d, err := time.ParseDuration(c.Poll.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: poll.interval %q is not a positive duration", c.Poll.Interval)
		}
		poll.Interval = d
	}
	if c.Poll.Budget != "" {
		d, err := time.ParseDuration(c.Poll.Budget)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: poll.budget %q is not a positive duration", c.Poll.Budget)
		}
		poll.Budget = d
	}
	c.poll = poll

	retry := compute.DefaultRetryPolicy()
	if c.Retry.Attempts != 0 {
		if c.Retry.Attempts < 1 {
			return fmt.Errorf("config: retry.attempts must be at least 1, got %d", c.Retry.Attempts)
		}
		retry.Attempts = c.Retry.Attempts
	}
	if c.Retry.Delay != "" {
		d, err := time.ParseDuration(c.Retry.Delay)
		if err != nil || d < 0 {
			return fmt.Errorf("config: retry.delay %q is not a duration", c.Retry.Delay)
		}
		retry.Delay = d
	}
	c.retry = retry

	switch c.Journal.Backend {
	case "", "none":
	case "badger":
		if c.Journal.Path == "" {
			return fmt.Errorf("config: journal.path is required for the badger backend")
		}
	case "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("config: journal.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown journal backend %q", c.Journal.Backend)
	}

	if c.Report.Dir != "" && c.Report.S3 != nil {
		return fmt.Errorf("config: report.dir and report.s3 are mutually exclusive")
	}
	if c.Report.S3 != nil && c.Report.S3.Bucket == "" {
		return fmt.Errorf("config: report.s3.bucket is required")
	}

	for name, expr := range map[string]string{
		"schedule.backup": c.Schedule.Backup,
		"schedule.prune":  c.Schedule.Prune,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}

	if c.Log.Level != "" {
		if _, err := telemetry.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	return nil
}

// PollPolicy returns the operation poll policy with defaults applied.
// Valid only after Validate.
func (c *Config) PollPolicy() operation.Policy { return c.poll }

// RetryPolicy returns the API retry policy with defaults applied.
// Valid only after Validate.
func (c *Config) RetryPolicy() compute.RetryPolicy { return c.retry }

// FleetLimit returns how many instances may be processed concurrently.
func (c *Config) FleetLimit() int {
	if c.Concurrency <= 0 {
		return 4
	}
	return c.Concurrency
}

// ComputeEndpoints returns the provider endpoints with overrides
// applied.
func (c *Config) ComputeEndpoints() compute.Endpoints {
	e := compute.DefaultEndpoints()
	if c.Endpoints.Instances != "" {
		e.Instances = c.Endpoints.Instances
	}
	if c.Endpoints.Snapshots != "" {
		e.Snapshots = c.Endpoints.Snapshots
	}
	if c.Endpoints.Operations != "" {
		e.Operations = c.Endpoints.Operations
	}
	return e
}

// IAMEndpoint returns the IAM token service URL with the override
// applied.
func (c *Config) IAMEndpoint() string {
	if c.Endpoints.IAM != "" {
		return c.Endpoints.IAM
	}
	return auth.DefaultEndpoint
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	if c.Log.Level == "" {
		return slog.LevelInfo
	}
	level, err := telemetry.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
