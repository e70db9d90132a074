package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/auth"
	"github.com/shilovk/yandex-cloud-tools/internal/operation"
)

func parse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse(context.Background(), []byte(yaml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cfg
}

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

func TestParse_Defaults(t *testing.T) {
	cfg := parse(t, `
oauth_token: tok-123
lifetime: 7
instances:
  - i-1
  - i-2
`)
	if cfg.OAuthToken != "tok-123" {
		t.Errorf("oauth token: got %q", cfg.OAuthToken)
	}
	if cfg.Lifetime != 7 {
		t.Errorf("lifetime: got %d, want 7", cfg.Lifetime)
	}
	if len(cfg.Instances) != 2 {
		t.Errorf("instances: got %v", cfg.Instances)
	}
	if got := cfg.PollPolicy(); got != operation.DefaultPolicy() {
		t.Errorf("poll policy: got %+v, want defaults", got)
	}
	if got := cfg.RetryPolicy(); got.Attempts != 3 || got.Delay != time.Second {
		t.Errorf("retry policy: got %+v, want defaults", got)
	}
	if got := cfg.FleetLimit(); got != 4 {
		t.Errorf("fleet limit: got %d, want 4", got)
	}
	if got := cfg.IAMEndpoint(); got != auth.DefaultEndpoint {
		t.Errorf("iam endpoint: got %q", got)
	}
	if got := cfg.LogLevel().String(); got != "INFO" {
		t.Errorf("log level: got %s, want INFO", got)
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg := parse(t, `
oauth_token: tok-123
lifetime: 14
concurrency: 2
poll:
  interval: 5s
  budget: 30s
retry:
  attempts: 5
  delay: 2s
endpoints:
  instances: http://localhost:9000/instances
  iam: http://localhost:9000/iam
log:
  level: debug
  format: text
`)
	poll := cfg.PollPolicy()
	if poll.Interval != 5*time.Second || poll.Budget != 30*time.Second {
		t.Errorf("poll policy: got %+v", poll)
	}
	retry := cfg.RetryPolicy()
	if retry.Attempts != 5 || retry.Delay != 2*time.Second {
		t.Errorf("retry policy: got %+v", retry)
	}
	if got := cfg.FleetLimit(); got != 2 {
		t.Errorf("fleet limit: got %d, want 2", got)
	}
	eps := cfg.ComputeEndpoints()
	if eps.Instances != "http://localhost:9000/instances" {
		t.Errorf("instances endpoint: got %q", eps.Instances)
	}
	if !strings.Contains(eps.Snapshots, "compute.api.cloud.yandex.net") {
		t.Errorf("snapshots endpoint should keep the default, got %q", eps.Snapshots)
	}
	if got := cfg.IAMEndpoint(); got != "http://localhost:9000/iam" {
		t.Errorf("iam endpoint: got %q", got)
	}
	if got := cfg.LogLevel().String(); got != "DEBUG" {
		t.Errorf("log level: got %s, want DEBUG", got)
	}
}

func TestParse_EnvReference(t *testing.T) {
	t.Setenv("YC_OAUTH_TOKEN", "tok-from-env")
	cfg := parse(t, "lifetime: 7\n")
	if cfg.OAuthToken != "tok-from-env" {
		t.Errorf("oauth token: got %q, want the env default", cfg.OAuthToken)
	}
}

func TestParse_FileReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("tok-from-file\n"), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	cfg := parse(t, "oauth_token: file("+path+")\nlifetime: 7\n")
	if cfg.OAuthToken != "tok-from-file" {
		t.Errorf("oauth token: got %q", cfg.OAuthToken)
	}
}

func TestParse_UnresolvableToken(t *testing.T) {
	_, err := Parse(context.Background(), []byte("oauth_token: env(YCT_SURELY_UNSET_1234)\nlifetime: 7\n"))
	if err == nil {
		t.Fatal("expected error for an unresolvable token reference")
	}
	if !strings.Contains(err.Error(), "resolve oauth_token") {
		t.Errorf("error: got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "negative lifetime",
			yaml:    "oauth_token: t\nlifetime: -1\n",
			wantErr: "lifetime",
		},
		{
			name:    "bad poll interval",
			yaml:    "oauth_token: t\nlifetime: 7\npoll:\n  interval: soon\n",
			wantErr: "poll.interval",
		},
		{
			name:    "zero poll budget",
			yaml:    "oauth_token: t\nlifetime: 7\npoll:\n  budget: 0s\n",
			wantErr: "poll.budget",
		},
		{
			name:    "negative retry attempts",
			yaml:    "oauth_token: t\nlifetime: 7\nretry:\n  attempts: -1\n",
			wantErr: "retry.attempts",
		},
		{
			name:    "bad retry delay",
			yaml:    "oauth_token: t\nlifetime: 7\nretry:\n  delay: fast\n",
			wantErr: "retry.delay",
		},
		{
			name:    "bad prune filter",
			yaml:    "oauth_token: t\nlifetime: 7\nprune_filter: \")(\"\n",
			wantErr: "prune_filter",
		},
		{
			name:    "unknown journal backend",
			yaml:    "oauth_token: t\nlifetime: 7\njournal:\n  backend: etcd\n",
			wantErr: "journal backend",
		},
		{
			name:    "badger without path",
			yaml:    "oauth_token: t\nlifetime: 7\njournal:\n  backend: badger\n",
			wantErr: "journal.path",
		},
		{
			name:    "postgres without dsn",
			yaml:    "oauth_token: t\nlifetime: 7\njournal:\n  backend: postgres\n",
			wantErr: "journal.dsn",
		},
		{
			name:    "report dir and s3 together",
			yaml:    "oauth_token: t\nlifetime: 7\nreport:\n  dir: /tmp/reports\n  s3:\n    bucket: b\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "s3 without bucket",
			yaml:    "oauth_token: t\nlifetime: 7\nreport:\n  s3:\n    prefix: runs\n",
			wantErr: "bucket",
		},
		{
			name:    "bad backup schedule",
			yaml:    "oauth_token: t\nlifetime: 7\nschedule:\n  backup: whenever\n",
			wantErr: "schedule.backup",
		},
		{
			name:    "bad log level",
			yaml:    "oauth_token: t\nlifetime: 7\nlog:\n  level: loud\n",
			wantErr: "level",
		},
		{
			name:    "bad log format",
			yaml:    "oauth_token: t\nlifetime: 7\nlog:\n  format: xml\n",
			wantErr: "format",
		},
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "parsing config",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %v should mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParse_ValidSchedules(t *testing.T) {
	cfg := parse(t, `
oauth_token: t
lifetime: 7
schedule:
  backup: "0 3 * * *"
  prune: "@daily"
`)
	if cfg.Schedule.Backup != "0 3 * * *" || cfg.Schedule.Prune != "@daily" {
		t.Errorf("schedules: got %+v", cfg.Schedule)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yct.yaml")
	if err := os.WriteFile(path, []byte("oauth_token: tok-123\nlifetime: 7\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OAuthToken != "tok-123" {
		t.Errorf("oauth token: got %q", cfg.OAuthToken)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("oauth_token: tok-env-path\nlifetime: 7\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvPath, path)

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OAuthToken != "tok-env-path" {
		t.Errorf("oauth token: got %q", cfg.OAuthToken)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
