package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"contentfactory/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "llm-key")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "contentfactory")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "contentfactory.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LLM.APIKey != "llm-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Slack.BotToken != "xoxb-test" {
		t.Fatalf("expected Slack token from env, got %q", cfg.Slack.BotToken)
	}
	if !cfg.Slack.ApprovalsEnabled {
		t.Fatal("expected approvals enabled by default")
	}
	if cfg.Workflow.BatchConcurrency != 2 {
		t.Fatalf("unexpected batch concurrency: %d", cfg.Workflow.BatchConcurrency)
	}
	if cfg.ApprovalTimeout() != 0 {
		t.Fatalf("expected approvals to never expire by default, got %s", cfg.ApprovalTimeout())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	custom := config.Default()
	custom.Paths.DataDir = "~/factory"
	custom.Workflow.BatchConcurrency = 4
	custom.Workflow.ApprovalTimeoutHours = 48
	custom.Schedule.HealerDays = []string{" Monday ", "monday", "fri"}
	custom.Logging.Format = "JSON"
	custom.WordPress.BaseURL = "https://example.co.il/"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be loaded from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "factory") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Workflow.BatchConcurrency != 4 {
		t.Fatalf("unexpected batch concurrency: %d", cfg.Workflow.BatchConcurrency)
	}
	if cfg.ApprovalTimeout() != 48*time.Hour {
		t.Fatalf("unexpected approval timeout: %s", cfg.ApprovalTimeout())
	}
	if got := strings.Join(cfg.Schedule.HealerDays, ","); got != "monday,fri" {
		t.Fatalf("unexpected normalized healer days: %q", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercase log format, got %q", cfg.Logging.Format)
	}
	if cfg.WordPress.BaseURL != "https://example.co.il" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.WordPress.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "batch concurrency",
			mutate:  func(c *config.Config) { c.Workflow.BatchConcurrency = 0 },
			wantErr: "workflow.batch_concurrency",
		},
		{
			name:    "poll attempts",
			mutate:  func(c *config.Config) { c.Workflow.PollMaxAttempts = 0 },
			wantErr: "workflow.poll_max_attempts",
		},
		{
			name:    "weekday",
			mutate:  func(c *config.Config) { c.Schedule.HealerDays = []string{"someday"} },
			wantErr: "schedule.healer_days",
		},
		{
			name:    "wordpress status",
			mutate:  func(c *config.Config) { c.WordPress.DefaultStatus = "scheduled" },
			wantErr: "wordpress.default_status",
		},
		{
			name: "open approval webhook",
			mutate: func(c *config.Config) {
				c.API.Bind = "0.0.0.0:7590"
				c.API.Token = ""
				c.Slack.SigningSecret = ""
				c.Slack.ApprovalsEnabled = true
			},
			wantErr: "slack.signing_secret or api.token",
		},
		{
			name:    "log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := config.ParseWeekdays([]string{"sunday", "Tue", "SATURDAY"})
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	want := []time.Weekday{time.Sunday, time.Tuesday, time.Saturday}
	if len(days) != len(want) {
		t.Fatalf("unexpected days: %v", days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("day %d: got %s want %s", i, days[i], want[i])
		}
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}

func TestValidateAcceptsAuthenticatedPublicBind(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"signing secret": func(c *config.Config) { c.Slack.SigningSecret = "shh" },
		"api token":      func(c *config.Config) { c.API.Token = "secret" },
		"loopback":       func(c *config.Config) { c.API.Bind = "localhost:7590" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			cfg.API.Bind = "0.0.0.0:7590"
			cfg.Slack.ApprovalsEnabled = true
			mutate(&cfg)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}

	cfg := config.Default()
	cfg.API.Token = "secret"
	cfg.Slack.ApprovalsEnabled = true
	if !cfg.SlackEventsUnreachable() {
		t.Fatal("expected token without signing secret to block slack events")
	}
	cfg.Slack.SigningSecret = "shh"
	if cfg.SlackEventsUnreachable() {
		t.Fatal("signed events are reachable")
	}
}
