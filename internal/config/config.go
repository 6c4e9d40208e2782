package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	WorkersManifest string `toml:"workers_manifest"`
}

// API contains the daemon HTTP surface configuration.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// LLM contains text generation connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// WordPress contains publishing target settings.
type WordPress struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	AppPassword    string `toml:"app_password"`
	DefaultStatus  string `toml:"default_status"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Slack contains the notification and approval channel settings.
type Slack struct {
	BotToken         string `toml:"bot_token"`
	SigningSecret    string `toml:"signing_secret"`
	Channel          string `toml:"channel"`
	BaseURL          string `toml:"base_url"`
	ApprovalsEnabled bool   `toml:"approvals_enabled"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// ElevenLabs contains text-to-speech settings.
type ElevenLabs struct {
	APIKey  string `toml:"api_key"`
	VoiceID string `toml:"voice_id"`
	ModelID string `toml:"model_id"`
	BaseURL string `toml:"base_url"`
}

// Kie contains image and video generation settings.
type Kie struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	ImageModel   string `toml:"image_model"`
	VideoModel   string `toml:"video_model"`
	VideoEnabled bool   `toml:"video_enabled"`
}

// Social contains social post dispatch settings.
type Social struct {
	WebhookURL string   `toml:"webhook_url"`
	Platforms  []string `toml:"platforms"`
}

// Workflow contains run engine limits and intervals.
type Workflow struct {
	PollIntervalSeconds      int  `toml:"poll_interval_seconds"`
	PollMaxAttempts          int  `toml:"poll_max_attempts"`
	BatchConcurrency         int  `toml:"batch_concurrency"`
	SkipFailures             bool `toml:"skip_failures"`
	ApprovalTimeoutHours     int  `toml:"approval_timeout_hours"`
	MaxRevisions             int  `toml:"max_revisions"`
	SchedulerIntervalSeconds int  `toml:"scheduler_interval_seconds"`
	SEOMinScore              int  `toml:"seo_min_score"`
	SEOLimit                 int  `toml:"seo_limit"`
	HealerRecentLimit        int  `toml:"healer_recent_limit"`
}

// Schedule lists the weekdays the healer sweeps on. Pipeline days come from
// the worker manifest.
type Schedule struct {
	HealerDays []string `toml:"healer_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	WorkerOverrides map[string]string `toml:"worker_overrides"`
}

// Config encapsulates all configuration values for Content Factory.
//
// Configuration sections by subsystem:
//   - Paths: database/lock/media directory, log directory, worker manifest override
//   - API: daemon HTTP bind address and bearer token
//   - LLM: text generation (OpenRouter-compatible chat completions)
//   - WordPress: publishing target
//   - Slack: notifications and approval requests
//   - ElevenLabs: text-to-speech for podcast episodes
//   - Kie: image and video generation
//   - Social: outbound social post webhook
//   - Workflow: polling, batch concurrency, approvals, revisions, SEO/healer limits
//   - Schedule: weekdays for the cron-triggered healer sweep
//   - Logging: log format, level, and per-worker overrides
type Config struct {
	Paths      Paths      `toml:"paths"`
	API        API        `toml:"api"`
	LLM        LLM        `toml:"llm"`
	WordPress  WordPress  `toml:"wordpress"`
	Slack      Slack      `toml:"slack"`
	ElevenLabs ElevenLabs `toml:"elevenlabs"`
	Kie        Kie        `toml:"kie"`
	Social     Social     `toml:"social"`
	Workflow   Workflow   `toml:"workflow"`
	Schedule   Schedule   `toml:"schedule"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("contentfactory.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.MediaDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite record store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "contentfactory.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "contentfactory.lock")
}

// MediaDir returns the directory generated audio is written to.
func (c *Config) MediaDir() string {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "media")
}

// PollInterval returns the generation job polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalSeconds) * time.Second
}

// ApprovalTimeout returns the pending approval expiry, or zero when approvals never expire.
func (c *Config) ApprovalTimeout() time.Duration {
	if c.Workflow.ApprovalTimeoutHours <= 0 {
		return 0
	}
	return time.Duration(c.Workflow.ApprovalTimeoutHours) * time.Hour
}

// SchedulerInterval returns how often the daemon evaluates the trigger schedule.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Workflow.SchedulerIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains LLM settings handed to the text generation client.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
