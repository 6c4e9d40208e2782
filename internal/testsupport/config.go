package testsupport

import (
	"path/filepath"
	"testing"

	"contentfactory/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External service credentials are left empty so adapters stay unconfigured
// unless a test opts in.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = ""
	cfgVal.Slack.BotToken = ""
	cfgVal.WordPress.AppPassword = ""
	cfgVal.ElevenLabs.APIKey = ""
	cfgVal.Kie.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithApprovals toggles Slack approval gating.
func WithApprovals(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Slack.ApprovalsEnabled = enabled
	}
}

// WithApprovalTimeout sets approval_timeout_hours.
func WithApprovalTimeout(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.ApprovalTimeoutHours = hours
	}
}

// WithMutation applies an arbitrary change to the config.
func WithMutation(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
