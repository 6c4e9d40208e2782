// Package daemonrun wires the content factory's services together and runs
// the daemon process. Build is shared with the CLI so one-shot commands and
// the daemon use the same adapters.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contentfactory/internal/approval"
	"contentfactory/internal/batch"
	"contentfactory/internal/config"
	"contentfactory/internal/daemon"
	"contentfactory/internal/daemonctl"
	"contentfactory/internal/healer"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/preflight"
	"contentfactory/internal/registry"
	"contentfactory/internal/services/slack"
	"contentfactory/internal/store"
	"contentfactory/internal/workers"
)

// Runtime bundles the wired services.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *store.Store
	Registry     *registry.Registry
	Notifier     notifications.Service
	Orchestrator *pipeline.Orchestrator
	Healer       *healer.Healer
	BlogMaster   *workers.BlogMaster
	Batch        *batch.Processor
}

// Build opens the store and constructs every service from cfg. Callers must
// Close the runtime.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	reg, err := registry.FromConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	channel := slack.NewClient(slack.Config{
		BotToken:       cfg.Slack.BotToken,
		Channel:        cfg.Slack.Channel,
		BaseURL:        cfg.Slack.BaseURL,
		TimeoutSeconds: cfg.Slack.TimeoutSeconds,
	})
	notifier := notifications.NewService(channel)

	workerDeps := workers.NewDeps(cfg, st)
	if err := workers.Bind(reg, workerDeps); err != nil {
		_ = st.Close()
		return nil, err
	}
	orch, err := pipeline.New(cfg, pipeline.Deps{
		Store:    st,
		Registry: reg,
		Gateway:  approval.NewGateway(channel, logger),
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	master := workers.NewBlogMaster(st, orch)
	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Store:        st,
		Registry:     reg,
		Notifier:     notifier,
		Orchestrator: orch,
		Healer: healer.New(cfg, healer.Deps{
			Store:    st,
			Workers:  workerDeps,
			Notifier: notifier,
			Logger:   logger,
		}),
		BlogMaster: master,
		Batch:      batch.New(cfg, master, st, notifier, logger),
	}, nil
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the contentfactory daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	logDependencySnapshot(logger, cfg)
	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run contentfactory preflight for details"),
			logging.String(logging.FieldImpact, "runs that need this service will fail"),
		)
	}

	pidPath := daemonctl.PIDPath(cfg)
	if err := daemonctl.WritePID(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, daemon.Components{
		Store:        rt.Store,
		Orchestrator: rt.Orchestrator,
		Healer:       rt.Healer,
		Batch:        rt.Batch,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other daemon holds the lock and api.bind is free"),
		)
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("contentfactory daemon shutting down")
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("wordpress_configured", strings.TrimSpace(cfg.WordPress.BaseURL) != ""),
		logging.Bool("slack_configured", strings.TrimSpace(cfg.Slack.BotToken) != "" && strings.TrimSpace(cfg.Slack.Channel) != ""),
		logging.Bool("approvals_enabled", cfg.Slack.ApprovalsEnabled),
		logging.Bool("kie_key_present", strings.TrimSpace(cfg.Kie.APIKey) != ""),
		logging.Bool("video_enabled", cfg.Kie.VideoEnabled),
		logging.Bool("elevenlabs_key_present", strings.TrimSpace(cfg.ElevenLabs.APIKey) != ""),
		logging.Bool("social_webhook_configured", strings.TrimSpace(cfg.Social.WebhookURL) != ""),
		logging.String("api_bind", cfg.API.Bind),
	)
}
