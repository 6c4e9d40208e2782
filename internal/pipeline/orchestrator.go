package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"contentfactory/internal/approval"
	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/registry"
	"contentfactory/internal/services"
	"contentfactory/internal/store"
)

// RunStore is the slice of the record store the engine needs.
// *store.Store satisfies it.
type RunStore interface {
	CreatePipelineRun(ctx context.Context, run *store.PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *store.PipelineRun) error
	GetPipelineRun(ctx context.Context, id string) (*store.PipelineRun, error)
	ListPipelineRuns(ctx context.Context, limit int, statuses ...store.RunStatus) ([]*store.PipelineRun, error)
	AddPipelineLog(ctx context.Context, runID string, entry store.LogEntry) error
	PauseRun(ctx context.Context, run *store.PipelineRun, approval *store.Approval) error
	UpdateApproval(ctx context.Context, approval *store.Approval) error
	GetApproval(ctx context.Context, id string) (*store.Approval, error)
	GetApprovalBySlackMessage(ctx context.Context, messageRef string) (*store.Approval, error)
	ListApprovals(ctx context.Context, q store.ApprovalQuery) ([]*store.Approval, error)
}

// Deps are the collaborators injected into the engine.
type Deps struct {
	Store    RunStore
	Registry *registry.Registry
	Gateway  *approval.Gateway
	Notifier notifications.Service
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Orchestrator executes pipeline runs.
type Orchestrator struct {
	cfg      *config.Config
	store    RunStore
	registry *registry.Registry
	gateway  *approval.Gateway
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
	locks    *runLocks
}

// New constructs an Orchestrator. Store and Registry are required.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("pipeline: registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	gateway := deps.Gateway
	if gateway == nil {
		gateway = approval.NewGateway(nil, logger)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    deps.Store,
		registry: deps.Registry,
		gateway:  gateway,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		now:      now,
		locks:    newRunLocks(),
	}, nil
}

// Registry exposes the worker registry the engine resolves against.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

func (o *Orchestrator) runContext(ctx context.Context, run *store.PipelineRun) context.Context {
	ctx = services.WithRunID(ctx, run.ID)
	return services.WithPipeline(ctx, run.PipelineType)
}

func (o *Orchestrator) runLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, o.logger)
}

// record writes a user-visible run log line and mirrors it to slog.
func (o *Orchestrator) record(ctx context.Context, run *store.PipelineRun, level slog.Level, worker, message string, attrs ...logging.Attr) {
	logger := o.runLogger(ctx)
	if worker != "" {
		attrs = append(attrs, logging.String(logging.FieldWorker, worker))
	}
	logger.Log(ctx, level, message, logging.Args(attrs...)...)
	entry := store.LogEntry{
		Timestamp: o.now().UTC(),
		Level:     strings.ToLower(level.String()),
		Worker:    worker,
		Message:   message,
	}
	if err := o.store.AddPipelineLog(context.WithoutCancel(ctx), run.ID, entry); err != nil {
		logger.Warn("failed to persist run log",
			logging.Error(err),
			logging.String(logging.FieldEventType, "run_log_persist_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}

// persist saves run, detached from caller cancellation so bookkeeping
// survives a shutdown mid-run.
func (o *Orchestrator) persist(ctx context.Context, run *store.PipelineRun) error {
	return o.store.UpdatePipelineRun(context.WithoutCancel(ctx), run)
}

// notify publishes an event; failures are logged and otherwise ignored.
func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(o.runLogger(ctx), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check slack.bot_token and slack.channel"),
			logging.String(logging.FieldImpact, "run outcome unaffected"),
		)
	}
}
