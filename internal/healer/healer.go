package healer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/workers"
)

// PipelineType is the run type recorded for healer sweeps.
const PipelineType = "data-healer"

// Store is the record store surface the healer needs.
type Store interface {
	GetContentPieces(ctx context.Context, q store.ContentQuery) ([]*store.ContentPiece, error)
	UpdateContentPiece(ctx context.Context, id string, patch store.ContentPatch) (*store.ContentPiece, error)
	CreatePipelineRun(ctx context.Context, run *store.PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *store.PipelineRun) error
	AddPipelineLog(ctx context.Context, runID string, entry store.LogEntry) error
}

// Options controls a sweep.
type Options struct {
	// CheckAllRecords scans every piece instead of the most recent ones.
	CheckAllRecords bool `json:"check_all_records"`
	// AutoFix repairs issues; otherwise they are only reported.
	AutoFix bool `json:"auto_fix"`
	// TestMode plans repairs without touching the store or the site.
	TestMode bool              `json:"test_mode"`
	Trigger  store.TriggerType `json:"trigger,omitempty"`
}

// Report summarizes a sweep.
type Report struct {
	RunID          string        `json:"run_id"`
	Success        bool          `json:"success"`
	Scanned        int           `json:"scanned"`
	IssuesFound    int           `json:"issues_found"`
	IssuesFixed    int           `json:"issues_fixed"`
	Issues         []Issue       `json:"issues"`
	HealingActions []string      `json:"healing_actions"`
	// PlannedActions lists the repairs a test mode sweep would make.
	PlannedActions []string      `json:"planned_actions,omitempty"`
	DryRun         bool          `json:"dry_run"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Deps are the healer's collaborators.
type Deps struct {
	Store    Store
	Workers  workers.Deps
	Notifier notifications.Service
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Healer runs data repair sweeps.
type Healer struct {
	cfg        *config.Config
	store      Store
	builder    *workers.GutenbergBuilder
	translator *workers.Translator
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Healer. Repairs that publish posts reuse the pipeline's
// gutenberg-builder and translator.
func New(cfg *config.Config, deps Deps) *Healer {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	workerDeps := deps.Workers
	if workerDeps.Config == nil {
		workerDeps.Config = cfg
	}
	if st, ok := deps.Store.(workers.Store); ok && workerDeps.Store == nil {
		workerDeps.Store = st
	}
	return &Healer{
		cfg:        cfg,
		store:      deps.Store,
		builder:    workers.NewGutenbergBuilder(workerDeps),
		translator: workers.NewTranslator(workerDeps),
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "healer"),
		now:        now,
	}
}

// Run performs one sweep. Only store failures outside individual repairs
// are returned as errors.
func (h *Healer) Run(ctx context.Context, opts Options) (Report, error) {
	started := h.now()
	trigger := opts.Trigger
	if trigger == "" {
		trigger = store.TriggerHealer
	}
	optionsJSON, err := stage.EncodeOptions(stage.Options{TestMode: opts.TestMode})
	if err != nil {
		return Report{}, err
	}
	run := &store.PipelineRun{
		TriggerType:   trigger,
		PipelineType:  PipelineType,
		Status:        store.RunRunning,
		ArtifactsJSON: "{}",
		OptionsJSON:   optionsJSON,
		StartedAt:     started.UTC(),
	}
	if err := h.store.CreatePipelineRun(ctx, run); err != nil {
		return Report{}, fmt.Errorf("create healer run: %w", err)
	}
	ctx = services.WithPipeline(services.WithRunID(ctx, run.ID), PipelineType)
	report := Report{RunID: run.ID, HealingActions: []string{}, DryRun: opts.TestMode}

	query := store.ContentQuery{}
	if !opts.CheckAllRecords {
		query.Limit = h.cfg.Workflow.HealerRecentLimit
	}
	pieces, err := h.store.GetContentPieces(ctx, query)
	if err != nil {
		return h.finish(ctx, run, report, started, fmt.Errorf("list content pieces: %w", err))
	}
	report.Scanned = len(pieces)
	h.record(ctx, run, slog.LevelInfo, fmt.Sprintf("scanning %d content pieces (auto_fix=%t)", len(pieces), opts.AutoFix))

	for _, piece := range pieces {
		if err := ctx.Err(); err != nil {
			return h.finish(ctx, run, report, started, err)
		}
		for _, issue := range Detect(piece) {
			report.IssuesFound++
			h.record(ctx, run, slog.LevelWarn, fmt.Sprintf("%s: %s (%s)", issue.Kind, piece.ID, issue.Detail))
			switch {
			case opts.AutoFix && opts.TestMode:
				action := plan(piece, issue.Kind)
				issue.Action = action
				report.PlannedActions = append(report.PlannedActions, action)
				h.record(ctx, run, slog.LevelInfo, "would heal: "+action)
			case opts.AutoFix:
				action, err := h.fix(ctx, piece, issue.Kind)
				if err != nil {
					heal := &PartialHealError{ContentPieceID: piece.ID, Issue: issue.Kind, Err: err}
					issue.Error = heal.Error()
					report.Errors = append(report.Errors, heal.Error())
					logging.WarnWithContext(h.logger, "repair failed", "heal_failed",
						logging.String(logging.FieldContentPieceID, piece.ID),
						logging.String("issue", string(issue.Kind)),
						logging.Error(err),
						logging.String(logging.FieldImpact, "record left inconsistent; sweep continues"),
					)
					h.record(ctx, run, slog.LevelError, heal.Error())
				} else {
					issue.Fixed = true
					issue.Action = action
					report.IssuesFixed++
					report.HealingActions = append(report.HealingActions, action)
					h.record(ctx, run, slog.LevelInfo, "healed: "+action)
				}
			}
			report.Issues = append(report.Issues, issue)
		}
	}
	return h.finish(ctx, run, report, started, nil)
}

// plan names the repair fix would make for kind.
func plan(piece *store.ContentPiece, kind IssueKind) string {
	switch kind {
	case IssueMissingEnglishPost:
		return "create_english_post:" + piece.ID
	case IssueMissingHebrewPost:
		return "create_hebrew_post:" + piece.ID
	case IssuePublishedWithoutPosts:
		return fmt.Sprintf("reset_status:%s:%s", piece.ID, store.ContentApproved)
	case IssueSEOScoreOutOfRange:
		return "clamp_seo_score:" + piece.ID
	default:
		return "unrepairable:" + piece.ID
	}
}

func (h *Healer) fix(ctx context.Context, piece *store.ContentPiece, kind IssueKind) (string, error) {
	var stageOpts stage.Options
	switch kind {
	case IssueMissingEnglishPost:
		id, err := h.translator.PublishEnglish(ctx, piece, stageOpts)
		if err != nil {
			return "", err
		}
		piece.EnglishPostID = id
		return fmt.Sprintf("created_english_post:%s:%d", piece.ID, id), nil
	case IssueMissingHebrewPost:
		id, _, err := h.builder.PublishHebrew(ctx, piece, stageOpts)
		if err != nil {
			return "", err
		}
		piece.HebrewPostID = id
		return fmt.Sprintf("created_hebrew_post:%s:%d", piece.ID, id), nil
	case IssuePublishedWithoutPosts:
		if _, err := h.store.UpdateContentPiece(ctx, piece.ID, store.ContentPatch{Status: store.Ptr(store.ContentApproved)}); err != nil {
			return "", err
		}
		return fmt.Sprintf("reset_status:%s:%s", piece.ID, store.ContentApproved), nil
	case IssueSEOScoreOutOfRange:
		score := min(max(piece.SEOScore, 0), 100)
		if _, err := h.store.UpdateContentPiece(ctx, piece.ID, store.ContentPatch{SEOScore: &score}); err != nil {
			return "", err
		}
		return fmt.Sprintf("clamped_seo_score:%s", piece.ID), nil
	default:
		return "", fmt.Errorf("no repair for %s", kind)
	}
}

// finish closes the healer run. A fatal error fails it; repair errors do not.
func (h *Healer) finish(ctx context.Context, run *store.PipelineRun, report Report, started time.Time, fatal error) (Report, error) {
	finished := h.now().UTC()
	run.CompletedAt = &finished
	report.Duration = finished.Sub(started)
	report.Success = fatal == nil
	if fatal != nil {
		run.Status = store.RunFailed
		run.ErrorMessage = fatal.Error()
		report.Errors = append(report.Errors, fatal.Error())
	} else {
		run.Status = store.RunCompleted
		if len(report.Errors) > 0 {
			run.ErrorMessage = strings.Join(report.Errors, "; ")
		}
	}
	if err := h.store.UpdatePipelineRun(context.WithoutCancel(ctx), run); err != nil {
		return report, errors.Join(fatal, fmt.Errorf("persist healer run: %w", err))
	}
	h.record(ctx, run, slog.LevelInfo, fmt.Sprintf("sweep finished: %d issues, %d fixed, %d failed",
		report.IssuesFound, report.IssuesFixed, len(report.Errors)))
	h.logger.Info("healer sweep finished",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldEventType, "healer_complete"),
		logging.Int("scanned", report.Scanned),
		logging.Int("issues_found", report.IssuesFound),
		logging.Int("issues_fixed", report.IssuesFixed),
		logging.Duration("duration", report.Duration),
	)
	if err := h.notifier.Publish(context.WithoutCancel(ctx), notifications.EventHealerCompleted, notifications.Payload{
		"runID":       run.ID,
		"issuesFound": report.IssuesFound,
		"issuesFixed": report.IssuesFixed,
		"duration":    report.Duration,
	}); err != nil {
		h.logger.Warn("healer notification failed", logging.Error(err))
	}
	return report, fatal
}

func (h *Healer) record(ctx context.Context, run *store.PipelineRun, level slog.Level, message string) {
	logging.WithContext(ctx, h.logger).Log(ctx, level, message)
	if err := h.store.AddPipelineLog(context.WithoutCancel(ctx), run.ID, store.LogEntry{
		Timestamp: h.now().UTC(),
		Level:     strings.ToLower(level.String()),
		Message:   message,
	}); err != nil {
		h.logger.Warn("failed to persist healer log", logging.Error(err))
	}
}
