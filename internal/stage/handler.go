package stage

import (
	"context"
	"log/slog"
	"strings"

	"contentfactory/internal/services"
)

// Worker describes the contract the run engine needs from each worker.
// Execute must convert adapter failures into a failed Result rather than
// panicking or returning them out of band.
type Worker interface {
	Execute(ctx context.Context, in Input) Result
	HealthCheck(ctx context.Context) Health
}

// Options are the per-run switches persisted with a run.
type Options struct {
	TestMode     bool   `json:"test_mode,omitempty"`
	SkipFailures bool   `json:"skip_failures,omitempty"`
	TopicID      string `json:"topic_id,omitempty"`
	SEOLimit     int    `json:"seo_limit,omitempty"`
	SEOMinScore  int    `json:"seo_min_score,omitempty"`
}

// Input is the view of a run handed to a worker.
type Input struct {
	RunID        string
	PipelineType string
	Worker       string
	Options      Options
	// Artifacts is a copy of everything produced earlier in the run.
	Artifacts Artifacts
	// RevisionFeedback is set when a reviewer asked for changes and the run
	// was rewound to this worker or an earlier one.
	RevisionFeedback string
	Logger           *slog.Logger
}

// ApprovalSpec asks the engine to pause the run for human sign-off after the
// producing worker completes.
type ApprovalSpec struct {
	Type         string
	RelatedID    string
	RelatedTitle string
	Preview      string
	Links        []string
	// RewindTo names the worker to re-run on a revision request. Empty means
	// the producing worker.
	RewindTo string
}

// Result is the uniform worker outcome.
type Result struct {
	Success          bool
	Worker           string
	Artifacts        Artifacts
	RequiresApproval *ApprovalSpec
	Error            string
	// Err keeps the underlying failure for classification and logging.
	Err error
}

// Succeeded builds a successful result.
func Succeeded(worker string, artifacts Artifacts) Result {
	return Result{Success: true, Worker: worker, Artifacts: artifacts}
}

// Failed builds a failed result from err, using the structured message when
// err was produced by services.Wrap.
func Failed(worker string, err error) Result {
	message := "worker failed"
	if err != nil {
		message = strings.TrimSpace(services.Details(err).Message)
		if message == "" {
			message = err.Error()
		}
	}
	return Result{Success: false, Worker: worker, Error: message, Err: err}
}
