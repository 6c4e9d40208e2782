package workers

import (
	"context"
	"strings"

	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
)

// ContentRunner starts content pipeline runs. *pipeline.Orchestrator
// satisfies it.
type ContentRunner interface {
	RunContentPipeline(ctx context.Context, opts pipeline.RunOptions) (pipeline.RunResult, error)
}

// TopicLookup finds topics by id.
type TopicLookup interface {
	GetTopic(ctx context.Context, id string) (*store.Topic, error)
}

// BlogRequest asks for one article about a known topic.
type BlogRequest struct {
	TopicID      string `json:"topic_id"`
	TestMode     bool   `json:"test_mode"`
	SkipFailures bool   `json:"skip_failures"`
}

// BlogResult summarizes a BlogMaster run.
type BlogResult struct {
	Success        bool            `json:"success"`
	Errors         []string        `json:"errors,omitempty"`
	RunID          string          `json:"run_id,omitempty"`
	Status         store.RunStatus `json:"status,omitempty"`
	ContentPieceID string          `json:"content_piece_id,omitempty"`
	HebrewPostID   int64           `json:"hebrew_post_id,omitempty"`
	EnglishPostID  int64           `json:"english_post_id,omitempty"`
}

// BlogMaster produces an article end to end for a single topic.
type BlogMaster struct {
	topics TopicLookup
	runner ContentRunner
	// Workers overrides the manifest's content pipeline when set.
	Workers []string
}

// NewBlogMaster wires a BlogMaster.
func NewBlogMaster(topics TopicLookup, runner ContentRunner) *BlogMaster {
	return &BlogMaster{topics: topics, runner: runner}
}

// Execute validates the topic before anything is written, then runs the
// content pipeline for it.
func (b *BlogMaster) Execute(ctx context.Context, req BlogRequest) BlogResult {
	id := strings.TrimSpace(req.TopicID)
	if id == "" {
		return BlogResult{Errors: []string{"topic_id is required"}}
	}
	topic, err := b.topics.GetTopic(ctx, id)
	if err != nil {
		return BlogResult{Errors: []string{err.Error()}}
	}
	if topic == nil {
		return BlogResult{Errors: []string{(&pipeline.RecordNotFoundError{Kind: "Topic", ID: id}).Error()}}
	}

	res, err := b.runner.RunContentPipeline(ctx, pipeline.RunOptions{
		Workers:      b.Workers,
		TestMode:     req.TestMode,
		SkipFailures: req.SkipFailures,
		TopicID:      topic.ID,
	})
	out := BlogResult{
		Success:        res.Success && err == nil,
		RunID:          res.RunID,
		Status:         res.Status,
		ContentPieceID: res.Artifacts.ContentPieceID,
		HebrewPostID:   res.Artifacts.HebrewPostID,
		EnglishPostID:  res.Artifacts.EnglishPostID,
	}
	if res.Error != "" {
		out.Errors = append(out.Errors, res.Error)
	}
	if err != nil && err.Error() != res.Error {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}
