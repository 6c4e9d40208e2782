// Package batch runs BlogMaster over many topics with bounded concurrency.
// Items are isolated: a failure or panic in one never affects another.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/store"
	"contentfactory/internal/workers"
)

// Executor produces one article. *workers.BlogMaster satisfies it.
type Executor interface {
	Execute(ctx context.Context, req workers.BlogRequest) workers.BlogResult
}

// TopicLister lists topics by status.
type TopicLister interface {
	GetTopics(ctx context.Context, statuses ...store.TopicStatus) ([]*store.Topic, error)
}

// Item is one batch entry.
type Item struct {
	TopicID      string `json:"topic_id"`
	TestMode     bool   `json:"test_mode"`
	SkipFailures bool   `json:"skip_failures"`
}

// ItemResult is the outcome of one Item, at the same index as its input.
type ItemResult struct {
	TopicID string `json:"topic_id"`
	workers.BlogResult
}

// Summary aggregates a batch.
type Summary struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []ItemResult  `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Processor fans BlogMaster runs out over a bounded worker group.
type Processor struct {
	executor    Executor
	topics      TopicLister
	notifier    notifications.Service
	logger      *slog.Logger
	concurrency int
}

// New constructs a Processor limited to workflow.batch_concurrency items
// in flight.
func New(cfg *config.Config, executor Executor, topics TopicLister, notifier notifications.Service, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Processor{
		executor:    executor,
		topics:      topics,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "batch"),
		concurrency: max(cfg.Workflow.BatchConcurrency, 1),
	}
}

// ProcessBatch runs every item and returns one result per item in input
// order.
func (p *Processor) ProcessBatch(ctx context.Context, items []Item) Summary {
	started := time.Now()
	results := make([]ItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = p.processOne(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Processed: len(items), Results: results, Duration: time.Since(started)}
	for _, res := range results {
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	p.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)
	if err := p.notifier.Publish(context.WithoutCancel(ctx), notifications.EventBatchCompleted, notifications.Payload{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	}); err != nil {
		p.logger.Warn("batch notification failed", logging.Error(err))
	}
	return summary
}

// ProcessAllPending runs a batch over every pending topic.
func (p *Processor) ProcessAllPending(ctx context.Context, testMode bool) (Summary, error) {
	topics, err := p.topics.GetTopics(ctx, store.TopicPending)
	if err != nil {
		return Summary{}, fmt.Errorf("list pending topics: %w", err)
	}
	items := make([]Item, 0, len(topics))
	for _, topic := range topics {
		items = append(items, Item{TopicID: topic.ID, TestMode: testMode})
	}
	return p.ProcessBatch(ctx, items), nil
}

func (p *Processor) processOne(ctx context.Context, item Item) (res ItemResult) {
	res.TopicID = item.TopicID
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("batch item panicked",
				logging.String("topic_id", item.TopicID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.Alert("batch_item_panic"),
			)
			res.BlogResult = workers.BlogResult{Errors: []string{fmt.Sprintf("panic: %v", r)}}
		}
	}()
	if err := ctx.Err(); err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.BlogResult = p.executor.Execute(ctx, workers.BlogRequest{
		TopicID:      item.TopicID,
		TestMode:     item.TestMode,
		SkipFailures: item.SkipFailures,
	})
	if !res.Success {
		logging.WarnWithContext(p.logger, "batch item failed", "batch_item_failed",
			logging.String("topic_id", item.TopicID),
			logging.String("run_id", res.RunID),
			logging.Any("errors", res.Errors),
		)
	}
	return res
}
