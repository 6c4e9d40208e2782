package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const titlePrefix = "Content Factory"

// Event names a run milestone.
type Event string

const (
	EventRunStarted      Event = "run_started"
	EventRunPaused       Event = "run_paused"
	EventRunCompleted    Event = "run_completed"
	EventRunFailed       Event = "run_failed"
	EventRunExpired      Event = "run_expired"
	EventHealerCompleted Event = "healer_completed"
	EventBatchCompleted  Event = "batch_completed"
	EventTest            Event = "test"
)

// Payload carries event fields. Well-known keys: runID, pipeline, trigger,
// stage, error, completed, failed, approvalID, issuesFound, issuesFixed,
// processed, duration.
type Payload map[string]any

func (p Payload) str(key string) string {
	if v, ok := p[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func (p Payload) num(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// Service defines the notification surface exposed to the engine.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Sender is the transport a Service posts through. *slack.Client satisfies it.
type Sender interface {
	Configured() bool
	SendNotification(ctx context.Context, title, body, runID string) error
}

// NewService builds a notifier backed by sender when it is configured, and
// a noop implementation otherwise.
func NewService(sender Sender) Service {
	if sender == nil || !sender.Configured() {
		return noopService{}
	}
	return &channelService{sender: sender}
}

type channelService struct {
	sender Sender
}

func (s *channelService) Publish(ctx context.Context, event Event, payload Payload) error {
	title, body, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	if err := s.sender.SendNotification(ctx, title, body, payload.str("runID")); err != nil {
		return fmt.Errorf("send %s notification: %w", event, err)
	}
	return nil
}

func format(event Event, p Payload) (title, body string, ok bool) {
	pipeline := p.str("pipeline")
	if pipeline == "" {
		pipeline = "pipeline"
	}
	switch event {
	case EventRunStarted:
		return titlePrefix + " - Run Started",
			fmt.Sprintf(":arrow_forward: %s run started (%s)", pipeline, orUnknown(p.str("trigger"))), true
	case EventRunPaused:
		return titlePrefix + " - Awaiting Approval",
			fmt.Sprintf(":double_vertical_bar: %s run paused after %s; approval %s", pipeline, orUnknown(p.str("stage")), orUnknown(p.str("approvalID"))), true
	case EventRunCompleted:
		completed, failed := p.num("completed"), p.num("failed")
		if failed == 0 {
			return titlePrefix + " - Run Complete",
				fmt.Sprintf(":white_check_mark: %s run complete: %d workers in %s", pipeline, completed, durationText(p)), true
		}
		return titlePrefix + " - Run Complete (with errors)",
			fmt.Sprintf(":warning: %s run complete: %d succeeded, %d failed in %s", pipeline, completed, failed, durationText(p)), true
	case EventRunFailed:
		return titlePrefix + " - Run Failed",
			fmt.Sprintf(":x: %s run failed at %s: %s", pipeline, orUnknown(p.str("stage")), orUnknown(p.str("error"))), true
	case EventRunExpired:
		return titlePrefix + " - Approval Expired",
			fmt.Sprintf(":hourglass: %s run expired waiting for approval %s", pipeline, orUnknown(p.str("approvalID"))), true
	case EventHealerCompleted:
		return titlePrefix + " - Data Healer",
			fmt.Sprintf(":adhesive_bandage: healer found %d issues, fixed %d", p.num("issuesFound"), p.num("issuesFixed")), true
	case EventBatchCompleted:
		return titlePrefix + " - Batch Complete",
			fmt.Sprintf(":package: batch processed %d items, %d failed", p.num("processed"), p.num("failed")), true
	case EventTest:
		return titlePrefix + " - Test", ":test_tube: Notification system test", true
	default:
		return "", "", false
	}
}

func durationText(p Payload) string {
	d, _ := p["duration"].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
