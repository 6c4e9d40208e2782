package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/slack"
	"contentfactory/internal/stage"
	"contentfactory/internal/textutil"
)

const previewRunes = 400

// Channel is the human-facing transport. *slack.Client satisfies it.
type Channel interface {
	Configured() bool
	SendNotification(ctx context.Context, title, body, runID string) error
	SendApprovalRequest(ctx context.Context, req slack.ApprovalRequest) (string, error)
	SendRevisionRequest(ctx context.Context, req slack.RevisionRequest) error
}

// ErrChannelUnavailable is returned when no channel is configured.
var ErrChannelUnavailable = errors.New("approval channel not configured")

// Gateway formats approval requests and normalizes responses.
type Gateway struct {
	channel Channel
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used to stamp responses.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway wraps channel. A nil channel yields a gateway that can still
// normalize responses but cannot dispatch.
func NewGateway(channel Channel, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Gateway{
		channel: channel,
		logger:  logger.With(logging.String(logging.FieldComponent, "approval-gateway")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether requests can be dispatched.
func (g *Gateway) Available() bool {
	return g != nil && g.channel != nil && g.channel.Configured()
}

// ProcessApprovalResponse normalizes an inbound event. It returns nil when
// the event is not a recognized approval signal; callers must then leave
// every run untouched.
func (g *Gateway) ProcessApprovalResponse(messageRef, userID, reaction, replyText string) *Response {
	if strings.TrimSpace(messageRef) == "" {
		return nil
	}
	kind, feedback, ok := normalize(reaction, replyText)
	if !ok {
		return nil
	}
	return &Response{
		Approved:   kind == DecisionApprove,
		Decision:   kind,
		Feedback:   feedback,
		UserID:     strings.TrimSpace(userID),
		MessageRef: strings.TrimSpace(messageRef),
		Timestamp:  g.now().UTC(),
	}
}

// Request is one approval to dispatch.
type Request struct {
	ApprovalID string
	RunID      string
	Spec       stage.ApprovalSpec
}

// RequestApproval dispatches the request and returns the channel's message
// reference for correlating responses.
func (g *Gateway) RequestApproval(ctx context.Context, req Request) (string, error) {
	if !g.Available() {
		return "", ErrChannelUnavailable
	}
	title := strings.TrimSpace(req.Spec.RelatedTitle)
	if title == "" {
		title = textutil.StageLabel(req.Spec.Type)
	}
	ref, err := g.channel.SendApprovalRequest(ctx, slack.ApprovalRequest{
		ApprovalID: req.ApprovalID,
		RunID:      req.RunID,
		Type:       req.Spec.Type,
		Title:      title,
		Preview:    textutil.Truncate(textutil.StripTags(req.Spec.Preview), previewRunes),
		Links:      req.Spec.Links,
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "approval-gateway", "send approval request", "", err)
	}
	g.logger.Info("approval requested",
		logging.String(logging.FieldEventType, "approval_requested"),
		logging.String(logging.FieldApprovalID, req.ApprovalID),
		logging.String(logging.FieldRunID, req.RunID),
		logging.String("message_ref", ref),
	)
	return ref, nil
}

// RequestRevision posts the reviewer's feedback in the approval thread.
func (g *Gateway) RequestRevision(ctx context.Context, approvalID, runID, feedback, threadRef string) error {
	if !g.Available() {
		return ErrChannelUnavailable
	}
	if err := g.channel.SendRevisionRequest(ctx, slack.RevisionRequest{
		ApprovalID: approvalID,
		RunID:      runID,
		Feedback:   feedback,
		ThreadRef:  threadRef,
	}); err != nil {
		return services.Wrap(services.ErrExternalTool, "approval-gateway", "send revision request", "", err)
	}
	return nil
}
