// Package slack is the notification and approval channel. Outbound messages go
// through chat.postMessage; inbound Events API payloads are decoded by
// ParseEvent for the approval webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contentfactory/internal/services"
)

const (
	defaultBaseURL = "https://slack.com/api"
	defaultTimeout = 15 * time.Second
)

// Config captures the Slack bot settings.
type Config struct {
	BotToken       string
	Channel        string
	BaseURL        string
	TimeoutSeconds int
}

// ApprovalRequest is the human-facing summary of an artifact awaiting sign-off.
type ApprovalRequest struct {
	ApprovalID string
	RunID      string
	Type       string
	Title      string
	Preview    string
	Links      []string
}

// RevisionRequest acknowledges a revision decision in the approval thread.
type RevisionRequest struct {
	ApprovalID string
	RunID      string
	Feedback   string
	// ThreadRef is the messageRef of the original approval request.
	ThreadRef string
}

// Client posts messages with a bot token.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a Slack client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether a token and channel are set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BotToken != "" && c.cfg.Channel != ""
}

// SendNotification posts a plain status message.
func (c *Client) SendNotification(ctx context.Context, title, body, runID string) error {
	text := fmt.Sprintf("*%s*\n%s", strings.TrimSpace(title), strings.TrimSpace(body))
	if runID != "" {
		text += fmt.Sprintf("\n_run %s_", runID)
	}
	_, err := c.post(ctx, "send notification", message{Channel: c.cfg.Channel, Text: text})
	return err
}

// SendApprovalRequest posts the approval request and returns its messageRef
// ("channel:ts"), which inbound reactions and replies refer back to.
func (c *Client) SendApprovalRequest(ctx context.Context, req ApprovalRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, ":memo: *Approval needed* (%s): %s\n", req.Type, req.Title)
	if preview := strings.TrimSpace(req.Preview); preview != "" {
		fmt.Fprintf(&b, ">%s\n", strings.ReplaceAll(preview, "\n", "\n>"))
	}
	for _, link := range req.Links {
		fmt.Fprintf(&b, "• %s\n", link)
	}
	b.WriteString("React :white_check_mark: to approve, :x: to reject, :pencil: to request changes, or reply `revise: <notes>`.\n")
	fmt.Fprintf(&b, "_approval %s · run %s_", req.ApprovalID, req.RunID)

	resp, err := c.post(ctx, "send approval request", message{Channel: c.cfg.Channel, Text: b.String()})
	if err != nil {
		return "", err
	}
	return FormatMessageRef(resp.Channel, resp.TS), nil
}

// SendRevisionRequest replies in the approval thread with the requested changes.
func (c *Client) SendRevisionRequest(ctx context.Context, req RevisionRequest) error {
	msg := message{
		Channel: c.cfg.Channel,
		Text:    fmt.Sprintf(":pencil2: Revision requested for approval %s (run %s):\n>%s", req.ApprovalID, req.RunID, strings.TrimSpace(req.Feedback)),
	}
	if channel, ts, ok := ParseMessageRef(req.ThreadRef); ok {
		msg.Channel = channel
		msg.ThreadTS = ts
	}
	_, err := c.post(ctx, "send revision request", msg)
	return err
}

// FormatMessageRef joins a channel id and message timestamp.
func FormatMessageRef(channel, ts string) string {
	return channel + ":" + ts
}

// ParseMessageRef splits a messageRef produced by FormatMessageRef.
func ParseMessageRef(ref string) (channel, ts string, ok bool) {
	channel, ts, ok = strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || channel == "" || ts == "" {
		return "", "", false
	}
	return channel, ts, true
}

type message struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

type postResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

func (c *Client) post(ctx context.Context, op string, msg message) (postResponse, error) {
	var out postResponse
	if !c.Configured() {
		return out, services.Wrap(services.ErrConfiguration, "slack", op, "bot_token and channel required", nil)
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return out, services.Wrap(services.ErrValidation, "slack", op, "encode message", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat.postMessage", bytes.NewReader(encoded))
	if err != nil {
		return out, services.Wrap(services.ErrValidation, "slack", op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, services.Wrap(services.ErrExternalTool, "slack", op, "http error", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return out, services.Wrap(services.ErrExternalTool, "slack", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return out, services.Wrap(services.ErrExternalTool, "slack", op, fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, services.Wrap(services.ErrExternalTool, "slack", op, "decode response", err)
	}
	if !out.OK {
		return out, services.Wrap(services.ErrExternalTool, "slack", op, "api error: "+out.Error, nil)
	}
	return out, nil
}
