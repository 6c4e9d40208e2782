// Package social dispatches generated social posts to an outbound webhook
// (an automation endpoint that fans them out to the actual networks).
package social

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

const defaultTimeout = 20 * time.Second

// Post is one platform-specific post.
type Post struct {
	Platform       string `json:"platform"`
	Content        string `json:"content"`
	Link           string `json:"link,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	ContentPieceID string `json:"content_piece_id,omitempty"`
}

// Result is the webhook's acknowledgement for one post.
type Result struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	URL      string `json:"url"`
}

// Client posts to the configured webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// NewClient constructs a webhook client. A nil httpClient uses a default.
func NewClient(webhookURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{webhookURL: strings.TrimSpace(webhookURL), httpClient: httpClient}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.webhookURL != ""
}

// Publish sends post and returns the webhook's acknowledgement. Webhooks that
// reply without a body are treated as accepted with no remote id.
func (c *Client) Publish(ctx context.Context, post Post) (Result, error) {
	result := Result{Platform: post.Platform}
	if !c.Configured() {
		return result, services.Wrap(services.ErrConfiguration, "social", "publish", "webhook_url required", nil)
	}
	if strings.TrimSpace(post.Content) == "" {
		return result, services.Wrap(services.ErrValidation, "social", "publish", "content required for "+post.Platform, nil)
	}
	encoded, err := json.Marshal(post)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "social", "publish", "encode post", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "social", "publish", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "social", "publish", "http error", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return result, services.Wrap(services.ErrExternalTool, "social", "publish",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &result)
	}
	if result.Platform == "" {
		result.Platform = post.Platform
	}
	return result, nil
}
