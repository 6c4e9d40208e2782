// Package wordpress is the publishing adapter: it creates and updates posts
// through the WordPress REST API using application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contentfactory/internal/services"
)

const defaultTimeout = 30 * time.Second

// Config captures the site connection settings.
type Config struct {
	BaseURL        string
	Username       string
	AppPassword    string
	DefaultStatus  string
	TimeoutSeconds int
}

// Post is the payload for a new post.
type Post struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Excerpt  string         `json:"excerpt,omitempty"`
	Status   string         `json:"status,omitempty"`
	Slug     string         `json:"slug,omitempty"`
	Lang     string         `json:"lang,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Featured int64          `json:"featured_media,omitempty"`
}

// PostPatch carries the fields to change; zero values are left untouched.
type PostPatch struct {
	Title    string         `json:"title,omitempty"`
	Content  string         `json:"content,omitempty"`
	Excerpt  string         `json:"excerpt,omitempty"`
	Status   string         `json:"status,omitempty"`
	Slug     string         `json:"slug,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Featured int64          `json:"featured_media,omitempty"`
}

// PostRef identifies a stored post.
type PostRef struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// Client talks to one WordPress site.
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

// NewClient constructs a WordPress client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.AppPassword = strings.TrimSpace(cfg.AppPassword)
	if strings.TrimSpace(cfg.DefaultStatus) == "" {
		cfg.DefaultStatus = "draft"
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

// Configured reports whether the site URL and credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.Username != "" && c.cfg.AppPassword != ""
}

// CreatePost creates a post, applying the default status when none is set.
func (c *Client) CreatePost(ctx context.Context, post Post) (PostRef, error) {
	if strings.TrimSpace(post.Title) == "" {
		return PostRef{}, services.Wrap(services.ErrValidation, "wordpress", "create post", "title required", nil)
	}
	if post.Status == "" {
		post.Status = c.cfg.DefaultStatus
	}
	var ref PostRef
	if err := c.do(ctx, "create post", "/wp-json/wp/v2/posts", post, &ref); err != nil {
		return PostRef{}, err
	}
	if ref.ID <= 0 {
		return PostRef{}, services.Wrap(services.ErrExternalTool, "wordpress", "create post", "response missing id", nil)
	}
	return ref, nil
}

// UpdatePost applies patch to the post with the given id.
func (c *Client) UpdatePost(ctx context.Context, id int64, patch PostPatch) (PostRef, error) {
	if id <= 0 {
		return PostRef{}, services.Wrap(services.ErrValidation, "wordpress", "update post", "post id required", nil)
	}
	var ref PostRef
	path := "/wp-json/wp/v2/posts/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "update post", path, patch, &ref); err != nil {
		return PostRef{}, err
	}
	return ref, nil
}

func (c *Client) do(ctx context.Context, op, path string, body, out any) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "wordpress", op, "base_url, username and app_password required", nil)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return services.Wrap(services.ErrValidation, "wordpress", op, "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrValidation, "wordpress", op, "build request", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.AppPassword)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "wordpress", op, "http error", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "wordpress", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(markerForStatus(resp.StatusCode), "wordpress", op, statusMessage(resp.StatusCode, raw), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "wordpress", op, "decode response", err)
	}
	return nil
}

func markerForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.ErrConfiguration
	case code == http.StatusNotFound:
		return services.ErrNotFound
	case code == http.StatusBadRequest:
		return services.ErrValidation
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return services.ErrExternalTool
	}
}

func statusMessage(code int, body []byte) string {
	var wpErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wpErr) == nil && wpErr.Message != "" {
		return fmt.Sprintf("http %d: %s (%s)", code, wpErr.Message, wpErr.Code)
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return fmt.Sprintf("http %d: %s", code, snippet)
}
