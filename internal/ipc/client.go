package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contentfactory/internal/api"
)

const defaultTimeout = 10 * time.Second

// ErrUnavailable marks transport failures reaching the daemon.
var ErrUnavailable = errors.New("daemon unavailable")

// StatusError is a non-2xx API reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Code)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Code == http.StatusNotFound
}

// Client calls the daemon API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for the API bound at addr ("host:port" or a
// full URL).
func NewClient(addr, token string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + dialHost(base)
	}
	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dialHost maps wildcard listen addresses to loopback.
func dialHost(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns recent runs, optionally filtered by status.
func (c *Client) ListRuns(ctx context.Context, limit int, statuses ...string) ([]api.Run, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	for _, status := range statuses {
		if status = strings.TrimSpace(status); status != "" {
			query.Add("status", status)
		}
	}
	path := "/api/runs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.RunListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// DescribeRun returns a run with its logs and approvals.
func (c *Client) DescribeRun(ctx context.Context, id string) (*api.RunDetail, error) {
	var resp api.RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListApprovals returns approvals, optionally filtered by status.
func (c *Client) ListApprovals(ctx context.Context, status string) ([]api.Approval, error) {
	path := "/api/approvals"
	if status = strings.TrimSpace(status); status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp api.ApprovalListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// StartContent queues a content pipeline run.
func (c *Client) StartContent(ctx context.Context, req ContentRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/runs/content", req)
}

// StartPodcast queues a podcast autopilot run.
func (c *Client) StartPodcast(ctx context.Context, req PodcastRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/runs/podcast", req)
}

// StartSEO queues an SEO optimizer run.
func (c *Client) StartSEO(ctx context.Context, req SEORequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/runs/seo", req)
}

// StartHealer queues a data healer sweep.
func (c *Client) StartHealer(ctx context.Context, req HealerRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/healer", req)
}

// StartBatch queues a batch of topics.
func (c *Client) StartBatch(ctx context.Context, req BatchRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/batch", req)
}

// ProcessPending queues every pending topic.
func (c *Client) ProcessPending(ctx context.Context, req PendingRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/pending", req)
}

// Decide submits a decision for an approval.
func (c *Client) Decide(ctx context.Context, approvalID string, req DecisionRequest) (*AcceptedResponse, error) {
	return c.accept(ctx, "/api/approvals/"+url.PathEscape(approvalID)+"/decision", req)
}

func (c *Client) accept(ctx context.Context, path string, body any) (*AcceptedResponse, error) {
	var resp AcceptedResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: api address is not configured", ErrUnavailable)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(apiErr.Error)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
