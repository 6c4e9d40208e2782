// Package kie adapts the Kie.ai task API to the generation job contract:
// images through the generic jobs endpoints and short videos through Veo.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contentfactory/internal/services"
	"contentfactory/internal/services/generation"
)

const (
	defaultBaseURL = "https://api.kie.ai/api/v1"
	defaultTimeout = 30 * time.Second
)

// Config captures the Kie.ai connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	VideoModel string
}

// Client issues authenticated requests against the Kie.ai API.
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

// NewClient constructs a Kie.ai client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Images returns the image generation job service.
func (c *Client) Images() generation.Service { return imageJobs{c} }

// Videos returns the video generation job service.
func (c *Client) Videos() generation.Service { return videoJobs{c} }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type taskData struct {
	TaskID string `json:"taskId"`
}

type imageJobs struct{ c *Client }

func (j imageJobs) Submit(ctx context.Context, req generation.Request) (string, error) {
	body := map[string]any{
		"model": req.Param("model", j.c.cfg.ImageModel),
		"input": map[string]any{
			"prompt":        req.Prompt,
			"output_format": req.Param("output_format", "png"),
			"image_size":    req.Param("aspect_ratio", "16:9"),
		},
	}
	var data taskData
	if err := j.c.do(ctx, http.MethodPost, "/jobs/createTask", body, &data); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "kie", "submit image", "", err)
	}
	if data.TaskID == "" {
		return "", services.Wrap(services.ErrExternalTool, "kie", "submit image", "response missing taskId", nil)
	}
	return data.TaskID, nil
}

func (j imageJobs) PollStatus(ctx context.Context, taskID string) (generation.Status, error) {
	var data struct {
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	}
	if err := j.c.do(ctx, http.MethodGet, "/jobs/recordInfo?taskId="+url.QueryEscape(taskID), nil, &data); err != nil {
		return generation.Status{}, services.Wrap(services.ErrTransient, "kie", "poll image", taskID, err)
	}
	switch strings.ToLower(data.State) {
	case "success":
		var result struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(data.ResultJSON), &result); err != nil || len(result.ResultURLs) == 0 {
			return generation.Status{State: generation.StateFailed, Error: "success without result urls"}, nil
		}
		return generation.Status{State: generation.StateCompleted, ResultURL: result.ResultURLs[0]}, nil
	case "fail":
		return generation.Status{State: generation.StateFailed, Error: data.FailMsg}, nil
	default:
		return generation.Status{State: generation.StateProcessing}, nil
	}
}

type videoJobs struct{ c *Client }

func (j videoJobs) Submit(ctx context.Context, req generation.Request) (string, error) {
	body := map[string]any{
		"prompt":      req.Prompt,
		"model":       req.Param("model", j.c.cfg.VideoModel),
		"aspectRatio": req.Param("aspect_ratio", "16:9"),
	}
	var data taskData
	if err := j.c.do(ctx, http.MethodPost, "/veo/generate", body, &data); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "kie", "submit video", "", err)
	}
	if data.TaskID == "" {
		return "", services.Wrap(services.ErrExternalTool, "kie", "submit video", "response missing taskId", nil)
	}
	return data.TaskID, nil
}

// Veo reports successFlag 0 while generating, 1 on success, 2 or 3 on failure.
func (j videoJobs) PollStatus(ctx context.Context, taskID string) (generation.Status, error) {
	var data struct {
		SuccessFlag int    `json:"successFlag"`
		ErrorMsg    string `json:"errorMessage"`
		Response    struct {
			ResultURLs []string `json:"resultUrls"`
		} `json:"response"`
	}
	if err := j.c.do(ctx, http.MethodGet, "/veo/record-info?taskId="+url.QueryEscape(taskID), nil, &data); err != nil {
		return generation.Status{}, services.Wrap(services.ErrTransient, "kie", "poll video", taskID, err)
	}
	switch data.SuccessFlag {
	case 1:
		if len(data.Response.ResultURLs) == 0 {
			return generation.Status{State: generation.StateFailed, Error: "success without result urls"}, nil
		}
		return generation.Status{State: generation.StateCompleted, ResultURL: data.Response.ResultURLs[0]}, nil
	case 2, 3:
		return generation.Status{State: generation.StateFailed, Error: data.ErrorMsg}, nil
	default:
		return generation.Status{State: generation.StateProcessing}, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("kie: api key required")
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		return fmt.Errorf("api code %d: %s", env.Code, env.Msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
