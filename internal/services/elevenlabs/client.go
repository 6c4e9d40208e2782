// Package elevenlabs adapts ElevenLabs text-to-speech to the generation job
// contract. Synthesis is synchronous upstream, so Submit renders the audio to
// the media directory and PollStatus reports the stored result.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentfactory/internal/services"
	"contentfactory/internal/services/generation"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io/v1"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
	defaultTimeout      = 120 * time.Second
)

// Config captures the ElevenLabs settings.
type Config struct {
	APIKey    string
	VoiceID   string
	ModelID   string
	BaseURL   string
	OutputDir string
}

type task struct {
	status generation.Status
}

// Client renders speech and tracks rendered tasks in memory.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	tasks map[string]task
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

// NewClient constructs a text-to-speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tasks:      make(map[string]task),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Submit synthesizes req.Prompt and stores the audio under OutputDir.
// The "voice_id" param overrides the configured voice.
func (c *Client) Submit(ctx context.Context, req generation.Request) (string, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "elevenlabs", "submit speech", "text required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "elevenlabs", "submit speech", "api key required", nil)
	}
	voice := req.Param("voice_id", c.cfg.VoiceID)
	if voice == "" {
		return "", services.Wrap(services.ErrConfiguration, "elevenlabs", "submit speech", "voice id required", nil)
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": req.Param("model_id", c.cfg.ModelID),
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode speech request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.cfg.BaseURL, voice, defaultOutputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new speech request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "elevenlabs", "submit speech", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrExternalTool, "elevenlabs", "submit speech",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	taskID := uuid.NewString()
	path, err := c.store(taskID, resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "elevenlabs", "store audio", "", err)
	}
	c.mu.Lock()
	c.tasks[taskID] = task{status: generation.Status{State: generation.StateCompleted, ResultURL: path}}
	c.mu.Unlock()
	return taskID, nil
}

// PollStatus reports the stored status for a task rendered by Submit.
func (c *Client) PollStatus(_ context.Context, taskID string) (generation.Status, error) {
	c.mu.Lock()
	t, ok := c.tasks[taskID]
	c.mu.Unlock()
	if !ok {
		return generation.Status{State: generation.StateFailed, Error: "unknown task " + taskID}, nil
	}
	return t.status, nil
}

func (c *Client) store(taskID string, body io.Reader) (string, error) {
	dir := strings.TrimSpace(c.cfg.OutputDir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	path := filepath.Join(dir, taskID+".mp3")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}
	return path, nil
}
