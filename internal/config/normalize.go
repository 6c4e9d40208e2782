package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeWordPress()
	c.normalizeSlack()
	c.normalizeMedia()
	c.normalizeSocial()
	c.normalizeSchedule()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkersManifest) != "" {
		if c.Paths.WorkersManifest, err = expandPath(c.Paths.WorkersManifest); err != nil {
			return fmt.Errorf("paths.workers_manifest: %w", err)
		}
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "OPENROUTER_API_KEY")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWordPress() {
	c.WordPress.BaseURL = strings.TrimRight(strings.TrimSpace(c.WordPress.BaseURL), "/")
	c.WordPress.Username = strings.TrimSpace(c.WordPress.Username)
	c.WordPress.AppPassword = envFallback(c.WordPress.AppPassword, "WORDPRESS_APP_PASSWORD")
	c.WordPress.DefaultStatus = strings.ToLower(strings.TrimSpace(c.WordPress.DefaultStatus))
	if c.WordPress.DefaultStatus == "" {
		c.WordPress.DefaultStatus = defaultWordPressStatus
	}
	if c.WordPress.TimeoutSeconds <= 0 {
		c.WordPress.TimeoutSeconds = defaultHTTPTimeoutSeconds
	}
}

func (c *Config) normalizeSlack() {
	c.Slack.BotToken = envFallback(c.Slack.BotToken, "SLACK_BOT_TOKEN")
	c.Slack.SigningSecret = envFallback(c.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	c.Slack.BaseURL = strings.TrimRight(strings.TrimSpace(c.Slack.BaseURL), "/")
	if c.Slack.BaseURL == "" {
		c.Slack.BaseURL = defaultSlackBaseURL
	}
	if c.Slack.TimeoutSeconds <= 0 {
		c.Slack.TimeoutSeconds = defaultHTTPTimeoutSeconds
	}
}

func (c *Config) normalizeMedia() {
	c.ElevenLabs.APIKey = envFallback(c.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	c.ElevenLabs.VoiceID = strings.TrimSpace(c.ElevenLabs.VoiceID)
	if strings.TrimSpace(c.ElevenLabs.ModelID) == "" {
		c.ElevenLabs.ModelID = defaultElevenLabsModel
	}
	c.ElevenLabs.BaseURL = strings.TrimRight(strings.TrimSpace(c.ElevenLabs.BaseURL), "/")
	if c.ElevenLabs.BaseURL == "" {
		c.ElevenLabs.BaseURL = defaultElevenLabsBaseURL
	}

	c.Kie.APIKey = envFallback(c.Kie.APIKey, "KIE_API_KEY")
	c.Kie.BaseURL = strings.TrimRight(strings.TrimSpace(c.Kie.BaseURL), "/")
	if c.Kie.BaseURL == "" {
		c.Kie.BaseURL = defaultKieBaseURL
	}
	if strings.TrimSpace(c.Kie.ImageModel) == "" {
		c.Kie.ImageModel = defaultKieImageModel
	}
	if strings.TrimSpace(c.Kie.VideoModel) == "" {
		c.Kie.VideoModel = defaultKieVideoModel
	}
}

func (c *Config) normalizeSocial() {
	c.Social.WebhookURL = strings.TrimSpace(c.Social.WebhookURL)
	c.Social.Platforms = normalizeList(c.Social.Platforms)
}

func (c *Config) normalizeSchedule() {
	c.Schedule.HealerDays = normalizeList(c.Schedule.HealerDays)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.WorkerOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.WorkerOverrides))
		for key, value := range c.Logging.WorkerOverrides {
			key = strings.ToLower(strings.TrimSpace(key))
			if key == "" {
				continue
			}
			normalized[key] = strings.ToLower(strings.TrimSpace(value))
		}
		c.Logging.WorkerOverrides = normalized
	}
}

func envFallback(value, env string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if fromEnv, ok := os.LookupEnv(env); ok {
		return strings.TrimSpace(fromEnv)
	}
	return ""
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
