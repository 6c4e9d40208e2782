package preflight

import (
	"strings"

	"contentfactory/internal/config"
)

// Integrations summarizes the optional adapters from configuration alone.
// Disabled integrations pass; the workers that need them degrade or fail
// on their own.
func Integrations(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		slackStatus(cfg),
		keyStatus("Kie (images)", cfg.Kie.APIKey, "featured images use placeholders"),
		videoStatus(cfg),
		keyStatus("ElevenLabs", cfg.ElevenLabs.APIKey, "podcast episodes unavailable"),
		socialStatus(cfg),
	}
}

func slackStatus(cfg *config.Config) Result {
	const name = "Slack"
	configured := strings.TrimSpace(cfg.Slack.BotToken) != "" && strings.TrimSpace(cfg.Slack.Channel) != ""
	switch {
	case configured:
		return Result{Name: name, Passed: true, Detail: "Configured (channel " + cfg.Slack.Channel + ")"}
	case cfg.Slack.ApprovalsEnabled:
		return Result{Name: name, Detail: "approvals enabled but bot_token or channel missing"}
	default:
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
}

func videoStatus(cfg *config.Config) Result {
	const name = "Kie (video)"
	if !cfg.Kie.VideoEnabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Kie.APIKey) == "" {
		return Result{Name: name, Detail: "video_enabled but api_key missing"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

func socialStatus(cfg *config.Config) Result {
	const name = "Social webhook"
	if strings.TrimSpace(cfg.Social.WebhookURL) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (social posts are not dispatched)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured for " + strings.Join(cfg.Social.Platforms, ", ")}
}

func keyStatus(name, key, disabledImpact string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (" + disabledImpact + ")"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}
