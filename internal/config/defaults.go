package config

const (
	defaultConfigPath               = "~/.config/contentfactory/config.toml"
	defaultDataDir                  = "~/.local/share/contentfactory"
	defaultLogDir                   = "~/.local/share/contentfactory/logs"
	defaultAPIBind                  = "127.0.0.1:7590"
	defaultLLMBaseURL               = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                 = "anthropic/claude-3.5-sonnet"
	defaultLLMReferer               = "https://tax4us.co.il"
	defaultLLMTitle                 = "Tax4US Content Factory"
	defaultLLMTimeoutSeconds        = 90
	defaultWordPressStatus          = "draft"
	defaultHTTPTimeoutSeconds       = 30
	defaultSlackBaseURL             = "https://slack.com/api"
	defaultElevenLabsBaseURL        = "https://api.elevenlabs.io/v1"
	defaultElevenLabsModel          = "eleven_multilingual_v2"
	defaultKieBaseURL               = "https://api.kie.ai/api/v1"
	defaultKieImageModel            = "google/nano-banana"
	defaultKieVideoModel            = "veo3_fast"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultPollIntervalSeconds      = 10
	defaultPollMaxAttempts          = 30
	defaultBatchConcurrency         = 2
	defaultMaxRevisions             = 3
	defaultSchedulerIntervalSeconds = 60
	defaultSEOMinScore              = 70
	defaultSEOLimit                 = 5
	defaultHealerRecentLimit        = 25
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		WordPress: WordPress{
			DefaultStatus:  defaultWordPressStatus,
			TimeoutSeconds: defaultHTTPTimeoutSeconds,
		},
		Slack: Slack{
			BaseURL:          defaultSlackBaseURL,
			ApprovalsEnabled: true,
			TimeoutSeconds:   defaultHTTPTimeoutSeconds,
		},
		ElevenLabs: ElevenLabs{
			ModelID: defaultElevenLabsModel,
			BaseURL: defaultElevenLabsBaseURL,
		},
		Kie: Kie{
			BaseURL:    defaultKieBaseURL,
			ImageModel: defaultKieImageModel,
			VideoModel: defaultKieVideoModel,
		},
		Social: Social{
			Platforms: []string{"facebook", "linkedin"},
		},
		Workflow: Workflow{
			PollIntervalSeconds:      defaultPollIntervalSeconds,
			PollMaxAttempts:          defaultPollMaxAttempts,
			BatchConcurrency:         defaultBatchConcurrency,
			MaxRevisions:             defaultMaxRevisions,
			SchedulerIntervalSeconds: defaultSchedulerIntervalSeconds,
			SEOMinScore:              defaultSEOMinScore,
			SEOLimit:                 defaultSEOLimit,
			HealerRecentLimit:        defaultHealerRecentLimit,
		},
		Schedule: Schedule{
			HealerDays: []string{"saturday"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
