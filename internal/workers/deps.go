package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/services"
	"contentfactory/internal/services/elevenlabs"
	"contentfactory/internal/services/generation"
	"contentfactory/internal/services/kie"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/services/social"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// Store is the slice of the record store the workers use.
type Store interface {
	GetTopic(ctx context.Context, id string) (*store.Topic, error)
	GetTopics(ctx context.Context, statuses ...store.TopicStatus) ([]*store.Topic, error)
	UpdateTopicStatus(ctx context.Context, id string, status store.TopicStatus) error
	CreateContentPiece(ctx context.Context, piece store.ContentPiece) (*store.ContentPiece, error)
	GetContentPiece(ctx context.Context, id string) (*store.ContentPiece, error)
	GetContentPieces(ctx context.Context, q store.ContentQuery) ([]*store.ContentPiece, error)
	UpdateContentPiece(ctx context.Context, id string, patch store.ContentPatch) (*store.ContentPiece, error)
}

// TextGenerator produces text and JSON with an LLM. *llm.Client satisfies it.
type TextGenerator interface {
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error
}

// Publisher creates and updates site posts. *wordpress.Client satisfies it.
type Publisher interface {
	Configured() bool
	CreatePost(ctx context.Context, post wordpress.Post) (wordpress.PostRef, error)
	UpdatePost(ctx context.Context, id int64, patch wordpress.PostPatch) (wordpress.PostRef, error)
}

// SocialDispatcher sends social posts. *social.Client satisfies it.
type SocialDispatcher interface {
	Configured() bool
	Publish(ctx context.Context, post social.Post) (social.Result, error)
}

// Deps are the collaborators shared by every worker. Nil generation
// services mean the adapter is not configured.
type Deps struct {
	Config    *config.Config
	Store     Store
	LLM       TextGenerator
	Publisher Publisher
	Images    generation.Service
	Videos    generation.Service
	Speech    generation.Service
	Social    SocialDispatcher
	// Sleep overrides the wait between generation polls.
	Sleep func(context.Context, time.Duration) error
}

// NewDeps builds production adapters from cfg.
func NewDeps(cfg *config.Config, st Store) Deps {
	llmCfg := cfg.GetLLM()
	deps := Deps{
		Config: cfg,
		Store:  st,
		LLM: llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		}),
		Publisher: wordpress.NewClient(wordpress.Config{
			BaseURL:        cfg.WordPress.BaseURL,
			Username:       cfg.WordPress.Username,
			AppPassword:    cfg.WordPress.AppPassword,
			DefaultStatus:  cfg.WordPress.DefaultStatus,
			TimeoutSeconds: cfg.WordPress.TimeoutSeconds,
		}),
		Social: social.NewClient(cfg.Social.WebhookURL, nil),
	}
	if cfg.Kie.APIKey != "" {
		client := kie.NewClient(kie.Config{
			APIKey:     cfg.Kie.APIKey,
			BaseURL:    cfg.Kie.BaseURL,
			ImageModel: cfg.Kie.ImageModel,
			VideoModel: cfg.Kie.VideoModel,
		})
		deps.Images = client.Images()
		if cfg.Kie.VideoEnabled {
			deps.Videos = client.Videos()
		}
	}
	if cfg.ElevenLabs.APIKey != "" {
		deps.Speech = elevenlabs.NewClient(elevenlabs.Config{
			APIKey:    cfg.ElevenLabs.APIKey,
			VoiceID:   cfg.ElevenLabs.VoiceID,
			ModelID:   cfg.ElevenLabs.ModelID,
			BaseURL:   cfg.ElevenLabs.BaseURL,
			OutputDir: cfg.MediaDir(),
		})
	}
	return deps
}

func (d Deps) pollPolicy() generation.Policy {
	return generation.Policy{
		MaxAttempts: d.Config.Workflow.PollMaxAttempts,
		Interval:    d.Config.PollInterval(),
		Sleep:       d.Sleep,
	}
}

// base carries what every worker needs.
type base struct {
	id   string
	deps Deps
}

func (b base) logger(in stage.Input) *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return logging.NewNop()
}

func (b base) fail(err error) stage.Result {
	return stage.Failed(b.id, err)
}

// loadPiece fetches the content piece named by the run artifacts.
func (b base) loadPiece(ctx context.Context, artifacts stage.Artifacts) (*store.ContentPiece, error) {
	id := artifacts.ContentPieceID
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, b.id, "load content piece",
			"no content piece in run artifacts; run topic-manager first", nil)
	}
	piece, err := b.deps.Store.GetContentPiece(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, b.id, "load content piece", "", err)
	}
	if piece == nil {
		return nil, &pipeline.RecordNotFoundError{Kind: "Content piece", ID: id}
	}
	return piece, nil
}

func (b base) update(ctx context.Context, id string, patch store.ContentPatch) (*store.ContentPiece, error) {
	piece, err := b.deps.Store.UpdateContentPiece(ctx, id, patch)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, b.id, "update content piece", "", err)
	}
	return piece, nil
}

// persists reports whether a run may write to piece. Test runs only touch
// the pieces they created themselves.
func persists(piece *store.ContentPiece, testMode bool) bool {
	return !testMode || piece.TestMode
}

// settle completes a piece once both language posts exist and closes its
// topic. Topics are left alone in test mode.
func (b base) settle(ctx context.Context, piece *store.ContentPiece, testMode bool) error {
	if piece.HebrewPostID == 0 || piece.EnglishPostID == 0 {
		return nil
	}
	if piece.Status != store.ContentCompleted {
		if _, err := b.update(ctx, piece.ID, store.ContentPatch{Status: store.Ptr(store.ContentCompleted)}); err != nil {
			return err
		}
	}
	if testMode || piece.TestMode || piece.TopicID == "" {
		return nil
	}
	if err := b.deps.Store.UpdateTopicStatus(ctx, piece.TopicID, store.TopicDone); err != nil {
		return services.Wrap(services.ErrTransient, b.id, "close topic", "", err)
	}
	return nil
}

// requireLLM fails fast when the generator is not configured.
func (b base) requireLLM() error {
	if b.deps.LLM == nil || !b.deps.LLM.Configured() {
		return services.Wrap(services.ErrConfiguration, b.id, "generate", "llm.api_key is not configured", nil)
	}
	return nil
}

func (b base) requirePublisher() error {
	if b.deps.Publisher == nil || !b.deps.Publisher.Configured() {
		return services.Wrap(services.ErrConfiguration, b.id, "publish",
			"wordpress.base_url, wordpress.username and wordpress.app_password are required", nil)
	}
	return nil
}

func (b base) llmHealth() (bool, string) {
	if b.deps.LLM == nil || !b.deps.LLM.Configured() {
		return false, "llm api key missing"
	}
	return true, ""
}

func (b base) publisherHealth() (bool, string) {
	if b.deps.Publisher == nil || !b.deps.Publisher.Configured() {
		return false, "wordpress credentials missing"
	}
	return true, ""
}

// health combines readiness checks; the first failing one wins.
func (b base) health(checks ...func() (bool, string)) stage.Health {
	for _, check := range checks {
		if ok, detail := check(); !ok {
			return stage.Unhealthy(b.id, detail)
		}
	}
	return stage.Healthy(b.id)
}

func postLink(cfg *config.Config, id int64) string {
	if cfg == nil || cfg.WordPress.BaseURL == "" || id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/?p=%d", cfg.WordPress.BaseURL, id)
}
