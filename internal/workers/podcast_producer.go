package workers

import (
	"context"
	"fmt"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/generation"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

const (
	podcastSystemPrompt = `You turn blog articles into a short, conversational single-host podcast script in English.
Aim for three to five minutes of speech. Reply with the spoken script only, no stage directions.`
	podcastSourceRunes = 6000
)

// PodcastProducer scripts and renders an audio episode for an article.
type PodcastProducer struct{ base }

// NewPodcastProducer constructs the podcast-producer worker.
func NewPodcastProducer(deps Deps) *PodcastProducer {
	return &PodcastProducer{base{id: "podcast-producer", deps: deps}}
}

func (w *PodcastProducer) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	piece, err := w.selectPiece(ctx, in)
	if err != nil {
		return w.fail(err)
	}
	if piece == nil {
		logger.Info("no published content awaiting an episode")
		return stage.Succeeded(w.id, stage.Artifacts{})
	}
	title := orElse(piece.TitleEN, piece.TitleHE)

	var script, audioURL string
	if in.Options.TestMode {
		script = fmt.Sprintf("Welcome to the show. Today: %s.", title)
		audioURL = placeholderURL("audio", piece.ID+".mp3")
	} else {
		if err := w.requireLLM(); err != nil {
			return w.fail(err)
		}
		if w.deps.Speech == nil {
			return w.fail(services.Wrap(services.ErrConfiguration, w.id, "render audio", "elevenlabs.api_key is not configured", nil))
		}
		source := textutil.Truncate(textutil.StripTags(orElse(piece.ContentEN, piece.ContentHE)), podcastSourceRunes)
		script, err = w.deps.LLM.Complete(ctx, podcastSystemPrompt, fmt.Sprintf("Title: %s\n\n%s", title, source))
		if err != nil {
			return w.fail(services.Wrap(services.ErrExternalTool, w.id, "write script", "", err))
		}
		script = strings.TrimSpace(script)
		if script == "" {
			return w.fail(services.Wrap(services.ErrExternalTool, w.id, "write script", "model returned an empty script", nil))
		}
		status, err := generation.Run(ctx, w.deps.Speech, generation.Request{Prompt: script}, w.deps.pollPolicy())
		if err != nil {
			return w.fail(services.Wrap(services.ErrExternalTool, w.id, "render audio", "", err))
		}
		audioURL = status.ResultURL
	}

	if persists(piece, in.Options.TestMode) {
		if _, err := w.update(ctx, piece.ID, store.ContentPatch{EpisodeURL: &audioURL}); err != nil {
			return w.fail(err)
		}
	}
	episode := &stage.PodcastEpisode{
		ContentPieceID: piece.ID,
		Title:          title,
		AudioURL:       audioURL,
		ScriptChars:    len([]rune(script)),
	}
	logger.Info("episode produced",
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.String("audio_url", audioURL),
		logging.Int("script_chars", episode.ScriptChars),
	)
	return stage.Succeeded(w.id, stage.Artifacts{ContentPieceID: piece.ID, Episode: episode})
}

// selectPiece uses the run's content piece when there is one, otherwise the
// most recently updated published piece without an episode.
func (w *PodcastProducer) selectPiece(ctx context.Context, in stage.Input) (*store.ContentPiece, error) {
	if in.Artifacts.ContentPieceID != "" {
		return w.loadPiece(ctx, in.Artifacts)
	}
	pieces, err := w.deps.Store.GetContentPieces(ctx, store.ContentQuery{
		Statuses: []store.ContentStatus{store.ContentPublished, store.ContentCompleted},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, w.id, "list content", "", err)
	}
	for _, piece := range pieces {
		if piece.EpisodeURL == "" && (piece.ContentEN != "" || piece.ContentHE != "") {
			return piece, nil
		}
	}
	return nil, nil
}

func (w *PodcastProducer) HealthCheck(context.Context) stage.Health {
	return w.health(w.llmHealth, func() (bool, string) {
		if w.deps.Speech == nil {
			return false, "elevenlabs api key missing"
		}
		return true, ""
	})
}
