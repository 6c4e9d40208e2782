package workers

import (
	"context"
	"fmt"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

const translateSystemPrompt = `You translate Hebrew blog articles into natural, fluent English for the same audience.
Keep the HTML structure. Respond with a JSON object: {"title": string, "content": string, "excerpt": string}.`

// Translation is an English version of an article.
type Translation struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// Translator produces the English article and publishes the English post.
type Translator struct{ base }

// NewTranslator constructs the translator worker.
func NewTranslator(deps Deps) *Translator {
	return &Translator{base{id: "translator", deps: deps}}
}

func (w *Translator) Execute(ctx context.Context, in stage.Input) stage.Result {
	piece, err := w.loadPiece(ctx, in.Artifacts)
	if err != nil {
		return w.fail(err)
	}
	if piece.ContentHE == "" {
		return w.fail(services.Wrap(services.ErrValidation, w.id, "translate", "content piece has no Hebrew article", nil))
	}
	postID, err := w.PublishEnglish(ctx, piece, in.Options)
	if err != nil {
		return w.fail(err)
	}
	w.logger(in).Info("english post ready",
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.Int64("post_id", postID),
	)
	return stage.Succeeded(w.id, stage.Artifacts{EnglishPostID: postID})
}

// PublishEnglish translates piece, publishes or updates its English post and
// records the result on the content piece.
func (w *Translator) PublishEnglish(ctx context.Context, piece *store.ContentPiece, opts stage.Options) (int64, error) {
	tr, err := w.Translate(ctx, piece, opts.TestMode)
	if err != nil {
		return 0, err
	}
	postID, err := w.upsertPost(ctx, opts, piece.EnglishPostID, wordpress.Post{
		Title:   tr.Title,
		Content: BuildGutenberg(tr.Content),
		Excerpt: tr.Excerpt,
		Slug:    textutil.Slugify(tr.Title),
		Lang:    "en",
		Meta:    map[string]any{"content_piece_id": piece.ID, "translation_of": piece.HebrewPostID},
	})
	if err != nil {
		return 0, err
	}
	if !persists(piece, opts.TestMode) {
		return postID, nil
	}
	updated, err := w.update(ctx, piece.ID, store.ContentPatch{
		TitleEN:       &tr.Title,
		ContentEN:     &tr.Content,
		EnglishPostID: &postID,
	})
	if err != nil {
		return 0, err
	}
	if err := w.settle(ctx, updated, opts.TestMode); err != nil {
		return 0, err
	}
	return postID, nil
}

// Translate returns the English version of piece, reusing a stored
// translation when present.
func (w *Translator) Translate(ctx context.Context, piece *store.ContentPiece, testMode bool) (Translation, error) {
	if strings.TrimSpace(piece.ContentEN) != "" {
		return Translation{
			Title:   orElse(piece.TitleEN, piece.TitleHE),
			Content: piece.ContentEN,
			Excerpt: textutil.Truncate(textutil.StripTags(piece.ContentEN), 160),
		}, nil
	}
	if testMode {
		return Translation{
			Title:   "[EN] " + piece.TitleHE,
			Content: fmt.Sprintf("<p>Placeholder translation of %s.</p>", piece.ID),
			Excerpt: "Placeholder translation.",
		}, nil
	}
	if err := w.requireLLM(); err != nil {
		return Translation{}, err
	}
	prompt := fmt.Sprintf("Title: %s\n\nArticle:\n%s", piece.TitleHE, piece.ContentHE)
	var tr Translation
	if err := w.deps.LLM.GenerateJSON(ctx, translateSystemPrompt, prompt, &tr); err != nil {
		return Translation{}, services.Wrap(services.ErrExternalTool, w.id, "translate article", "", err)
	}
	if strings.TrimSpace(tr.Title) == "" || strings.TrimSpace(tr.Content) == "" {
		return Translation{}, services.Wrap(services.ErrExternalTool, w.id, "translate article", "model returned an empty translation", nil)
	}
	return tr, nil
}

func orElse(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (w *Translator) HealthCheck(context.Context) stage.Health {
	return w.health(w.llmHealth, w.publisherHealth)
}
