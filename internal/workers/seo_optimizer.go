package workers

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

const seoSystemPrompt = `You are an SEO editor. Improve the title, meta excerpt and keywords of the article without changing its meaning or language.
Respond with a JSON object: {"title": string, "excerpt": string, "keywords": [string], "seo_score": integer 0-100}.`

type seoRevision struct {
	Title    string   `json:"title"`
	Excerpt  string   `json:"excerpt"`
	Keywords []string `json:"keywords"`
	SEOScore int      `json:"seo_score"`
}

// SEOOptimizer improves metadata of the weakest published pieces.
type SEOOptimizer struct{ base }

// NewSEOOptimizer constructs the seo-optimizer worker.
func NewSEOOptimizer(deps Deps) *SEOOptimizer {
	return &SEOOptimizer{base{id: "seo-optimizer", deps: deps}}
}

func (w *SEOOptimizer) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	limit := cmp.Or(in.Options.SEOLimit, w.deps.Config.Workflow.SEOLimit)
	minScore := cmp.Or(in.Options.SEOMinScore, w.deps.Config.Workflow.SEOMinScore)

	candidates, err := w.candidates(ctx, limit, minScore)
	if err != nil {
		return w.fail(err)
	}
	if len(candidates) == 0 {
		logger.Info("no content below the seo threshold", logging.Int("min_score", minScore))
		return stage.Succeeded(w.id, stage.Artifacts{})
	}
	if !in.Options.TestMode {
		if err := w.requireLLM(); err != nil {
			return w.fail(err)
		}
	}

	var (
		updates []stage.SEOUpdate
		errs    []error
	)
	for _, piece := range candidates {
		update, err := w.optimize(ctx, piece, in.Options.TestMode)
		if err != nil {
			logging.WarnWithContext(logger, "seo update failed", "seo_update_failed",
				logging.String(logging.FieldContentPieceID, piece.ID),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", piece.ID, err))
			continue
		}
		updates = append(updates, update)
	}
	if len(updates) == 0 {
		return w.fail(services.Wrap(services.ErrExternalTool, w.id, "optimize", "no piece could be updated", errors.Join(errs...)))
	}
	logger.Info("seo pass finished",
		logging.Int("updated", len(updates)),
		logging.Int("failed", len(errs)),
	)
	return stage.Succeeded(w.id, stage.Artifacts{SEOUpdates: updates})
}

// candidates returns up to limit published pieces scoring under minScore,
// lowest score first.
func (w *SEOOptimizer) candidates(ctx context.Context, limit, minScore int) ([]*store.ContentPiece, error) {
	pieces, err := w.deps.Store.GetContentPieces(ctx, store.ContentQuery{
		Statuses: []store.ContentStatus{store.ContentPublished, store.ContentCompleted},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, w.id, "list content", "", err)
	}
	pieces = slices.DeleteFunc(pieces, func(p *store.ContentPiece) bool { return p.SEOScore >= minScore })
	slices.SortStableFunc(pieces, func(a, b *store.ContentPiece) int { return cmp.Compare(a.SEOScore, b.SEOScore) })
	if limit > 0 && len(pieces) > limit {
		pieces = pieces[:limit]
	}
	return pieces, nil
}

func (w *SEOOptimizer) optimize(ctx context.Context, piece *store.ContentPiece, testMode bool) (stage.SEOUpdate, error) {
	var rev seoRevision
	if testMode {
		rev = seoRevision{Title: piece.TitleHE, Excerpt: piece.Excerpt, Keywords: piece.Keywords, SEOScore: piece.SEOScore + 10}
	} else {
		prompt := fmt.Sprintf("Title: %s\nExcerpt: %s\nKeywords: %s\nCurrent score: %d\n\nArticle:\n%s",
			piece.TitleHE, piece.Excerpt, strings.Join(piece.Keywords, ", "), piece.SEOScore,
			textutil.Truncate(textutil.StripTags(piece.ContentHE), 4000))
		if err := w.deps.LLM.GenerateJSON(ctx, seoSystemPrompt, prompt, &rev); err != nil {
			return stage.SEOUpdate{}, services.Wrap(services.ErrExternalTool, w.id, "generate seo revision", "", err)
		}
	}
	rev.Title = orElse(rev.Title, piece.TitleHE)
	rev.Excerpt = orElse(rev.Excerpt, piece.Excerpt)
	if len(rev.Keywords) == 0 {
		rev.Keywords = piece.Keywords
	}
	newScore := clampScore(rev.SEOScore)

	if !testMode && piece.HebrewPostID > 0 {
		if err := w.requirePublisher(); err != nil {
			return stage.SEOUpdate{}, err
		}
		if _, err := w.deps.Publisher.UpdatePost(ctx, piece.HebrewPostID, wordpress.PostPatch{
			Title:   rev.Title,
			Excerpt: rev.Excerpt,
			Meta:    map[string]any{"seo_keywords": strings.Join(rev.Keywords, ", ")},
		}); err != nil {
			return stage.SEOUpdate{}, services.Wrap(services.ErrExternalTool, w.id, "update post", "", err)
		}
	}
	if persists(piece, testMode) {
		if _, err := w.update(ctx, piece.ID, store.ContentPatch{
			TitleHE:  &rev.Title,
			Excerpt:  &rev.Excerpt,
			Keywords: &rev.Keywords,
			SEOScore: &newScore,
		}); err != nil {
			return stage.SEOUpdate{}, err
		}
	}
	return stage.SEOUpdate{
		ContentPieceID: piece.ID,
		PostID:         piece.HebrewPostID,
		OldScore:       piece.SEOScore,
		NewScore:       newScore,
	}, nil
}

func (w *SEOOptimizer) HealthCheck(context.Context) stage.Health {
	return w.health(w.llmHealth, w.publisherHealth)
}
