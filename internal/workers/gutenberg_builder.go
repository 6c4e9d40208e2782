package workers

import (
	"context"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

// GutenbergBuilder converts the approved Hebrew article into block markup
// and publishes the Hebrew post.
type GutenbergBuilder struct{ base }

// NewGutenbergBuilder constructs the gutenberg-builder worker.
func NewGutenbergBuilder(deps Deps) *GutenbergBuilder {
	return &GutenbergBuilder{base{id: "gutenberg-builder", deps: deps}}
}

func (w *GutenbergBuilder) Execute(ctx context.Context, in stage.Input) stage.Result {
	piece, err := w.loadPiece(ctx, in.Artifacts)
	if err != nil {
		return w.fail(err)
	}
	postID, blocks, err := w.PublishHebrew(ctx, piece, in.Options)
	if err != nil {
		return w.fail(err)
	}
	w.logger(in).Info("hebrew post ready",
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.Int64("post_id", postID),
	)
	return stage.Succeeded(w.id, stage.Artifacts{GutenbergContent: blocks, HebrewPostID: postID})
}

// PublishHebrew renders piece as blocks, publishes or updates its Hebrew
// post and records the post id on the content piece.
func (w *GutenbergBuilder) PublishHebrew(ctx context.Context, piece *store.ContentPiece, opts stage.Options) (int64, string, error) {
	if piece.ContentHE == "" {
		return 0, "", services.Wrap(services.ErrValidation, w.id, "build blocks", "content piece has no Hebrew article", nil)
	}
	blocks := BuildGutenberg(piece.ContentHE)
	postID, err := w.upsertPost(ctx, opts, piece.HebrewPostID, wordpress.Post{
		Title:   piece.TitleHE,
		Content: blocks,
		Excerpt: piece.Excerpt,
		Slug:    textutil.Slugify(piece.TitleHE),
		Lang:    "he",
		Meta:    map[string]any{"content_piece_id": piece.ID},
	})
	if err != nil {
		return 0, "", err
	}
	if !persists(piece, opts.TestMode) {
		return postID, blocks, nil
	}
	patch := store.ContentPatch{HebrewPostID: &postID}
	if !piece.Status.Finished() {
		patch.Status = store.Ptr(store.ContentPublished)
	}
	updated, err := w.update(ctx, piece.ID, patch)
	if err != nil {
		return 0, "", err
	}
	if err := w.settle(ctx, updated, opts.TestMode); err != nil {
		return 0, "", err
	}
	return postID, blocks, nil
}

func (w *GutenbergBuilder) HealthCheck(context.Context) stage.Health {
	return w.health(w.publisherHealth)
}
