package workers

import (
	"context"
	"fmt"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/generation"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

// MediaProcessor generates the featured image and, when enabled, a short
// video for the article.
type MediaProcessor struct{ base }

// NewMediaProcessor constructs the media-processor worker.
func NewMediaProcessor(deps Deps) *MediaProcessor {
	return &MediaProcessor{base{id: "media-processor", deps: deps}}
}

func (w *MediaProcessor) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	piece, err := w.loadPiece(ctx, in.Artifacts)
	if err != nil {
		return w.fail(err)
	}

	var imageURL, videoURL string
	if in.Options.TestMode {
		imageURL = placeholderURL("images", piece.ID+".png")
		if w.deps.Config.Kie.VideoEnabled {
			videoURL = placeholderURL("videos", piece.ID+".mp4")
		}
	} else {
		if w.deps.Images == nil {
			return w.fail(services.Wrap(services.ErrConfiguration, w.id, "generate image", "kie.api_key is not configured", nil))
		}
		status, err := generation.Run(ctx, w.deps.Images, generation.Request{
			Prompt: imagePrompt(piece),
			Params: map[string]string{"aspect_ratio": "16:9"},
		}, w.deps.pollPolicy())
		if err != nil {
			return w.fail(services.Wrap(services.ErrExternalTool, w.id, "generate image", "", err))
		}
		imageURL = status.ResultURL

		if w.deps.Videos != nil {
			status, err := generation.Run(ctx, w.deps.Videos, generation.Request{
				Prompt: videoPrompt(piece),
				Params: map[string]string{"aspect_ratio": "9:16"},
			}, w.deps.pollPolicy())
			if err != nil {
				logging.WarnWithContext(logger, "video generation failed; continuing with image only", "video_generation_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "article published without video"),
				)
			} else {
				videoURL = status.ResultURL
			}
		}
		if piece.HebrewPostID > 0 && w.deps.Publisher != nil && w.deps.Publisher.Configured() {
			meta := map[string]any{"featured_image_url": imageURL}
			if videoURL != "" {
				meta["video_url"] = videoURL
			}
			if _, err := w.deps.Publisher.UpdatePost(ctx, piece.HebrewPostID, wordpress.PostPatch{Meta: meta}); err != nil {
				logging.WarnWithContext(logger, "attaching media to post failed", "media_attach_failed",
					logging.Error(err),
					logging.Int64("post_id", piece.HebrewPostID),
					logging.String(logging.FieldErrorHint, "media urls are stored on the content piece"),
				)
			}
		}
	}

	patch := store.ContentPatch{FeaturedImageURL: &imageURL}
	if videoURL != "" {
		patch.VideoURL = &videoURL
	}
	if _, err := w.update(ctx, piece.ID, patch); err != nil {
		return w.fail(err)
	}
	logger.Info("media ready",
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.String("image_url", imageURL),
		logging.Bool("video", videoURL != ""),
	)
	return stage.Succeeded(w.id, stage.Artifacts{FeaturedImageURL: imageURL, VideoURL: videoURL})
}

func imagePrompt(piece *store.ContentPiece) string {
	subject := orElse(piece.TitleEN, piece.TitleHE)
	return fmt.Sprintf("Editorial featured image for a blog article titled %q. %s Clean, modern, no text.",
		subject, textutil.Truncate(textutil.StripTags(orElse(piece.Excerpt, piece.ContentEN)), 300))
}

func videoPrompt(piece *store.ContentPiece) string {
	return fmt.Sprintf("Short vertical teaser video for the article %q.", orElse(piece.TitleEN, piece.TitleHE))
}

func (w *MediaProcessor) HealthCheck(context.Context) stage.Health {
	return w.health(func() (bool, string) {
		if w.deps.Images == nil {
			return false, "kie api key missing"
		}
		return true, ""
	})
}
