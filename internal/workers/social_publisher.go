package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/social"
	"contentfactory/internal/stage"
)

const socialSystemPrompt = `You write engaging social media posts that promote blog articles.
Match the tone and length conventions of the target platform. Reply with the post text only.`

// SocialPublisher writes and dispatches one post per configured platform.
type SocialPublisher struct{ base }

// NewSocialPublisher constructs the social-publisher worker.
func NewSocialPublisher(deps Deps) *SocialPublisher {
	return &SocialPublisher{base{id: "social-publisher", deps: deps}}
}

func (w *SocialPublisher) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	piece, err := w.loadPiece(ctx, in.Artifacts)
	if err != nil {
		return w.fail(err)
	}
	platforms := w.deps.Config.Social.Platforms
	if len(platforms) == 0 {
		return w.fail(services.Wrap(services.ErrConfiguration, w.id, "publish", "social.platforms is empty", nil))
	}
	postID := orElseID(in.Artifacts.EnglishPostID, piece.EnglishPostID)
	link := postLink(w.deps.Config, postID)
	image := orElse(in.Artifacts.FeaturedImageURL, piece.FeaturedImageURL)

	if in.Options.TestMode {
		posts := make([]stage.PostRef, 0, len(platforms))
		for _, platform := range platforms {
			posts = append(posts, stage.PostRef{
				Platform: platform,
				ID:       fmt.Sprintf("test-%d", nextTestPostID()),
				URL:      placeholderURL("social/"+platform, piece.ID),
			})
		}
		return stage.Succeeded(w.id, stage.Artifacts{SocialPosts: posts})
	}
	if err := w.requireLLM(); err != nil {
		return w.fail(err)
	}
	if w.deps.Social == nil || !w.deps.Social.Configured() {
		return w.fail(services.Wrap(services.ErrConfiguration, w.id, "publish", "social.webhook_url is not configured", nil))
	}

	var (
		posts []stage.PostRef
		errs  []error
	)
	for _, platform := range platforms {
		ref, err := w.publishOne(ctx, in, orElse(piece.TitleEN, piece.TitleHE), platform, link, image)
		if err != nil {
			logging.WarnWithContext(logger, "social post failed", "social_post_failed",
				logging.String("platform", platform),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", platform, err))
			continue
		}
		posts = append(posts, ref)
	}
	if len(posts) == 0 {
		return w.fail(services.Wrap(services.ErrExternalTool, w.id, "publish", "every platform failed", errors.Join(errs...)))
	}
	logger.Info("social posts dispatched",
		logging.Int("posted", len(posts)),
		logging.Int("failed", len(errs)),
	)
	return stage.Succeeded(w.id, stage.Artifacts{SocialPosts: posts})
}

func (w *SocialPublisher) publishOne(ctx context.Context, in stage.Input, title, platform, link, image string) (stage.PostRef, error) {
	prompt := fmt.Sprintf("Platform: %s\nArticle title: %s\nLink: %s", platform, title, orElse(link, "(none)"))
	text, err := w.deps.LLM.Complete(ctx, socialSystemPrompt, prompt)
	if err != nil {
		return stage.PostRef{}, err
	}
	text = strings.TrimSpace(text)
	if link != "" && !strings.Contains(text, link) {
		text += "\n\n" + link
	}
	res, err := w.deps.Social.Publish(ctx, social.Post{
		Platform:       platform,
		Content:        text,
		Link:           link,
		ImageURL:       image,
		RunID:          in.RunID,
		ContentPieceID: in.Artifacts.ContentPieceID,
	})
	if err != nil {
		return stage.PostRef{}, err
	}
	return stage.PostRef{Platform: platform, ID: res.ID, URL: res.URL}, nil
}

func orElseID(value, fallback int64) int64 {
	if value > 0 {
		return value
	}
	return fallback
}

func (w *SocialPublisher) HealthCheck(context.Context) stage.Health {
	return w.health(w.llmHealth, func() (bool, string) {
		if w.deps.Social == nil || !w.deps.Social.Configured() {
			return false, "social webhook missing"
		}
		return true, ""
	})
}
