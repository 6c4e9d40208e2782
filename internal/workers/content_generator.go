package workers

import (
	"context"
	"fmt"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

const articleSystemPrompt = `You are a senior Hebrew content writer for a professional blog.
Write an original, well-structured article in Hebrew using simple HTML (<h2>, <p>, <ul>).
Respond with a JSON object: {"title": string, "content": string, "excerpt": string, "keywords": [string], "seo_score": integer 0-100}.`

type article struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
	Keywords []string `json:"keywords"`
	SEOScore int      `json:"seo_score"`
}

// ContentGenerator writes the Hebrew article and gates it on approval.
type ContentGenerator struct{ base }

// NewContentGenerator constructs the content-generator worker.
func NewContentGenerator(deps Deps) *ContentGenerator {
	return &ContentGenerator{base{id: "content-generator", deps: deps}}
}

func (w *ContentGenerator) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	piece, err := w.loadPiece(ctx, in.Artifacts)
	if err != nil {
		return w.fail(err)
	}
	topic, err := w.deps.Store.GetTopic(ctx, piece.TopicID)
	if err != nil {
		return w.fail(services.Wrap(services.ErrTransient, w.id, "load topic", "", err))
	}

	var draft article
	if in.Options.TestMode {
		draft = placeholderArticle(piece, in.RevisionFeedback)
	} else {
		if err := w.requireLLM(); err != nil {
			return w.fail(err)
		}
		if err := w.deps.LLM.GenerateJSON(ctx, articleSystemPrompt, articlePrompt(piece, topic, in.RevisionFeedback), &draft); err != nil {
			return w.fail(services.Wrap(services.ErrExternalTool, w.id, "generate article", "", err))
		}
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		draft.Title = piece.TitleHE
	}
	if strings.TrimSpace(draft.Content) == "" {
		return w.fail(services.Wrap(services.ErrExternalTool, w.id, "generate article", "model returned an empty article", nil))
	}
	if draft.Excerpt == "" {
		draft.Excerpt = textutil.Truncate(textutil.StripTags(draft.Content), 160)
	}
	if len(draft.Keywords) == 0 {
		draft.Keywords = piece.Keywords
	}

	gated := w.deps.Config.Slack.ApprovalsEnabled
	status := store.ContentDraft
	if gated {
		status = store.ContentPendingApproval
	}
	if _, err := w.update(ctx, piece.ID, store.ContentPatch{
		TitleHE:   &draft.Title,
		ContentHE: &draft.Content,
		Excerpt:   &draft.Excerpt,
		Keywords:  &draft.Keywords,
		SEOScore:  store.Ptr(clampScore(draft.SEOScore)),
		Status:    &status,
	}); err != nil {
		return w.fail(err)
	}
	logger.Info("article generated",
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.Int("content_chars", len([]rune(draft.Content))),
		logging.Bool("revision", in.RevisionFeedback != ""),
	)

	res := stage.Succeeded(w.id, stage.Artifacts{Title: draft.Title})
	if gated {
		res.RequiresApproval = &stage.ApprovalSpec{
			Type:         "content",
			RelatedID:    piece.ID,
			RelatedTitle: draft.Title,
			Preview:      draft.Content,
		}
	}
	return res
}

func articlePrompt(piece *store.ContentPiece, topic *store.Topic, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", piece.TitleHE)
	if topic != nil && strings.TrimSpace(topic.Description) != "" {
		fmt.Fprintf(&b, "Brief: %s\n", topic.Description)
	}
	if len(piece.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(piece.Keywords, ", "))
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\nA reviewer asked for changes to the previous draft: %s\n", feedback)
		if piece.ContentHE != "" {
			fmt.Fprintf(&b, "Previous draft:\n%s\n", piece.ContentHE)
		}
	}
	return b.String()
}

func placeholderArticle(piece *store.ContentPiece, feedback string) article {
	body := fmt.Sprintf("<h2>%s</h2>\n<p>Placeholder article for %s.</p>", piece.TitleHE, piece.ID)
	if feedback != "" {
		body += fmt.Sprintf("\n<p>Revised: %s</p>", feedback)
	}
	return article{
		Title:    piece.TitleHE,
		Content:  body,
		Keywords: piece.Keywords,
		SEOScore: 75,
	}
}

func clampScore(score int) int {
	return min(max(score, 0), 100)
}

func (w *ContentGenerator) HealthCheck(context.Context) stage.Health {
	return w.health(w.llmHealth)
}
