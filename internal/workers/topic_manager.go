package workers

import (
	"context"
	"strings"

	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

// DuplicateThreshold is the title similarity at or above which a topic is
// treated as already covered.
const DuplicateThreshold = 0.85

// TopicManager picks the topic for a run and opens its content piece.
type TopicManager struct{ base }

// NewTopicManager constructs the topic-manager worker.
func NewTopicManager(deps Deps) *TopicManager {
	return &TopicManager{base{id: "topic-manager", deps: deps}}
}

func (w *TopicManager) Execute(ctx context.Context, in stage.Input) stage.Result {
	logger := w.logger(in)
	topic, err := w.selectTopic(ctx, in)
	if err != nil {
		return w.fail(err)
	}
	if topic == nil {
		return w.fail(services.Wrap(services.ErrNotFound, w.id, "select topic", "no pending topics", nil))
	}

	if !in.Options.TestMode {
		if err := w.deps.Store.UpdateTopicStatus(ctx, topic.ID, store.TopicInProgress); err != nil {
			return w.fail(services.Wrap(services.ErrTransient, w.id, "claim topic", "", err))
		}
	}
	piece, err := w.deps.Store.CreateContentPiece(ctx, store.ContentPiece{
		TopicID:  topic.ID,
		TitleHE:  topic.Title,
		Keywords: topic.Keywords,
		Status:   store.ContentDraft,
		TestMode: in.Options.TestMode,
	})
	if err != nil {
		return w.fail(services.Wrap(services.ErrTransient, w.id, "create content piece", "", err))
	}
	logger.Info("topic selected",
		logging.String("topic_id", topic.ID),
		logging.String(logging.FieldContentPieceID, piece.ID),
		logging.Int("priority", topic.Priority),
	)
	return stage.Succeeded(w.id, stage.Artifacts{
		TopicID:        topic.ID,
		ContentPieceID: piece.ID,
		Title:          topic.Title,
	})
}

// selectTopic returns the requested topic, or the highest-priority pending
// topic that does not duplicate existing content. Duplicates are marked
// skipped outside test mode.
func (w *TopicManager) selectTopic(ctx context.Context, in stage.Input) (*store.Topic, error) {
	if id := strings.TrimSpace(in.Options.TopicID); id != "" {
		topic, err := w.deps.Store.GetTopic(ctx, id)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, w.id, "load topic", "", err)
		}
		if topic == nil {
			return nil, &pipeline.RecordNotFoundError{Kind: "Topic", ID: id}
		}
		return topic, nil
	}

	pending, err := w.deps.Store.GetTopics(ctx, store.TopicPending)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, w.id, "list topics", "", err)
	}
	pieces, err := w.deps.Store.GetContentPieces(ctx, store.ContentQuery{})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, w.id, "list content", "", err)
	}
	logger := w.logger(in)
	for _, topic := range pending {
		existing := existingTitles(pieces, topic.ID)
		match := textutil.NearestMatch(topic.Title, existing)
		if match.Index >= 0 && match.Score >= DuplicateThreshold {
			logger.Info("skipping duplicate topic",
				logging.String("topic_id", topic.ID),
				logging.String("similar_to", existing[match.Index]),
				logging.Float64("similarity", match.Score),
			)
			if !in.Options.TestMode {
				if err := w.deps.Store.UpdateTopicStatus(ctx, topic.ID, store.TopicSkipped); err != nil {
					return nil, services.Wrap(services.ErrTransient, w.id, "skip topic", "", err)
				}
			}
			continue
		}
		return topic, nil
	}
	return nil, nil
}

// existingTitles lists the titles of pieces written for other topics. A
// retried topic is never a duplicate of its own earlier piece.
func existingTitles(pieces []*store.ContentPiece, topicID string) []string {
	titles := make([]string, 0, 2*len(pieces))
	for _, piece := range pieces {
		if piece.TopicID == topicID {
			continue
		}
		for _, title := range []string{piece.TitleHE, piece.TitleEN} {
			if strings.TrimSpace(title) != "" {
				titles = append(titles, title)
			}
		}
	}
	return titles
}

func (w *TopicManager) HealthCheck(context.Context) stage.Health {
	if w.deps.Store == nil {
		return stage.Unhealthy(w.id, "record store unavailable")
	}
	return stage.Healthy(w.id)
}
