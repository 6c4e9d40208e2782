package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"contentfactory/internal/services"
)

const topicColumns = "id, title, description, keywords_json, priority, status, created_at, updated_at"

func scanTopic(row scanner) (*Topic, error) {
	var (
		topic       Topic
		description sql.NullString
		keywords    string
		status      string
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(&topic.ID, &topic.Title, &description, &keywords, &topic.Priority, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	topic.Description = description.String
	topic.Keywords = decodeList(keywords)
	topic.Status = TopicStatus(status)
	topic.CreatedAt, _ = parseTimeString(createdRaw)
	topic.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &topic, nil
}

// CreateTopic inserts a topic, assigning an id and pending status when unset.
func (s *Store) CreateTopic(ctx context.Context, topic Topic) (*Topic, error) {
	if strings.TrimSpace(topic.Title) == "" {
		return nil, errors.New("topic title required")
	}
	topic.ID = newID(topic.ID)
	if topic.Status == "" {
		topic.Status = TopicPending
	}
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO topics (`+topicColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		topic.ID, topic.Title, nullableString(topic.Description), encodeList(topic.Keywords),
		topic.Priority, string(topic.Status), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	return s.GetTopic(ctx, topic.ID)
}

// GetTopic returns the topic or nil when it does not exist.
func (s *Store) GetTopic(ctx context.Context, id string) (*Topic, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+topicColumns+` FROM topics WHERE id = ?`, id)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

// GetTopics lists topics, optionally restricted to the given statuses, highest
// priority first then oldest first.
func (s *Store) GetTopics(ctx context.Context, statuses ...TopicStatus) ([]*Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()
	var topics []*Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// UpdateTopicStatus sets the topic status.
func (s *Store) UpdateTopicStatus(ctx context.Context, id string, status TopicStatus) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE topics SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update topic status: %w", err)
	}
	return requireRow(res, "topic", id)
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update "+kind, fmt.Sprintf("%s not found: %s", kind, id), nil)
	}
	return nil
}
