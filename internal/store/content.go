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

const contentColumns = "id, topic_id, title_he, content_he, title_en, content_en, excerpt, keywords_json, seo_score, status, hebrew_post_id, english_post_id, featured_image_url, video_url, episode_url, test_mode, created_at, updated_at"

func scanContentPiece(row scanner) (*ContentPiece, error) {
	var (
		piece                                    ContentPiece
		topicID, titleHE, contentHE              sql.NullString
		titleEN, contentEN, excerpt              sql.NullString
		keywords, status, createdRaw, updatedRaw string
		hebrewPost, englishPost                  sql.NullInt64
		image, video, episode                    sql.NullString
		testMode                                 int
	)
	if err := row.Scan(
		&piece.ID, &topicID, &titleHE, &contentHE, &titleEN, &contentEN, &excerpt,
		&keywords, &piece.SEOScore, &status, &hebrewPost, &englishPost,
		&image, &video, &episode, &testMode, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	piece.TopicID = topicID.String
	piece.TitleHE = titleHE.String
	piece.ContentHE = contentHE.String
	piece.TitleEN = titleEN.String
	piece.ContentEN = contentEN.String
	piece.Excerpt = excerpt.String
	piece.Keywords = decodeList(keywords)
	piece.Status = ContentStatus(status)
	piece.HebrewPostID = hebrewPost.Int64
	piece.EnglishPostID = englishPost.Int64
	piece.FeaturedImageURL = image.String
	piece.VideoURL = video.String
	piece.EpisodeURL = episode.String
	piece.TestMode = testMode != 0
	piece.CreatedAt, _ = parseTimeString(createdRaw)
	piece.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &piece, nil
}

// CreateContentPiece inserts a content piece, defaulting to draft status.
func (s *Store) CreateContentPiece(ctx context.Context, piece ContentPiece) (*ContentPiece, error) {
	piece.ID = newID(piece.ID)
	if piece.Status == "" {
		piece.Status = ContentDraft
	}
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO content_pieces (`+contentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		piece.ID, nullableString(piece.TopicID), nullableString(piece.TitleHE), nullableString(piece.ContentHE),
		nullableString(piece.TitleEN), nullableString(piece.ContentEN), nullableString(piece.Excerpt),
		encodeList(piece.Keywords), piece.SEOScore, string(piece.Status),
		nullableInt64(piece.HebrewPostID), nullableInt64(piece.EnglishPostID),
		nullableString(piece.FeaturedImageURL), nullableString(piece.VideoURL), nullableString(piece.EpisodeURL),
		boolInt(piece.TestMode), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert content piece: %w", err)
	}
	return s.GetContentPiece(ctx, piece.ID)
}

// GetContentPiece returns the piece or nil when it does not exist.
func (s *Store) GetContentPiece(ctx context.Context, id string) (*ContentPiece, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+contentColumns+` FROM content_pieces WHERE id = ?`, id)
	piece, err := scanContentPiece(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content piece: %w", err)
	}
	return piece, nil
}

// ContentQuery filters GetContentPieces. Zero values mean no restriction.
type ContentQuery struct {
	Statuses []ContentStatus
	// Limit keeps the most recently updated pieces.
	Limit int
	// IncludeTestMode also returns pieces written by dry runs.
	IncludeTestMode bool
}

// GetContentPieces lists content pieces, most recently updated first.
func (s *Store) GetContentPieces(ctx context.Context, q ContentQuery) ([]*ContentPiece, error) {
	query := `SELECT ` + contentColumns + ` FROM content_pieces`
	args := make([]any, 0, len(q.Statuses)+1)
	var where []string
	if !q.IncludeTestMode {
		where = append(where, `test_mode = 0`)
	}
	if len(q.Statuses) > 0 {
		where = append(where, `status IN (`+makePlaceholders(len(q.Statuses))+`)`)
		for _, status := range q.Statuses {
			args = append(args, string(status))
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY updated_at DESC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content pieces: %w", err)
	}
	defer rows.Close()
	var pieces []*ContentPiece
	for rows.Next() {
		piece, err := scanContentPiece(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content piece: %w", err)
		}
		pieces = append(pieces, piece)
	}
	return pieces, rows.Err()
}

// UpdateContentPiece applies patch and returns the updated piece.
func (s *Store) UpdateContentPiece(ctx context.Context, id string, patch ContentPatch) (*ContentPiece, error) {
	piece, err := s.GetContentPiece(ctx, id)
	if err != nil {
		return nil, err
	}
	if piece == nil {
		return nil, services.Wrap(services.ErrNotFound, "store", "update content piece", "content piece not found: "+id, nil)
	}
	patch.Apply(piece)
	if _, err := s.execWithRetry(ctx,
		`UPDATE content_pieces SET
            title_he = ?, content_he = ?, title_en = ?, content_en = ?, excerpt = ?,
            keywords_json = ?, seo_score = ?, status = ?, hebrew_post_id = ?, english_post_id = ?,
            featured_image_url = ?, video_url = ?, episode_url = ?, updated_at = ?
        WHERE id = ?`,
		nullableString(piece.TitleHE), nullableString(piece.ContentHE),
		nullableString(piece.TitleEN), nullableString(piece.ContentEN), nullableString(piece.Excerpt),
		encodeList(piece.Keywords), piece.SEOScore, string(piece.Status),
		nullableInt64(piece.HebrewPostID), nullableInt64(piece.EnglishPostID),
		nullableString(piece.FeaturedImageURL), nullableString(piece.VideoURL), nullableString(piece.EpisodeURL),
		formatTime(time.Now()), id,
	); err != nil {
		return nil, fmt.Errorf("update content piece: %w", err)
	}
	return s.GetContentPiece(ctx, id)
}
