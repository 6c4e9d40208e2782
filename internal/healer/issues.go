package healer

import (
	"errors"
	"fmt"

	"contentfactory/internal/store"
)

// IssueKind names an inconsistency.
type IssueKind string

const (
	IssueMissingEnglishPost    IssueKind = "missing_english_post"
	IssueMissingHebrewPost     IssueKind = "missing_hebrew_post"
	IssuePublishedWithoutPosts IssueKind = "published_without_posts"
	IssueSEOScoreOutOfRange    IssueKind = "seo_score_out_of_range"
)

// Issue is one detected inconsistency and, after a fix attempt, its outcome.
type Issue struct {
	ContentPieceID string    `json:"content_piece_id"`
	Kind           IssueKind `json:"kind"`
	Detail         string    `json:"detail"`
	Fixed          bool      `json:"fixed"`
	Action         string    `json:"action,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Detect lists the inconsistencies of piece.
func Detect(piece *store.ContentPiece) []Issue {
	var issues []Issue
	add := func(kind IssueKind, detail string) {
		issues = append(issues, Issue{ContentPieceID: piece.ID, Kind: kind, Detail: detail})
	}
	finished := piece.Status.Finished()
	switch {
	case finished && piece.HebrewPostID > 0 && piece.EnglishPostID == 0:
		add(IssueMissingEnglishPost, fmt.Sprintf("hebrew post %d has no english counterpart", piece.HebrewPostID))
	case finished && piece.EnglishPostID > 0 && piece.HebrewPostID == 0:
		add(IssueMissingHebrewPost, fmt.Sprintf("english post %d has no hebrew counterpart", piece.EnglishPostID))
	case piece.Status == store.ContentPublished && piece.HebrewPostID == 0 && piece.EnglishPostID == 0:
		add(IssuePublishedWithoutPosts, "status is published but no post exists")
	}
	if piece.SEOScore < 0 || piece.SEOScore > 100 {
		add(IssueSEOScoreOutOfRange, fmt.Sprintf("seo score %d outside 0..100", piece.SEOScore))
	}
	return issues
}

// ErrPartialHeal marks a repair that failed during a sweep.
var ErrPartialHeal = errors.New("partial heal")

// PartialHealError records one failed repair.
type PartialHealError struct {
	ContentPieceID string
	Issue          IssueKind
	Err            error
}

func (e *PartialHealError) Error() string {
	return fmt.Sprintf("heal %s on %s: %v", e.Issue, e.ContentPieceID, e.Err)
}

func (e *PartialHealError) Unwrap() error        { return e.Err }
func (e *PartialHealError) Is(target error) bool { return target == ErrPartialHeal }
