package store

import (
	"slices"
	"time"
)

// TopicStatus tracks where a topic is in the editorial backlog.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicInProgress TopicStatus = "in_progress"
	TopicDone       TopicStatus = "done"
	TopicSkipped    TopicStatus = "skipped"
)

// Topic is a candidate subject for an article.
type Topic struct {
	ID          string
	Title       string
	Description string
	Keywords    []string
	Priority    int
	Status      TopicStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentStatus is the editorial status of a content piece.
type ContentStatus string

const (
	ContentDraft           ContentStatus = "draft"
	ContentPendingApproval ContentStatus = "pending_approval"
	ContentApproved        ContentStatus = "approved"
	ContentPublished       ContentStatus = "published"
	ContentCompleted       ContentStatus = "completed"
)

// Finished reports whether the piece has reached the site.
func (s ContentStatus) Finished() bool {
	return s == ContentPublished || s == ContentCompleted
}

// ContentPiece is one bilingual article plus its derived media.
type ContentPiece struct {
	ID               string
	TopicID          string
	TitleHE          string
	ContentHE        string
	TitleEN          string
	ContentEN        string
	Excerpt          string
	Keywords         []string
	SEOScore         int
	Status           ContentStatus
	HebrewPostID     int64
	EnglishPostID    int64
	FeaturedImageURL string
	VideoURL         string
	EpisodeURL       string
	// TestMode marks pieces written by dry runs. They are hidden from
	// GetContentPieces unless asked for.
	TestMode  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentPatch lists the fields to change; nil fields are left untouched.
type ContentPatch struct {
	TitleHE          *string
	ContentHE        *string
	TitleEN          *string
	ContentEN        *string
	Excerpt          *string
	Keywords         *[]string
	SEOScore         *int
	Status           *ContentStatus
	HebrewPostID     *int64
	EnglishPostID    *int64
	FeaturedImageURL *string
	VideoURL         *string
	EpisodeURL       *string
}

// Ptr returns a pointer to v for building patches.
func Ptr[T any](v T) *T { return &v }

// Apply copies the non-nil patch fields onto piece.
func (p ContentPatch) Apply(piece *ContentPiece) {
	setIf(&piece.TitleHE, p.TitleHE)
	setIf(&piece.ContentHE, p.ContentHE)
	setIf(&piece.TitleEN, p.TitleEN)
	setIf(&piece.ContentEN, p.ContentEN)
	setIf(&piece.Excerpt, p.Excerpt)
	if p.Keywords != nil {
		piece.Keywords = slices.Clone(*p.Keywords)
	}
	setIf(&piece.SEOScore, p.SEOScore)
	setIf(&piece.Status, p.Status)
	setIf(&piece.HebrewPostID, p.HebrewPostID)
	setIf(&piece.EnglishPostID, p.EnglishPostID)
	setIf(&piece.FeaturedImageURL, p.FeaturedImageURL)
	setIf(&piece.VideoURL, p.VideoURL)
	setIf(&piece.EpisodeURL, p.EpisodeURL)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunExpired   RunStatus = "expired"
)

// IsTerminal reports whether no further mutation is allowed.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunExpired:
		return true
	default:
		return false
	}
}

// TriggerType records what started a run.
type TriggerType string

const (
	TriggerCron   TriggerType = "cron"
	TriggerManual TriggerType = "manual"
	TriggerHealer TriggerType = "healer"
)

// PipelineRun is the persisted state of one run. ArtifactsJSON and
// OptionsJSON are opaque documents owned by the pipeline package.
type PipelineRun struct {
	ID                string
	TriggerType       TriggerType
	PipelineType      string
	Status            RunStatus
	CurrentStage      string
	Order             []string
	Cursor            int
	StagesCompleted   []string
	StagesFailed      []string
	ArtifactsJSON     string
	OptionsJSON       string
	PendingApprovalID string
	RevisionCount     int
	RevisionFeedback  string
	ErrorMessage      string
	StartedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// LogEntry is one user-visible line in a run's log.
type LogEntry struct {
	ID        int64
	RunID     string
	Timestamp time.Time
	Level     string
	Worker    string
	Message   string
}

// ApprovalStatus is the state of a human decision.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Approval is a human sign-off request tied to one run and one artifact.
// Approvals are never deleted.
type Approval struct {
	ID                string
	RunID             string
	Type              string
	Status            ApprovalStatus
	Worker            string
	RewindTo          string
	RelatedID         string
	RelatedTitle      string
	MessageRef        string
	Decision          string
	Feedback          string
	ResponseUserID    string
	ResponseTimestamp *time.Time
	CreatedAt         time.Time
}
