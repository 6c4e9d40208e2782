package stage

import (
	"encoding/json"
	"slices"
	"strings"

	"contentfactory/internal/services"
)

// PostRef identifies one dispatched social post.
type PostRef struct {
	Platform string `json:"platform"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// PodcastEpisode is the audio produced for a content piece.
type PodcastEpisode struct {
	ContentPieceID string `json:"content_piece_id"`
	Title          string `json:"title"`
	AudioURL       string `json:"audio_url"`
	ScriptChars    int    `json:"script_chars"`
}

// SEOUpdate records one content piece rewritten by the SEO optimizer.
type SEOUpdate struct {
	ContentPieceID string `json:"content_piece_id"`
	PostID         int64  `json:"post_id,omitempty"`
	OldScore       int    `json:"old_score"`
	NewScore       int    `json:"new_score"`
}

// Artifacts are the well-known outputs workers produce and later workers
// consume. Zero values mean "not produced".
type Artifacts struct {
	TopicID          string          `json:"topic_id,omitempty"`
	ContentPieceID   string          `json:"content_piece_id,omitempty"`
	Title            string          `json:"title,omitempty"`
	GutenbergContent string          `json:"gutenberg_content,omitempty"`
	HebrewPostID     int64           `json:"hebrew_post_id,omitempty"`
	EnglishPostID    int64           `json:"english_post_id,omitempty"`
	FeaturedImageURL string          `json:"featured_image_url,omitempty"`
	VideoURL         string          `json:"video_url,omitempty"`
	SocialPosts      []PostRef       `json:"social_posts,omitempty"`
	Episode          *PodcastEpisode `json:"episode,omitempty"`
	SEOUpdates       []SEOUpdate     `json:"seo_updates,omitempty"`
}

// Merge overlays every non-zero field of other onto a.
func (a *Artifacts) Merge(other Artifacts) {
	overlay(&a.TopicID, other.TopicID)
	overlay(&a.ContentPieceID, other.ContentPieceID)
	overlay(&a.Title, other.Title)
	overlay(&a.GutenbergContent, other.GutenbergContent)
	overlay(&a.HebrewPostID, other.HebrewPostID)
	overlay(&a.EnglishPostID, other.EnglishPostID)
	overlay(&a.FeaturedImageURL, other.FeaturedImageURL)
	overlay(&a.VideoURL, other.VideoURL)
	if len(other.SocialPosts) > 0 {
		a.SocialPosts = slices.Clone(other.SocialPosts)
	}
	if other.Episode != nil {
		episode := *other.Episode
		a.Episode = &episode
	}
	if len(other.SEOUpdates) > 0 {
		a.SEOUpdates = slices.Clone(other.SEOUpdates)
	}
}

func overlay[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

// Clone returns a deep copy.
func (a Artifacts) Clone() Artifacts {
	var out Artifacts
	out.Merge(a)
	return out
}

// Keys lists the populated artifact names in a fixed order.
func (a Artifacts) Keys() []string {
	var keys []string
	add := func(ok bool, key string) {
		if ok {
			keys = append(keys, key)
		}
	}
	add(a.TopicID != "", "topic_id")
	add(a.ContentPieceID != "", "content_piece_id")
	add(a.Title != "", "title")
	add(a.GutenbergContent != "", "gutenberg_content")
	add(a.HebrewPostID != 0, "hebrew_post_id")
	add(a.EnglishPostID != 0, "english_post_id")
	add(a.FeaturedImageURL != "", "featured_image_url")
	add(a.VideoURL != "", "video_url")
	add(len(a.SocialPosts) > 0, "social_posts")
	add(a.Episode != nil, "episode")
	add(len(a.SEOUpdates) > 0, "seo_updates")
	return keys
}

// Has reports whether the named artifact is populated.
func (a Artifacts) Has(key string) bool {
	return slices.Contains(a.Keys(), key)
}

// EncodeArtifacts serializes artifacts for the run record.
func EncodeArtifacts(a Artifacts) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "stage", "encode artifacts", "", err)
	}
	return string(data), nil
}

// DecodeArtifacts parses the run record's artifact document. Empty input
// yields empty artifacts.
func DecodeArtifacts(raw string) (Artifacts, error) {
	var a Artifacts
	if err := decodeDocument(raw, &a); err != nil {
		return Artifacts{}, services.Wrap(
			services.ErrValidation, "stage", "decode artifacts",
			"Run artifacts are unreadable; rerun the pipeline", err)
	}
	return a, nil
}

// EncodeOptions serializes run options for the run record.
func EncodeOptions(o Options) (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "stage", "encode options", "", err)
	}
	return string(data), nil
}

// DecodeOptions parses the run record's options document.
func DecodeOptions(raw string) (Options, error) {
	var o Options
	if err := decodeDocument(raw, &o); err != nil {
		return Options{}, services.Wrap(
			services.ErrValidation, "stage", "decode options",
			"Run options are unreadable", err)
	}
	return o, nil
}

func decodeDocument(raw string, target any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}
