package stage

import (
	"errors"
	"slices"
	"testing"

	"contentfactory/internal/services"
)

func TestArtifactsMergeOverlaysNonZero(t *testing.T) {
	base := Artifacts{TopicID: "t-1", ContentPieceID: "c-1", HebrewPostID: 11}
	base.Merge(Artifacts{EnglishPostID: 12, SocialPosts: []PostRef{{Platform: "facebook", ID: "fb-1"}}})

	if base.TopicID != "t-1" || base.HebrewPostID != 11 {
		t.Fatalf("merge dropped existing fields: %+v", base)
	}
	if base.EnglishPostID != 12 || len(base.SocialPosts) != 1 {
		t.Fatalf("merge did not overlay: %+v", base)
	}
	want := []string{"topic_id", "content_piece_id", "hebrew_post_id", "english_post_id", "social_posts"}
	if got := base.Keys(); !slices.Equal(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if !base.Has("social_posts") || base.Has("episode") {
		t.Fatal("Has() disagrees with Keys()")
	}
}

func TestArtifactsCloneIsIndependent(t *testing.T) {
	orig := Artifacts{SocialPosts: []PostRef{{Platform: "linkedin"}}, Episode: &PodcastEpisode{Title: "ep"}}
	clone := orig.Clone()
	clone.SocialPosts[0].Platform = "changed"
	clone.Episode.Title = "changed"
	if orig.SocialPosts[0].Platform != "linkedin" || orig.Episode.Title != "ep" {
		t.Fatalf("clone shares memory with original: %+v", orig)
	}
}

func TestDecodeArtifacts(t *testing.T) {
	a, err := DecodeArtifacts(`{"hebrew_post_id":12345,"social_posts":[{"platform":"facebook"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.HebrewPostID != 12345 || len(a.SocialPosts) != 1 {
		t.Fatalf("unexpected artifacts: %+v", a)
	}

	empty, err := DecodeArtifacts("")
	if err != nil || len(empty.Keys()) != 0 {
		t.Fatalf("expected empty artifacts, got %+v %v", empty, err)
	}

	_, err = DecodeArtifacts("{invalid json")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	raw, err := EncodeOptions(Options{TestMode: true, TopicID: "t-9"})
	if err != nil {
		t.Fatalf("EncodeOptions: %v", err)
	}
	opts, err := DecodeOptions(raw)
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	if !opts.TestMode || opts.TopicID != "t-9" || opts.SkipFailures {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestFailedUsesStructuredMessage(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "translator", "create post", "WordPress rejected the post", errors.New("500"))
	res := Failed("translator", err)
	if res.Success || res.Error != "WordPress rejected the post" || !errors.Is(res.Err, services.ErrExternalTool) {
		t.Fatalf("unexpected result: %+v", res)
	}
	plain := Failed("translator", errors.New("boom"))
	if plain.Error != "boom" {
		t.Fatalf("unexpected plain message: %q", plain.Error)
	}
	if Failed("x", nil).Error == "" {
		t.Fatal("expected fallback message")
	}
}
