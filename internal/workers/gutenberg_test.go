package workers

import (
	"strings"
	"testing"
)

func TestBuildGutenbergFromHTML(t *testing.T) {
	got := BuildGutenberg("<h2>כותרת</h2><p>פסקה ראשונה</p><ul><li>א</li><li>ב</li></ul><h3>Sub</h3><p>end</p>")
	want := []string{
		"<!-- wp:heading -->\n<h2 class=\"wp-block-heading\">כותרת</h2>\n<!-- /wp:heading -->",
		"<!-- wp:paragraph -->\n<p>פסקה ראשונה</p>\n<!-- /wp:paragraph -->",
		"<!-- wp:list -->\n<ul><li>א</li><li>ב</li></ul>\n<!-- /wp:list -->",
		"<!-- wp:heading {\"level\":3} -->",
		"<p>end</p>",
	}
	for _, fragment := range want {
		if !strings.Contains(got, fragment) {
			t.Fatalf("missing %q in:\n%s", fragment, got)
		}
	}
	if n := strings.Count(got, "<!-- wp:"); n != 5 {
		t.Fatalf("expected 5 blocks, got %d:\n%s", n, got)
	}
}

func TestBuildGutenbergFromMarkdown(t *testing.T) {
	got := BuildGutenberg("# Title\n\nFirst line\nsecond line\n\n- one\n- two & three\n\n1. ordered")
	for _, fragment := range []string{
		"<!-- wp:heading {\"level\":1} -->\n<h1 class=\"wp-block-heading\">Title</h1>",
		"<p>First line<br>second line</p>",
		"<ul class=\"wp-block-list\"><li>one</li><li>two &amp; three</li></ul>",
		"<li>ordered</li>",
	} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("missing %q in:\n%s", fragment, got)
		}
	}
}

func TestBuildGutenbergEmpty(t *testing.T) {
	if got := BuildGutenberg("  \n\n "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestTestPostIDsStayAboveBase(t *testing.T) {
	first := nextTestPostID()
	second := nextTestPostID()
	if first <= testPostIDBase || second != first+1 {
		t.Fatalf("ids = %d, %d", first, second)
	}
}
