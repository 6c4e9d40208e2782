package workers

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	blockCloseTags = regexp.MustCompile(`(?i)(</(?:p|h[1-6]|ul|ol|blockquote)>)`)
	htmlHeading    = regexp.MustCompile(`(?is)^<h([1-6])[^>]*>(.*)</h[1-6]>$`)
	htmlParagraph  = regexp.MustCompile(`(?is)^<p[^>]*>(.*)</p>$`)
	htmlList       = regexp.MustCompile(`(?is)^<(ul|ol)[^>]*>.*</(?:ul|ol)>$`)
	htmlQuote      = regexp.MustCompile(`(?is)^<blockquote[^>]*>(.*)</blockquote>$`)
	markdownHead   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listItemPrefix = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
)

// BuildGutenberg converts an article body into WordPress block markup. The
// body may be simple HTML (paragraphs, headings, lists) or markdown-like
// text with blank-line separated paragraphs, "#" headings and "-" lists.
func BuildGutenberg(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = blockCloseTags.ReplaceAllString(body, "$1\n\n")

	var blocks []string
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		blocks = append(blocks, buildBlock(chunk))
	}
	return strings.Join(blocks, "\n\n")
}

func buildBlock(chunk string) string {
	if m := htmlHeading.FindStringSubmatch(chunk); m != nil {
		return headingBlock(int(m[1][0]-'0'), strings.TrimSpace(m[2]))
	}
	if m := markdownHead.FindStringSubmatch(chunk); m != nil && !strings.Contains(chunk, "\n") {
		return headingBlock(len(m[1]), html.EscapeString(strings.TrimSpace(m[2])))
	}
	if m := htmlList.FindStringSubmatch(chunk); m != nil {
		attrs := ""
		if strings.EqualFold(m[1], "ol") {
			attrs = ` {"ordered":true}`
		}
		return fmt.Sprintf("<!-- wp:list%s -->\n%s\n<!-- /wp:list -->", attrs, chunk)
	}
	if m := htmlQuote.FindStringSubmatch(chunk); m != nil {
		return fmt.Sprintf("<!-- wp:quote -->\n<blockquote class=\"wp-block-quote\">%s</blockquote>\n<!-- /wp:quote -->", strings.TrimSpace(m[1]))
	}
	if items, ok := markdownList(chunk); ok {
		var b strings.Builder
		b.WriteString("<!-- wp:list -->\n<ul class=\"wp-block-list\">")
		for _, item := range items {
			b.WriteString("<li>" + html.EscapeString(item) + "</li>")
		}
		b.WriteString("</ul>\n<!-- /wp:list -->")
		return b.String()
	}
	text := chunk
	if m := htmlParagraph.FindStringSubmatch(chunk); m != nil {
		text = strings.TrimSpace(m[1])
	} else if !strings.Contains(chunk, "<") {
		text = html.EscapeString(chunk)
	}
	text = strings.ReplaceAll(text, "\n", "<br>")
	return fmt.Sprintf("<!-- wp:paragraph -->\n<p>%s</p>\n<!-- /wp:paragraph -->", text)
}

func headingBlock(level int, text string) string {
	attrs := ""
	if level != 2 {
		attrs = fmt.Sprintf(` {"level":%d}`, level)
	}
	return fmt.Sprintf("<!-- wp:heading%s -->\n<h%d class=\"wp-block-heading\">%s</h%d>\n<!-- /wp:heading -->", attrs, level, text, level)
}

func markdownList(chunk string) ([]string, bool) {
	lines := strings.Split(chunk, "\n")
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		loc := listItemPrefix.FindStringIndex(line)
		if loc == nil {
			return nil, false
		}
		items = append(items, strings.TrimSpace(line[loc[1]:]))
	}
	return items, len(items) > 0
}
