package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Slugify converts a title to a lowercase URL slug. Letters from any script
// are kept so Hebrew titles produce Hebrew slugs. Returns "untitled" when
// nothing usable remains.
func Slugify(title string) string {
	folded := strings.ToLower(stripMarks(strings.TrimSpace(title)))
	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}

var titleCaser = cases.Title(language.English)

// StageLabel renders a worker id such as "content-generator" as "Content Generator".
func StageLabel(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(id))
}

// Truncate shortens text to at most limit runes, appending an ellipsis when cut.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:limit])) + "…"
}

// StripTags removes HTML tags and collapses whitespace, for previews of
// generated article bodies.
func StripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
