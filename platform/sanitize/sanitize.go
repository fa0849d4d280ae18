// Package sanitize cleans free text supplied by reporters before it is stored
// and later typed into the government form.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityDecoder = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'", "&nbsp;", " ")
)

// Text strips markup and control characters from multi-line text. Line
// breaks survive; runs of spaces collapse to one.
func Text(s string) string {
	s = stripTags(s)

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		out = append(out, collapse(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Line is Text for single-line fields such as addresses.
func Line(s string) string {
	return collapse(stripTags(s))
}

func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityDecoder.Replace(s)
	// decoded entities can form new tags
	return tagPattern.ReplaceAllString(s, "")
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
