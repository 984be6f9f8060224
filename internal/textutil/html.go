// Package textutil turns feed HTML fragments into plain text.
package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const ellipsis = "..."

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
// Entities are decoded by the HTML parser.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate shortens s to at most limit runes, ending with "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string([]rune(s)[:limit])
	}

	runes := []rune(s)[:limit-len(ellipsis)]
	return strings.TrimRight(string(runes), " ") + ellipsis
}
