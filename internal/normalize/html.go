package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML reduces aggregator entry markup to whitespace-normalized
// text. Input that is not HTML passes through unchanged apart from
// whitespace collapsing.
func StripHTML(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsRune(trimmed, '<') {
		return collapseWhitespace(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return collapseWhitespace(trimmed)
	}
	doc.Find("script, style").Remove()
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
