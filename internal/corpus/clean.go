package corpus

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// CleanText strips markup from scraped article text and collapses
// whitespace. Text without markup passes through with only whitespace
// normalised.
func CleanText(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	}
	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	out := doc.Text()
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
