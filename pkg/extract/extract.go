// Package extract pulls the reporter-authored body out of a wire story's
// HTML, dropping the dateline prefix and the attribution footer.
package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// "LONDON, Feb 7 (Reuters) - Egypt's state grains buyer ..." keeps the text after the dash
	datelinePattern = regexp.MustCompile(`\(Reuters\) - (.+)`)

	// first attribution paragraph ends the body
	footerPattern = regexp.MustCompile(`(?i)reporting by|compiled by`)

	spaceRuns = regexp.MustCompile(` +`)
)

// Body returns the cleaned body text of a story. Markup that cannot be
// parsed yields an empty body.
func Body(doc string) string {
	body, err := BodyFrom(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	return body
}

// BodyFrom is Body over a reader.
func BodyFrom(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse story markup: %w", err)
	}
	return bodyOf(doc), nil
}

func bodyOf(doc *goquery.Document) string {
	var paragraphs []string

	doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		paragraph := Normalize(paragraphText(s))

		// Both patterns are tested against the paragraph before the dateline is cut
		intro := datelinePattern.FindStringSubmatch(paragraph)
		if footerPattern.MatchString(paragraph) {
			return false
		}
		if intro != nil {
			paragraph = intro[1]
		}

		paragraphs = append(paragraphs, paragraph)
		return true
	})

	return strings.TrimSpace(strings.Join(paragraphs, " "))
}

// Normalize turns line breaks into spaces, trims the ends and collapses
// runs of spaces.
func Normalize(paragraph string) string {
	paragraph = strings.ReplaceAll(paragraph, "\n", " ")
	paragraph = strings.TrimSpace(paragraph)
	return spaceRuns.ReplaceAllString(paragraph, " ")
}

// paragraphText lays the paragraph's text nodes out one per line, the way
// they read once the markup is pretty-printed, so inline tags never glue
// two words together.
func paragraphText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
