package services

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// SanitizeDescription reduces a possibly-HTML description to plain text
// so tag matching and search relevance see clean content. Plain strings
// pass through with whitespace collapsed.
func SanitizeDescription(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "<") {
		return multiSpaceRegex.ReplaceAllString(input, " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return multiSpaceRegex.ReplaceAllString(input, " ")
	}

	doc.Find("script, style").Remove()
	text := doc.Text()
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(text, " "))
}

// NormalizeTags trims, lowercases and dedupes a tag list, preserving
// first-seen order
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
