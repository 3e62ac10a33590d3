// Package sanitize cleans free text before it is stored or shown: note bodies
// typed by technicians and messages returned by the content generator.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	spacesPattern     = regexp.MustCompile(`[ \t]+`)
)

// StripHTML removes markup, including markup hidden behind entities.
func StripHTML(s string) string {
	result := tagPattern.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	return tagPattern.ReplaceAllString(result, "")
}

// Text strips markup and normalizes whitespace. Paragraph breaks survive as a
// single blank line.
func Text(s string) string {
	result := StripHTML(strings.ReplaceAll(s, "\r\n", "\n"))
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesPattern.ReplaceAllString(line, " "))
	}
	result = blankLinesPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

// TextPtr is Text for optional fields.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
