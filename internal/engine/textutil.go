package engine

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

var (
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	horizontalWSRe = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	spaceNLRe      = regexp.MustCompile(` ?\n ?`)
	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)
)

// NormalizeWhitespace collapses runs of spaces and tabs to one space, strips
// carriage returns, collapses three or more newlines to exactly two, and trims
// both ends. NormalizeWhitespace(NormalizeWhitespace(s)) == NormalizeWhitespace(s).
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = horizontalWSRe.ReplaceAllString(s, " ")
	s = spaceNLRe.ReplaceAllString(s, "\n")
	s = manyNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CleanHTML strips HTML tags and trims whitespace.
func CleanHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8.
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}
