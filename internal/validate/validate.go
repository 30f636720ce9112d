// Package validate holds input validation for search queries and contact
// fields. The pattern checks are heuristic, not exhaustive: they exist to
// keep obviously hostile or malformed input away from external services,
// not to substitute for parameterized queries at the storage layer.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

const maxQueryLength = 200

var (
	emailRe      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRe      = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	phoneStripRe = regexp.MustCompile(`[\s\-()]`)

	// SQL-injection style constructs, matched case-insensitively.
	injectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\bOR\b|\bAND\b).*?=.*?`),
		regexp.MustCompile(`(?i)\b(UNION|SELECT|INSERT|DELETE|UPDATE)\b`),
		regexp.MustCompile(`[;'"]`),
	}
)

// SearchQuery rejects empty, over-long, or injection-shaped search input.
func SearchQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return eris.New("search query cannot be empty")
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		return eris.Errorf("search query too long (max %d characters)", maxQueryLength)
	}
	for _, re := range injectionRes {
		if re.MatchString(query) {
			return eris.New("invalid characters in search query")
		}
	}
	return nil
}

// Sanitize strips NUL bytes and angle brackets, truncates to maxLength, and
// trims surrounding whitespace. Used for free-text fields that are persisted
// but never used to build further queries.
func Sanitize(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	// Truncate on a rune boundary so persisted fields stay valid UTF-8.
	if utf8.RuneCountInString(text) > maxLength {
		text = string([]rune(text)[:maxLength])
	}
	text = strings.ReplaceAll(text, "<", "")
	text = strings.ReplaceAll(text, ">", "")
	return strings.TrimSpace(text)
}

// Email reports whether s looks like a well-formed email address.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone reports whether s looks like a dialable phone number after common
// formatting characters are removed.
func Phone(s string) bool {
	return phoneRe.MatchString(phoneStripRe.ReplaceAllString(s, ""))
}
