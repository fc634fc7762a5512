package domain

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters (spaces, tabs, newlines).
var whitespaceRegex = regexp.MustCompile(`\s+`)

// KeywordEntry is a keyword under review in a session.
type KeywordEntry struct {
	// Keyword is the search term. Non-empty after trimming.
	Keyword string `json:"keyword"`

	// Active controls whether the keyword takes part in scans and aggregation.
	Active bool `json:"active"`

	// Count is the number of cached results, nil until scanned or while inactive.
	Count *int `json:"count"`
}

// NewKeywordEntry returns an active, unscanned entry.
func NewKeywordEntry(keyword string) KeywordEntry {
	return KeywordEntry{Keyword: strings.TrimSpace(keyword), Active: true}
}

// NormalizeKeyword normalizes a keyword string by:
// - Converting to lowercase
// - Trimming leading/trailing whitespace
// - Collapsing multiple whitespace characters into a single space
func NormalizeKeyword(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CollapseWhitespace trims s and collapses internal whitespace runs,
// including newlines, to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
