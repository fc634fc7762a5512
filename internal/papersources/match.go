package papersources

import "strings"

// Matches reports whether keyword occurs, case-insensitively, in the title,
// the abstract (when present) or any of the paper keywords.
func Matches(keyword, title, abstract string, keywords []string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(title), kw) {
		return true
	}
	if abstract != "" && strings.Contains(strings.ToLower(abstract), kw) {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(strings.ToLower(k), kw) {
			return true
		}
	}
	return false
}

// TitleMatches is the title-only clause of Matches, used by sources whose
// listings carry no abstract or keywords.
func TitleMatches(keyword, title string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(keyword))
}
