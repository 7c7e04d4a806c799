package integrity

import "strings"

// DefaultForbiddenPhrases are rejected in decision reasons for blocked or
// market-aligned releases and in all rendered outbound copy. The list is
// configurable; these are the shipped defaults.
var DefaultForbiddenPhrases = []string{
	"take the dog",
	"fade the favorite",
	"misprice",
	"lock",
	"guaranteed",
	"can't lose",
	"free money",
	"sure thing",
}

// ContainsForbidden reports the first forbidden phrase found in text,
// matched case-insensitively, or "" when the text is clean.
func ContainsForbidden(text string, phrases []string) string {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}
