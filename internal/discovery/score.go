package discovery

import (
	"regexp"
	"strings"
)

// Match scores, highest to lowest.
const (
	scoreExact     = 10
	scoreWord      = 8
	scoreSubstring = 5
	scoreToken     = 2
)

// MatchScore rates how well text matches a keyword set. Exact name matches
// rank above word-boundary matches, which rank above plain containment; long
// tokens of a multi-word keyword still score a little. Zero means no match.
func MatchScore(text string, keywords []string) int {
	normalized := strings.ToLower(text)
	score := 0
	for _, keyword := range keywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" {
			continue
		}
		switch {
		case normalized == kw:
			score += scoreExact
		case wordBoundaryMatch(normalized, kw):
			score += scoreWord
		case strings.Contains(normalized, kw):
			score += scoreSubstring
		default:
			for _, token := range strings.Fields(kw) {
				if len(token) > 3 && strings.Contains(normalized, token) {
					score += scoreToken
				}
			}
		}
	}
	return score
}

func wordBoundaryMatch(text, keyword string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
