package session

import (
	"regexp"
	"strings"
)

// scanPattern extracts the current pattern match from recognized text: the
// rightmost non-overlapping match wins, lower-cased, then re-tested against
// the pattern. The re-test is deliberate: lower-casing can change whether a
// case-sensitive pattern still accepts the substring, and that two-phase
// behavior is kept as-is. Returns ok=false when there is no match.
func scanPattern(text string, re *regexp.Regexp) (string, bool) {
	matches := re.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	lowered := strings.ToLower(matches[len(matches)-1])
	if !re.MatchString(lowered) {
		return "", false
	}
	return lowered, true
}
