package filter

import (
	"regexp"
	"strings"
)

func containsSubstring(s, substr string) bool {
	return strings.Contains(s, substr)
}

func regexMatches(s, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
