package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens value to at most limit runes. When truncation happens
// and suffix is non-empty, the result ends with suffix and still fits in
// limit runes.
func Truncate(value string, limit int, suffix string) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	keep := limit - utf8.RuneCountInString(suffix)
	if keep <= 0 {
		return string([]rune(suffix)[:limit])
	}
	runes := []rune(value)
	return strings.TrimRight(string(runes[:keep]), " \t") + suffix
}
