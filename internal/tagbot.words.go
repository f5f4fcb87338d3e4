package internal

import (
	"strings"
	"unicode"
)

// NextWord splits s into its first whitespace-delimited word and the
// remainder. Leading whitespace is skipped; the remainder keeps its inner
// formatting (newlines, indentation) but loses the whitespace that separated
// it from the word.
func NextWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return "", ""
	}

	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimLeftFunc(s[end:], unicode.IsSpace)
}
