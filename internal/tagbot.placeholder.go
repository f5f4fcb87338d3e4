package internal

import (
	"strings"
)

// Segment is one piece of scanned template text: either literal text or a
// placeholder token. Raw always holds the exact source bytes of the segment.
type Segment struct {
	Text    string // literal text (empty for tokens)
	Token   string // token name without braces (empty for text)
	Raw     string // original source of this segment
	IsToken bool
}

// ScanPlaceholders splits text into literal and placeholder segments.
// A placeholder is "{name}" where name matches [A-Za-z0-9_.]+ and is at most
// MaxTokenLength bytes. Anything else, including unbalanced braces and JSON-ish
// fragments like "{ }", stays literal.
func ScanPlaceholders(text string) []Segment {
	if text == "" {
		return nil
	}

	var segments []Segment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			s := literal.String()
			segments = append(segments, Segment{Text: s, Raw: s})
			literal.Reset()
		}
	}

	pos := 0
	for pos < len(text) {
		if text[pos] != PlaceholderOpen {
			next := strings.IndexByte(text[pos:], PlaceholderOpen)
			if next < 0 {
				literal.WriteString(text[pos:])
				break
			}
			literal.WriteString(text[pos : pos+next])
			pos += next
			continue
		}

		end := scanToken(text, pos+1)
		if end < 0 {
			literal.WriteByte(PlaceholderOpen)
			pos++
			continue
		}

		flush()
		token := text[pos+1 : end]
		segments = append(segments, Segment{
			Token:   token,
			Raw:     text[pos : end+1],
			IsToken: true,
		})
		pos = end + 1
	}

	flush()
	return segments
}

// scanToken returns the index of the closing brace of a token starting at
// start, or -1 if the bytes from start do not form a valid token.
func scanToken(text string, start int) int {
	for i := start; i < len(text) && i-start <= MaxTokenLength; i++ {
		ch := text[i]
		if ch == PlaceholderClose {
			if i == start {
				return -1
			}
			return i
		}
		if !isTokenChar(ch) {
			return -1
		}
	}
	return -1
}

func isTokenChar(ch byte) bool {
	return ch == '_' || ch == '.' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// Expand replaces every placeholder for which lookup reports ok with its
// value. Unknown placeholders are written back verbatim.
func Expand(text string, lookup func(token string) (string, bool)) string {
	if strings.IndexByte(text, PlaceholderOpen) < 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))
	for _, seg := range ScanPlaceholders(text) {
		if !seg.IsToken {
			sb.WriteString(seg.Text)
			continue
		}
		if value, ok := lookup(seg.Token); ok {
			sb.WriteString(value)
			continue
		}
		sb.WriteString(seg.Raw)
	}
	return sb.String()
}

// Tokens returns the distinct placeholder tokens in text in order of first appearance.
func Tokens(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, seg := range ScanPlaceholders(text) {
		if !seg.IsToken {
			continue
		}
		if _, ok := seen[seg.Token]; ok {
			continue
		}
		seen[seg.Token] = struct{}{}
		tokens = append(tokens, seg.Token)
	}
	return tokens
}
