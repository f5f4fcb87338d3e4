package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextWord(t *testing.T) {
	tests := []struct {
		name  string
		input string
		word  string
		rest  string
	}{
		{name: "empty", input: "", word: "", rest: ""},
		{name: "whitespace only", input: "  \n\t", word: "", rest: ""},
		{name: "single word", input: "hello", word: "hello", rest: ""},
		{name: "leading whitespace", input: "   hello world", word: "hello", rest: "world"},
		{name: "keeps inner formatting", input: "create rules line one\n  line two", word: "create", rest: "rules line one\n  line two"},
		{name: "json remainder", input: "faq {\"content\": \"hi\"}", word: "faq", rest: "{\"content\": \"hi\"}"},
		{name: "newline separator", input: "name\n{\"embed\":{}}", word: "name", rest: "{\"embed\":{}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, rest := NextWord(tt.input)
			assert.Equal(t, tt.word, word)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
