package internal

// Placeholder delimiters
const (
	PlaceholderOpen  = '{'
	PlaceholderClose = '}'
)

// MaxTokenLength bounds how far the scanner looks for a closing brace.
// Longer brace groups are treated as literal text.
const MaxTokenLength = 64

// ID prefixes
const (
	TagIDPrefix    = "tag_"
	TagIDAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	TagIDLength    = 16
	ErrMsgIDFailed = "failed to generate tag ID"
)

// Suggestions
const (
	SuggestMinDistance = 2
	SuggestMaxNames    = 3
	SuggestPrefix      = "did you mean "
)
