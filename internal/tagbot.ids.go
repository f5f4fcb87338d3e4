package internal

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewTagID returns a prefixed random identifier for a tag record
// (e.g. "tag_V1StGXR8Z5jdHi6B").
func NewTagID() (string, error) {
	id, err := gonanoid.Generate(TagIDAlphabet, TagIDLength)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrMsgIDFailed, err)
	}
	return TagIDPrefix + id, nil
}
