package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagID(t *testing.T) {
	id, err := NewTagID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, TagIDPrefix))
	assert.Len(t, id, len(TagIDPrefix)+TagIDLength)

	other, err := NewTagID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
