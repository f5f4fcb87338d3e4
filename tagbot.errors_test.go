package tagbot

import (
	"errors"
	"testing"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		meta     map[string]string
		user     bool
	}{
		{
			name:     "tag exists",
			err:      NewTagExistsError("g1", "faq"),
			sentinel: ErrNameConflict,
			meta:     map[string]string{MetaKeyGuild: "g1", MetaKeyTagName: "faq"},
			user:     true,
		},
		{
			name:     "reserved name",
			err:      NewReservedNameError("tag"),
			sentinel: ErrNameConflict,
			meta:     map[string]string{MetaKeyTagName: "tag"},
			user:     true,
		},
		{
			name:     "not found",
			err:      NewTagNotFoundError("g1", "faq"),
			sentinel: ErrTagNotFound,
			meta:     map[string]string{MetaKeyGuild: "g1", MetaKeyTagName: "faq"},
			user:     true,
		},
		{
			name:     "forbidden",
			err:      NewForbiddenError("edit", "g1", "faq", "u2"),
			sentinel: ErrForbidden,
			meta:     map[string]string{MetaKeyAction: "edit", MetaKeyRequester: "u2"},
			user:     true,
		},
		{
			name:     "still owned",
			err:      NewStillOwnedError("g1", "faq", "u1"),
			sentinel: ErrStillOwned,
			meta:     map[string]string{MetaKeyAuthor: "u1"},
			user:     true,
		},
		{
			name:     "malformed template",
			err:      NewMalformedTemplateError(ErrMsgMissingContentEmbed),
			sentinel: ErrMalformedTemplate,
			meta:     map[string]string{MetaKeyReason: ErrMsgMissingContentEmbed},
			user:     false,
		},
		{
			name:     "fetch timeout",
			err:      NewFetchTimeoutError("https://x"),
			sentinel: ErrFetchTimeout,
			meta:     map[string]string{MetaKeyURL: "https://x"},
			user:     true,
		},
		{
			name:     "fetch failure",
			err:      NewFetchFailureError("https://x", ErrMsgFetchStatus),
			sentinel: ErrFetchFailure,
			meta:     map[string]string{MetaKeyURL: "https://x", MetaKeyReason: ErrMsgFetchStatus},
			user:     true,
		},
		{
			name:     "invalid tag",
			err:      NewInvalidTagError("name", "too long"),
			sentinel: ErrInvalidTag,
			meta:     map[string]string{MetaKeyField: "name", MetaKeyReason: "too long"},
			user:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, errors.Is(tt.err, tt.sentinel))

			var customErr *cuserr.CustomError
			require.True(t, errors.As(tt.err, &customErr))

			for key, want := range tt.meta {
				assert.Equal(t, want, metadataOf(tt.err, key), key)
			}
			assert.Equal(t, tt.user, IsUserError(tt.err))
		})
	}
}

func TestIsUserError_Internal(t *testing.T) {
	assert.False(t, IsUserError(nil))
	assert.False(t, IsUserError(errors.New("disk on fire")))
	assert.False(t, IsUserError(&StorageError{Message: ErrMsgStorageClosed}))
}

func TestMetadataOf_PlainError(t *testing.T) {
	assert.Empty(t, metadataOf(errors.New("plain"), MetaKeyReason))
	assert.Empty(t, metadataOf(NewTagNotFoundError("g", "n"), "absent"))
}
