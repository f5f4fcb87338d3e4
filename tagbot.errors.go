package tagbot

import (
	"errors"

	"github.com/itsatony/go-cuserr"
)

// Error message constants - all user-facing and internal error texts live here.
const (
	// Taxonomy
	ErrMsgNameConflict      = "tag name conflict"
	ErrMsgTagNotFound       = "tag not found"
	ErrMsgForbidden         = "not allowed to modify tag"
	ErrMsgStillOwned        = "tag owner is still a member"
	ErrMsgMalformedTemplate = "malformed tag template"
	ErrMsgFetchTimeout      = "timed out fetching remote tag content"
	ErrMsgFetchFailure      = "failed to fetch remote tag content"
	ErrMsgInvalidTag        = "invalid tag"

	// Details
	ErrMsgTagExists           = "tag already exists"
	ErrMsgReservedName        = "name is a reserved bot command"
	ErrMsgMissingContentEmbed = "document has neither content nor embed"
	ErrMsgContentNotString    = "document content must be a string"
	ErrMsgEmbedNotDocument    = "document embed must be an object"
	ErrMsgEmbedDecode         = "document embed could not be decoded"
	ErrMsgFetchStatus         = "remote content returned non-success status"
	ErrMsgFetchTooLarge       = "remote content exceeds size limit"
	ErrMsgFetchBlockedAddress = "remote content host resolves to a non-public address"
	ErrMsgVariableExists      = "variable already registered"
	ErrMsgEmptyVariableToken  = "variable token cannot be empty"
	ErrMsgNilVariable         = "variable is nil"
	ErrMsgNilStorage          = "storage is nil"
	ErrMsgNilSender           = "sender is nil"
	ErrMsgNilService          = "tag service is nil"
	ErrMsgValidationFailed    = "tag input failed validation"
	ErrMsgInvalidConfig       = "invalid configuration"
	ErrMsgConfigRead          = "failed to read config file"
	ErrMsgConfigParse         = "failed to parse config file"
	ErrMsgMetricsRegister     = "failed to register metrics"
)

// Error codes for categorization
const (
	ErrCodeTag      = "TAGBOT_TAG"
	ErrCodeAuth     = "TAGBOT_AUTH"
	ErrCodeTemplate = "TAGBOT_TEMPLATE"
	ErrCodeFetch    = "TAGBOT_FETCH"
	ErrCodeRegistry = "TAGBOT_REGISTRY"
	ErrCodeConfig   = "TAGBOT_CONFIG"
)

// Sentinel errors for the user-visible taxonomy. The constructors below wrap
// them so callers can branch with errors.Is.
var (
	ErrNameConflict      = errors.New(ErrMsgNameConflict)
	ErrTagNotFound       = errors.New(ErrMsgTagNotFound)
	ErrForbidden         = errors.New(ErrMsgForbidden)
	ErrStillOwned        = errors.New(ErrMsgStillOwned)
	ErrMalformedTemplate = errors.New(ErrMsgMalformedTemplate)
	ErrFetchTimeout      = errors.New(ErrMsgFetchTimeout)
	ErrFetchFailure      = errors.New(ErrMsgFetchFailure)
	ErrInvalidTag        = errors.New(ErrMsgInvalidTag)
)

// NewTagExistsError reports a create that collides with an existing tag.
func NewTagExistsError(guildID, name string) error {
	return cuserr.WrapStdError(ErrNameConflict, ErrCodeTag, ErrMsgTagExists).
		WithMetadata(MetaKeyGuild, guildID).
		WithMetadata(MetaKeyTagName, name)
}

// NewReservedNameError reports a create whose name is a bot command.
func NewReservedNameError(name string) error {
	return cuserr.WrapStdError(ErrNameConflict, ErrCodeTag, ErrMsgReservedName).
		WithMetadata(MetaKeyTagName, name)
}

// NewTagNotFoundError reports an operation on an absent tag.
func NewTagNotFoundError(guildID, name string) error {
	return cuserr.WrapStdError(ErrTagNotFound, ErrCodeTag, ErrMsgTagNotFound).
		WithMetadata(MetaKeyGuild, guildID).
		WithMetadata(MetaKeyTagName, name)
}

// NewForbiddenError reports an edit or delete by someone who is neither the
// author nor elevated.
func NewForbiddenError(action, guildID, name, requester string) error {
	return cuserr.WrapStdError(ErrForbidden, ErrCodeAuth, ErrMsgForbidden).
		WithMetadata(MetaKeyAction, action).
		WithMetadata(MetaKeyGuild, guildID).
		WithMetadata(MetaKeyTagName, name).
		WithMetadata(MetaKeyRequester, requester)
}

// NewStillOwnedError reports a claim while the author is still a member.
func NewStillOwnedError(guildID, name, author string) error {
	return cuserr.WrapStdError(ErrStillOwned, ErrCodeAuth, ErrMsgStillOwned).
		WithMetadata(MetaKeyGuild, guildID).
		WithMetadata(MetaKeyTagName, name).
		WithMetadata(MetaKeyAuthor, author)
}

// NewMalformedTemplateError reports structured content that cannot be sent.
func NewMalformedTemplateError(reason string) error {
	return cuserr.WrapStdError(ErrMalformedTemplate, ErrCodeTemplate, ErrMsgMalformedTemplate).
		WithMetadata(MetaKeyReason, reason)
}

// NewFetchTimeoutError reports a remote content fetch that hit its deadline.
func NewFetchTimeoutError(url string) error {
	return cuserr.WrapStdError(ErrFetchTimeout, ErrCodeFetch, ErrMsgFetchTimeout).
		WithMetadata(MetaKeyURL, url)
}

// NewFetchFailureError reports any other remote content fetch failure.
func NewFetchFailureError(url, reason string) error {
	return cuserr.WrapStdError(ErrFetchFailure, ErrCodeFetch, ErrMsgFetchFailure).
		WithMetadata(MetaKeyURL, url).
		WithMetadata(MetaKeyReason, reason)
}

// NewInvalidTagError reports create/edit input that fails validation.
func NewInvalidTagError(field, reason string) error {
	return cuserr.WrapStdError(ErrInvalidTag, ErrCodeTag, ErrMsgValidationFailed).
		WithMetadata(MetaKeyField, field).
		WithMetadata(MetaKeyReason, reason)
}

// NewVariableExistsError reports a duplicate variable registration.
func NewVariableExistsError(token string) error {
	return cuserr.NewValidationError(ErrCodeRegistry, ErrMsgVariableExists).
		WithMetadata(MetaKeyToken, token)
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(field, reason string) error {
	return cuserr.NewValidationError(ErrCodeConfig, ErrMsgInvalidConfig).
		WithMetadata(MetaKeyField, field).
		WithMetadata(MetaKeyReason, reason)
}

// IsUserError reports whether err belongs to the user-visible taxonomy
// (as opposed to a storage or transport fault).
func IsUserError(err error) bool {
	return errors.Is(err, ErrNameConflict) ||
		errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrStillOwned) ||
		errors.Is(err, ErrFetchTimeout) ||
		errors.Is(err, ErrFetchFailure) ||
		errors.Is(err, ErrInvalidTag)
}

// metadataOf returns a metadata value from a cuserr error chain.
func metadataOf(err error, key string) string {
	var customErr *cuserr.CustomError
	if !errors.As(err, &customErr) {
		return ""
	}
	value, _ := customErr.GetMetadata(key)
	return value
}
