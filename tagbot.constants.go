package tagbot

import "time"

// Bot defaults
const (
	DefaultPrefix       = "!"
	DefaultCommandGroup = "tag"
	DefaultAcceptEmoji  = "✅"
	DefaultWorkers      = 16
	DefaultFetchTimeout = 10 * time.Second
	DefaultFetchMaxSize = 1 << 20 // 1MB
)

// CommandGroupAliases are additional words that route to the command surface.
var CommandGroupAliases = []string{"tags"}

// Tag constraints
const (
	MaxTagNameLength    = 64
	MaxTagContentLength = 4000
)

// Command names
const (
	CmdCreate = "create"
	CmdAdd    = "add"
	CmdEdit   = "edit"
	CmdDelete = "delete"
	CmdClaim  = "claim"
	CmdInfo   = "info"
	CmdList   = "list"
	CmdHelp   = "help"
)

// Structured document keys
const (
	DocKeyContent   = "content"
	DocKeyEmbed     = "embed"
	DocKeyTimestamp = "timestamp"
)

// Timezone designators stripped from timestamp values.
const (
	TimezoneDesignatorUpper = "Z"
	TimezoneDesignatorLower = "z"
)

// Built-in variable tokens
const (
	VarUser              = "user"
	VarUserName          = "user.name"
	VarUserUsername      = "user.username"
	VarUserDiscriminator = "user.discriminator"
	VarUserID            = "user.id"
	VarUserMention       = "user.mention"
	VarUserAvatar        = "user.avatar"
	VarInvite            = "invite"
	VarServer            = "server"
	VarServerName        = "server.name"
	VarServerID          = "server.id"
	VarServerMembers     = "server.members"
	VarChannel           = "channel"
	VarChannelMention    = "channel.mention"
	VarChannelID         = "channel.id"
	VarMessageID         = "message.id"
)

// Storage driver names
const (
	StorageDriverNameMemory   = "memory"
	StorageDriverNameBadger   = "badger"
	StorageDriverNamePostgres = "postgres"
	StorageDriverNameSQLite   = "sqlite"

	StorageDriverNameFilesystem = "filesystem"
)

// Filesystem storage constants
const (
	FilesystemDirPermissions  = 0o755
	FilesystemFilePermissions = 0o644
	FilesystemGuildSuffix     = ".json"
	FilesystemTempPattern     = ".tagbot-*"
)

// Badger storage constants
const (
	BadgerKeyPrefix     = "tag:"
	BadgerKeySeparator  = "\x00"
	BadgerMaxTxnRetries = 16
	InMemoryDSN         = ":memory:"
)

// SQL storage defaults
const (
	SQLTablePrefix            = "tagbot_"
	SQLDefaultMaxOpenConns    = 25
	SQLDefaultMaxIdleConns    = 5
	SQLDefaultConnMaxLifetime = 5 * time.Minute
	SQLDefaultQueryTimeout    = 30 * time.Second
	SQLiteDriverName          = "sqlite"
	PostgresDriverName        = "postgres"
)

// Cache defaults
const (
	DefaultCacheTTL         = 5 * time.Minute
	DefaultCacheMaxEntries  = 1000
	DefaultCacheNegativeTTL = 30 * time.Second
)

// Metric names and label values
const (
	MetricNamespace         = "tagbot"
	MetricInvocationsName   = "invocations_total"
	MetricCommandsName      = "commands_total"
	MetricFormatDuration    = "format_duration_seconds"
	MetricLabelResult       = "result"
	MetricLabelCommand      = "command"
	ResultSent              = "sent"
	ResultSuppressed        = "suppressed"
	ResultSendFailed        = "send_failed"
	ResultOK                = "ok"
	ResultRejected          = "rejected"
	ResultFailed            = "failed"
	MetricHelpInvocations   = "Tag invocations by outcome."
	MetricHelpCommands      = "Tag management commands by outcome."
	MetricHelpFormatSeconds = "Time spent formatting tag content."
)

// Metadata keys for cuserr.WithMetadata
const (
	MetaKeyGuild     = "guild_id"
	MetaKeyTagName   = "tag_name"
	MetaKeyRequester = "requester"
	MetaKeyAuthor    = "author"
	MetaKeyAction    = "action"
	MetaKeyReason    = "reason"
	MetaKeyField     = "field"
	MetaKeyURL       = "url"
	MetaKeyToken     = "token"
)

// Authorization actions
const (
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Log messages
const (
	LogMsgEngineCreated       = "engine created"
	LogMsgTemplateMalformed   = "structured tag content has neither content nor embed; send suppressed"
	LogMsgTagCreated          = "tag created"
	LogMsgTagEdited           = "tag edited"
	LogMsgTagDeleted          = "tag deleted"
	LogMsgTagClaimed          = "tag claimed"
	LogMsgTagInvoked          = "tag invoked"
	LogMsgTagSuppressed       = "tag invocation suppressed"
	LogMsgSendFailed          = "failed to send message"
	LogMsgIncrementFailed     = "failed to increment tag uses"
	LogMsgLookupFailed        = "tag lookup failed"
	LogMsgInviteFailed        = "invite lookup failed"
	LogMsgMemberLookupFailed  = "member lookup failed"
	LogMsgGuildLookupFailed   = "guild lookup failed"
	LogMsgCommandFailed       = "tag command failed"
	LogMsgMessageFailed       = "message handling failed"
	LogMsgDispatcherStarted   = "dispatcher started"
	LogMsgDispatcherStopped   = "dispatcher stopped"
	LogMsgFetchStarted        = "fetching remote tag content"
	LogMsgCacheHit            = "tag cache hit"
	LogMsgCacheInvalidated    = "tag cache entry invalidated"
	LogMsgGatewayBadRequest   = "gateway rejected request"
	LogMsgGatewayStorageError = "gateway storage error"
	LogMsgHTTPRequest         = "http request"
)

// Log fields
const (
	LogFieldGuild     = "guild_id"
	LogFieldChannel   = "channel_id"
	LogFieldMessage   = "message_id"
	LogFieldTag       = "tag"
	LogFieldAuthor    = "author"
	LogFieldRequester = "requester"
	LogFieldCommand   = "command"
	LogFieldURL       = "url"
	LogFieldUses      = "uses"
	LogFieldWorkers   = "workers"
	LogFieldPath      = "path"
	LogFieldVariables = "variables"
	LogFieldReason    = "reason"
	LogFieldMethod    = "method"
	LogFieldStatus    = "status"
	LogFieldDuration  = "duration"
	LogFieldRequestID = "request_id"
)
