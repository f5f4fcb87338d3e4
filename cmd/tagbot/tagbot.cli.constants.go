package main

// Command names
const (
	CmdNameRoot    = "tagbot"
	CmdNameServe   = "serve"
	CmdNameRender  = "render"
	CmdNameTags    = "tags"
	CmdNameList    = "list"
	CmdNameInfo    = "info"
	CmdNameCreate  = "create"
	CmdNameVersion = "version"
)

// Flag names
const (
	FlagConfig        = "config"
	FlagConfigShort   = "c"
	FlagDriver        = "driver"
	FlagDSN           = "dsn"
	FlagAddr          = "addr"
	FlagGuild         = "guild"
	FlagGuildShort    = "g"
	FlagAuthor        = "author"
	FlagFormat        = "format"
	FlagFormatShort   = "F"
	FlagUserID        = "user-id"
	FlagUserName      = "user-name"
	FlagNick          = "nick"
	FlagDiscriminator = "discriminator"
	FlagAvatar        = "avatar"
	FlagServerID      = "server-id"
	FlagServerName    = "server-name"
	FlagMembers       = "members"
	FlagChannelID     = "channel-id"
	FlagMessageID     = "message-id"
	FlagInvite        = "invite"
)

// Flag default values
const (
	FlagDefaultFormat = "text"
	FlagDefaultUserID = "0"
	FlagDefaultUser   = "user"
	FlagDefaultServer = "server"
)

// Output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

// Exit codes
const (
	ExitCodeSuccess         = 0
	ExitCodeError           = 1
	ExitCodeUsageError      = 2
	ExitCodeValidationError = 3
	ExitCodeInputError      = 4
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Error messages - ALL must be constants
const (
	ErrMsgLoadConfig     = "failed to load config"
	ErrMsgBuildLogger    = "failed to build logger"
	ErrMsgOpenStorage    = "failed to open storage"
	ErrMsgBuildBot       = "failed to assemble bot"
	ErrMsgRegisterMetric = "failed to register metrics"
	ErrMsgServe          = "http server failed"
	ErrMsgReadFileFailed = "failed to read input"
	ErrMsgMalformed      = "tag content would not be sent"
	ErrMsgInvalidFormat  = "invalid format: must be 'text' or 'json'"
	ErrMsgListTags       = "failed to list tags"
	ErrMsgFindTag        = "failed to find tag"
	ErrMsgCreateTag      = "failed to create tag"
	ErrMsgFetchContent   = "failed to fetch tag content"
	ErrMsgMissingGuild   = "--guild is required"
	ErrMsgMissingAuthor  = "--author is required"
)

// Output formatting
const (
	FmtError          = "Error: %s\n"
	FmtErrorWithCause = "Error: %s: %v\n"
	FmtNewline        = "\n"
	FmtWarnUnknown    = "Warning: unknown placeholders left as written: %s\n"
	JSONIndent        = "  "
)

// Log messages
const (
	LogMsgServing      = "gateway listening"
	LogMsgShuttingDown = "shutting down"
	LogFieldAddr       = "addr"
	LogFieldDriver     = "driver"
)

// Version output
const (
	VersionUnknown      = "unknown"
	VersionTextTemplate = "tagbot %s\n  commit:  %s\n  branch:  %s\n  built:   %s\n  go:      %s"
	VersionsFile        = "versions.yaml"
)

// Help text
const (
	HelpShortRoot    = "Chat tag bot: reusable response templates for community servers"
	HelpShortServe   = "Run the HTTP gateway for a platform bridge"
	HelpShortRender  = "Expand tag content against a sample context"
	HelpShortTags    = "Inspect and seed stored tags"
	HelpShortList    = "List tag names in a guild"
	HelpShortInfo    = "Show one tag as JSON"
	HelpShortCreate  = "Create a tag (content may be a paste URL)"
	HelpShortVersion = "Print version information"
)
