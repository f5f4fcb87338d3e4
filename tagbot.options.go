package tagbot

import (
	"time"

	"go.uber.org/zap"
)

// Option is a functional option for configuring a Bot and its parts.
type Option func(*botConfig)

// botConfig holds the explicit configuration shared by the service, the
// command surface and the dispatcher.
type botConfig struct {
	logger        *zap.Logger
	prefix        string
	commandGroup  string
	groupAliases  []string
	reservedNames []string
	acceptEmoji   string
	workers       int
	metrics       *Metrics
	clock         func() time.Time
	fetcher       ContentFetcher
	variables     *VariableRegistry
	permissions   PermissionChecker
	members       MemberDirectory
	guilds        GuildDirectory
	invites       InviteProvider
}

// defaultBotConfig returns the default configuration.
func defaultBotConfig() *botConfig {
	return &botConfig{
		prefix:       DefaultPrefix,
		commandGroup: DefaultCommandGroup,
		groupAliases: append([]string(nil), CommandGroupAliases...),
		acceptEmoji:  DefaultAcceptEmoji,
		workers:      DefaultWorkers,
		clock:        time.Now,
	}
}

// newBotConfig applies opts over the defaults and fills nil collaborators.
func newBotConfig(opts []Option) *botConfig {
	cfg := defaultBotConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.permissions == nil {
		cfg.permissions = noElevation{}
	}
	if cfg.fetcher == nil {
		cfg.fetcher = NewHTTPFetcher(DefaultFetchTimeout, DefaultFetchMaxSize)
	}
	return cfg
}

// groupWords returns the command group followed by its aliases.
func (c *botConfig) groupWords() []string {
	return append([]string{c.commandGroup}, c.groupAliases...)
}

// WithLogger sets the logger.
// Default: nil (no logging)
func WithLogger(logger *zap.Logger) Option {
	return func(c *botConfig) {
		c.logger = logger
	}
}

// WithPrefix sets the invocation prefix.
// Default: "!"
func WithPrefix(prefix string) Option {
	return func(c *botConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCommandGroup sets the word that routes to the command surface and
// replaces its aliases.
// Default: "tag" with alias "tags"
func WithCommandGroup(name string, aliases ...string) Option {
	return func(c *botConfig) {
		if name != "" {
			c.commandGroup = name
		}
		c.groupAliases = append([]string(nil), aliases...)
	}
}

// WithReservedNames adds names tags may not take, typically the host bot's
// other commands. The command group, its aliases and "help" are always reserved.
func WithReservedNames(names ...string) Option {
	return func(c *botConfig) {
		c.reservedNames = append(c.reservedNames, names...)
	}
}

// WithAcceptEmoji sets the reply for a successful create.
// Default: "✅"
func WithAcceptEmoji(emoji string) Option {
	return func(c *botConfig) {
		if emoji != "" {
			c.acceptEmoji = emoji
		}
	}
}

// WithWorkers bounds how many messages Dispatcher.Run handles at once.
// Default: 16
func WithWorkers(n int) Option {
	return func(c *botConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *botConfig) {
		c.metrics = m
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *botConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithFetcher sets the remote content fetcher used by create.
// Default: an HTTPFetcher with a 10s timeout.
func WithFetcher(f ContentFetcher) Option {
	return func(c *botConfig) {
		c.fetcher = f
	}
}

// WithVariables sets the variable registry used by the engine.
// Default: DefaultVariables()
func WithVariables(r *VariableRegistry) Option {
	return func(c *botConfig) {
		c.variables = r
	}
}

// WithPermissions sets the elevated-privilege check for edit and delete.
// Default: nobody is elevated.
func WithPermissions(p PermissionChecker) Option {
	return func(c *botConfig) {
		c.permissions = p
	}
}

// WithMembers sets the member directory.
func WithMembers(m MemberDirectory) Option {
	return func(c *botConfig) {
		c.members = m
	}
}

// WithGuilds sets the guild directory.
func WithGuilds(g GuildDirectory) Option {
	return func(c *botConfig) {
		c.guilds = g
	}
}

// WithInvites sets the invite provider.
func WithInvites(i InviteProvider) Option {
	return func(c *botConfig) {
		c.invites = i
	}
}

// WithRoster uses r for permissions, members, guilds and invites.
func WithRoster(r *Roster) Option {
	return func(c *botConfig) {
		c.permissions = r
		c.members = r
		c.guilds = r
		c.invites = r
	}
}
