package tagbot

import (
	"bytes"
	"errors"
	"io"
	"os"
	"slices"
	"time"

	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config defaults for the service process
const (
	DefaultHTTPAddr        = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	LogFormatJSON          = "json"
	LogFormatConsole       = "console"
	DefaultLogMaxSizeMB    = 100
	DefaultLogMaxBackups   = 3
	DefaultLogMaxAgeDays   = 28
)

// Config is the service process configuration, usually loaded from YAML.
type Config struct {
	Bot     BotSettings     `yaml:"bot"`
	Storage StorageSettings `yaml:"storage"`
	HTTP    HTTPSettings    `yaml:"http"`
	Log     LogSettings     `yaml:"log"`
	Fetch   FetchSettings   `yaml:"fetch"`
}

// BotSettings maps onto the functional options of New.
type BotSettings struct {
	Prefix        string   `yaml:"prefix"`
	CommandGroup  string   `yaml:"command_group"`
	GroupAliases  []string `yaml:"group_aliases"`
	ReservedNames []string `yaml:"reserved_names"`
	AcceptEmoji   string   `yaml:"accept_emoji"`
	Workers       int      `yaml:"workers"`
}

// StorageSettings selects the backend.
type StorageSettings struct {
	Driver string        `yaml:"driver"`
	DSN    string        `yaml:"dsn"`
	Cache  CacheSettings `yaml:"cache"`
}

// CacheSettings configures the optional CachedStorage wrapper.
type CacheSettings struct {
	Enabled     bool          `yaml:"enabled"`
	TTL         time.Duration `yaml:"ttl"`
	MaxEntries  int           `yaml:"max_entries"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
}

// HTTPSettings configures the gateway listener.
type HTTPSettings struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	Metrics         bool          `yaml:"metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogSettings configures the zap logger. File enables rotation.
type LogSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// FetchSettings bounds remote content retrieval on create.
type FetchSettings struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxSize      int64         `yaml:"max_size"`
	AllowPrivate bool          `yaml:"allow_private"`
}

// NewFetcher builds the HTTPFetcher these settings describe.
func (s FetchSettings) NewFetcher() *HTTPFetcher {
	f := NewHTTPFetcher(s.Timeout, s.MaxSize)
	if s.AllowPrivate {
		f.AllowPrivateNetworks()
	}
	return f
}

// DefaultConfig returns a configuration that runs with in-memory storage.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotSettings{
			Prefix:       DefaultPrefix,
			CommandGroup: DefaultCommandGroup,
			GroupAliases: append([]string(nil), CommandGroupAliases...),
			AcceptEmoji:  DefaultAcceptEmoji,
			Workers:      DefaultWorkers,
		},
		Storage: StorageSettings{
			Driver: StorageDriverNameMemory,
			Cache: CacheSettings{
				TTL:         DefaultCacheTTL,
				MaxEntries:  DefaultCacheMaxEntries,
				NegativeTTL: DefaultCacheNegativeTTL,
			},
		},
		HTTP: HTTPSettings{
			Addr:            DefaultHTTPAddr,
			Metrics:         true,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Log: LogSettings{
			Level:      DefaultLogLevel,
			Format:     LogFormatJSON,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Fetch: FetchSettings{
			Timeout: DefaultFetchTimeout,
			MaxSize: DefaultFetchMaxSize,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cuserr.WrapStdError(err, ErrCodeConfig, ErrMsgConfigRead).
			WithMetadata(MetaKeyField, path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, cuserr.WrapStdError(err, ErrCodeConfig, ErrMsgConfigParse)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the process cannot run with.
func (c *Config) Validate() error {
	if c.Bot.Prefix == "" {
		return NewConfigError("bot.prefix", "must not be empty")
	}
	if c.Bot.CommandGroup == "" {
		return NewConfigError("bot.command_group", "must not be empty")
	}
	if c.Bot.Workers <= 0 {
		return NewConfigError("bot.workers", "must be positive")
	}
	if !slices.Contains(ListStorageDrivers(), c.Storage.Driver) {
		return NewConfigError("storage.driver", "unknown driver "+c.Storage.Driver)
	}
	if c.Storage.Cache.Enabled && c.Storage.Cache.TTL <= 0 {
		return NewConfigError("storage.cache.ttl", "must be positive")
	}
	if c.Log.Format != LogFormatJSON && c.Log.Format != LogFormatConsole {
		return NewConfigError("log.format", "must be json or console")
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return NewConfigError("log.level", err.Error())
	}
	if c.Fetch.Timeout <= 0 {
		return NewConfigError("fetch.timeout", "must be positive")
	}
	return nil
}

// Options converts the bot and fetch sections into functional options.
func (c *Config) Options() []Option {
	return []Option{
		WithPrefix(c.Bot.Prefix),
		WithCommandGroup(c.Bot.CommandGroup, c.Bot.GroupAliases...),
		WithReservedNames(c.Bot.ReservedNames...),
		WithAcceptEmoji(c.Bot.AcceptEmoji),
		WithWorkers(c.Bot.Workers),
		WithFetcher(c.Fetch.NewFetcher()),
	}
}

// OpenStorage opens the configured backend, wrapped in a cache when enabled.
func (c *Config) OpenStorage(logger *zap.Logger) (TagStorage, error) {
	storage, err := OpenStorage(c.Storage.Driver, c.Storage.DSN)
	if err != nil {
		return nil, err
	}
	if !c.Storage.Cache.Enabled {
		return storage, nil
	}
	return NewCachedStorage(storage, CacheConfig{
		TTL:         c.Storage.Cache.TTL,
		MaxEntries:  c.Storage.Cache.MaxEntries,
		NegativeTTL: c.Storage.Cache.NegativeTTL,
	}, logger), nil
}
