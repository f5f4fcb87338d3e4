// Package tagbot is the core of a chat bot that lets guild members define
// named, reusable response templates ("tags") and expands them on demand.
//
// Tags are either plain text or a JSON object document with "content" and/or
// "embed" keys. Both may contain single-brace placeholders that are resolved
// against the invoking member, message, guild and invite link:
//
//	Welcome {user.mention} to {server}! Invite friends: {invite}
//
// # Basic Usage
//
// Assemble a bot over a storage backend and a Sender for the chat platform:
//
//	roster := tagbot.NewRoster()
//	bot, err := tagbot.New(tagbot.NewMemoryStorage(), sender,
//	    tagbot.WithRoster(roster),
//	    tagbot.WithLogger(logger),
//	)
//	// for every inbound message:
//	err = bot.HandleMessage(ctx, msg)
//
// "!tag create hello Hi {user.name}" stores a tag; "!hello" expands and sends it.
//
// # Storage
//
// Backends register themselves by driver name: memory, badger, postgres and
// sqlite. Any backend can be wrapped in a CachedStorage.
//
//	storage, err := tagbot.OpenStorage("sqlite", "/var/lib/tagbot/tags.db")
//
// # Custom Variables
//
// The variable registry is open for extension:
//
//	vars := tagbot.DefaultVariables()
//	vars.MustRegister(tagbot.NewVariableFunc("server.region", func(c *tagbot.Context) string {
//	    return regionOf(c.Guild.ID)
//	}))
//	bot, _ := tagbot.New(storage, sender, tagbot.WithVariables(vars))
package tagbot

import (
	"context"

	"github.com/itsatony/go-cuserr"
)

// Bot wires the service, engine, command surface and dispatcher together
// over one storage and one sender.
type Bot struct {
	service    *TagService
	engine     *Engine
	commands   *Commands
	dispatcher *Dispatcher
	storage    TagStorage
}

// New assembles a bot. The bot owns storage and closes it on Close.
func New(storage TagStorage, sender Sender, opts ...Option) (*Bot, error) {
	if storage == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilStorage)
	}
	if sender == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilSender)
	}

	cfg := newBotConfig(opts)
	service := newTagService(storage, cfg)
	engine := NewEngine(cfg.variables, cfg.logger)
	commands := newCommands(service, sender, cfg)

	return &Bot{
		service:    service,
		engine:     engine,
		commands:   commands,
		dispatcher: newDispatcher(service, engine, commands, sender, cfg),
		storage:    storage,
	}, nil
}

// Service returns the tag service.
func (b *Bot) Service() *TagService { return b.service }

// Engine returns the substitution engine.
func (b *Bot) Engine() *Engine { return b.engine }

// Commands returns the command surface.
func (b *Bot) Commands() *Commands { return b.commands }

// Dispatcher returns the dispatcher.
func (b *Bot) Dispatcher() *Dispatcher { return b.dispatcher }

// HandleMessage processes one inbound message.
func (b *Bot) HandleMessage(ctx context.Context, msg *Message) error {
	return b.dispatcher.HandleMessage(ctx, msg)
}

// Run processes events until the channel closes or ctx is done.
func (b *Bot) Run(ctx context.Context, events <-chan *Message) error {
	return b.dispatcher.Run(ctx, events)
}

// Close releases the storage.
func (b *Bot) Close() error {
	return b.storage.Close()
}
