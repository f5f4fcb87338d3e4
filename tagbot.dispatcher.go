package tagbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itsatony/go-tagbot/internal"
)

// Dispatcher turns inbound messages into tag invocations or commands.
//
// A message is considered only when it comes from a non-bot author and starts
// with the prefix. The first word after the prefix is either the command
// group (routed to Commands) or a tag name. Anything else is ignored.
type Dispatcher struct {
	service  *TagService
	engine   *Engine
	commands *Commands
	sender   Sender
	members  MemberDirectory
	guilds   GuildDirectory
	invites  InviteProvider
	metrics  *Metrics
	prefix   string
	groups   map[string]struct{}
	workers  int
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. commands may be nil to disable the
// management surface.
func NewDispatcher(service *TagService, engine *Engine, commands *Commands, sender Sender, opts ...Option) (*Dispatcher, error) {
	if service == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilService)
	}
	if sender == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilSender)
	}
	cfg := newBotConfig(opts)
	if engine == nil {
		engine = NewEngine(cfg.variables, cfg.logger)
	}
	return newDispatcher(service, engine, commands, sender, cfg), nil
}

func newDispatcher(service *TagService, engine *Engine, commands *Commands, sender Sender, cfg *botConfig) *Dispatcher {
	groups := make(map[string]struct{})
	for _, word := range cfg.groupWords() {
		groups[strings.ToLower(word)] = struct{}{}
	}

	return &Dispatcher{
		service:  service,
		engine:   engine,
		commands: commands,
		sender:   sender,
		members:  cfg.members,
		guilds:   cfg.guilds,
		invites:  cfg.invites,
		metrics:  cfg.metrics,
		prefix:   cfg.prefix,
		groups:   groups,
		workers:  cfg.workers,
		logger:   cfg.logger,
	}
}

// HandleMessage processes one message. A returned error is a backend or send
// fault for that message only; user-facing outcomes are replies.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Author.Bot {
		return nil
	}

	body, ok := strings.CutPrefix(msg.Content, d.prefix)
	if !ok || body == "" {
		return nil
	}
	if first, _ := utf8.DecodeRuneInString(body); unicode.IsSpace(first) {
		return nil
	}

	word, rest := internal.NextWord(body)
	if _, isGroup := d.groups[strings.ToLower(word)]; isGroup {
		if d.commands == nil {
			return nil
		}
		return d.commands.Handle(ctx, msg, rest)
	}
	return d.invoke(ctx, msg, word)
}

// invoke expands and sends the named tag, then counts the use.
func (d *Dispatcher) invoke(ctx context.Context, msg *Message, name string) error {
	rec, err := d.service.FindByName(ctx, msg.GuildID, name)
	if errors.Is(err, ErrTagNotFound) {
		return nil
	}
	if err != nil {
		d.logger.Error(LogMsgLookupFailed,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldTag, name),
			zap.Error(err))
		return err
	}

	vctx := d.buildContext(ctx, msg)

	start := time.Now()
	out := d.engine.Format(rec.Content, vctx)
	d.metrics.ObserveFormat(time.Since(start))

	if out == nil {
		d.metrics.ObserveInvocation(ResultSuppressed)
		d.logger.Debug(LogMsgTagSuppressed,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldTag, name))
		return nil
	}

	if err := d.sender.Send(ctx, msg, out); err != nil {
		d.metrics.ObserveInvocation(ResultSendFailed)
		d.logger.Warn(LogMsgSendFailed,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldChannel, msg.ChannelID),
			zap.String(LogFieldTag, name),
			zap.Error(err))
		return err
	}
	d.metrics.ObserveInvocation(ResultSent)

	uses, err := d.service.IncrementUses(ctx, msg.GuildID, name)
	if err != nil {
		d.logger.Warn(LogMsgIncrementFailed,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldTag, name),
			zap.Error(err))
		return err
	}

	d.logger.Debug(LogMsgTagInvoked,
		zap.String(LogFieldGuild, msg.GuildID),
		zap.String(LogFieldTag, name),
		zap.Int64(LogFieldUses, uses))
	return nil
}

// buildContext gathers the substitution context. Directory failures are
// logged and fall back to what the message itself carries.
func (d *Dispatcher) buildContext(ctx context.Context, msg *Message) *Context {
	member := msg.Author
	if d.members != nil {
		found, err := d.members.Member(ctx, msg.GuildID, msg.Author.ID)
		switch {
		case err != nil:
			d.logger.Warn(LogMsgMemberLookupFailed, zap.String(LogFieldAuthor, msg.Author.ID), zap.Error(err))
		case found != nil:
			member = *found
		}
	}

	guild := Guild{ID: msg.GuildID}
	if d.guilds != nil {
		found, err := d.guilds.Guild(ctx, msg.GuildID)
		switch {
		case err != nil:
			d.logger.Warn(LogMsgGuildLookupFailed, zap.String(LogFieldGuild, msg.GuildID), zap.Error(err))
		case found != nil:
			guild = *found
		}
	}

	invite := guild.Invite
	if d.invites != nil {
		link, err := d.invites.Invite(ctx, msg.GuildID)
		if err != nil {
			d.logger.Warn(LogMsgInviteFailed, zap.String(LogFieldGuild, msg.GuildID), zap.Error(err))
		} else if link != "" {
			invite = link
		}
	}

	return NewContext(member, *msg, guild, invite)
}

// Run consumes events until the channel closes or ctx is done, handling each
// message in its own goroutine with at most WithWorkers in flight. A failing
// or panicking message is logged and never affects the others. Run waits for
// in-flight messages before returning.
func (d *Dispatcher) Run(ctx context.Context, events <-chan *Message) error {
	var g errgroup.Group
	g.SetLimit(d.workers)

	d.logger.Info(LogMsgDispatcherStarted, zap.Int(LogFieldWorkers, d.workers))
	defer d.logger.Info(LogMsgDispatcherStopped)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				d.handleSafely(ctx, msg)
				return nil
			})
		}
	}
}

func (d *Dispatcher) handleSafely(ctx context.Context, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(LogMsgMessageFailed,
				zap.String(LogFieldMessage, msg.ID),
				zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := d.HandleMessage(ctx, msg); err != nil {
		d.logger.Error(LogMsgMessageFailed,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldMessage, msg.ID),
			zap.Error(err))
	}
}
