package tagbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"

	"github.com/itsatony/go-tagbot/internal"
)

// Reply texts
const (
	ReplyReservedName   = "Name is already a pre-existing bot command"
	ReplyTagExists      = ":x: | Tag `%s` already exists"
	ReplyEdited         = ":white_check_mark: | Tag `%s` is updated successfully!"
	ReplyDeleted        = ":white_check_mark: | Tag `%s` has been deleted successfully!"
	ReplyClaimed        = ":white_check_mark: | Tag `%s` is now owned by `%s`"
	ReplyStillOwned     = ":x: | The owner of the tag is still in the server `%s`"
	ReplyNotFound       = ":x: | Tag `%s` not found."
	ReplyForbidden      = "You don't have enough permissions to %s that tag"
	ReplyInvalid        = ":x: | Tag %s %s"
	ReplyFetchTimeout   = ":x: | Timed out fetching the tag content."
	ReplyFetchFailure   = ":x: | Could not fetch the tag content."
	ReplyInternalError  = ":x: | Something went wrong, please try again later."
	ReplyUsage          = ":x: | Usage: `%s%s %s`"
	ReplyNoTags         = "No tags yet."
	ReplyInfoTitle      = "%s's Info"
	ReplyListTitle      = "Tags"
	ReplyHelpTitle      = "Create, edit & manage tags"
	InfoFieldCreatedBy  = "Created By"
	InfoFieldCreatedAt  = "Created At"
	InfoFieldModifiedAt = "Last Modified At"
	InfoFieldUses       = "Uses"
	InfoTimeLayout      = "2006-01-02 15:04:05 MST"
)

// Usage strings per command.
var commandUsage = map[string]string{
	CmdCreate: "create <name> <content>",
	CmdEdit:   "edit <name> <content>",
	CmdDelete: "delete <name>",
	CmdClaim:  "claim <name>",
	CmdInfo:   "info <name>",
	CmdList:   "list",
}

// commandOrder is the order commands appear in help.
var commandOrder = []string{CmdCreate, CmdEdit, CmdDelete, CmdClaim, CmdInfo, CmdList}

// Commands is the tag management surface: create, edit, delete, claim, info
// and list. Each call maps to one TagService operation and sends exactly one
// reply.
type Commands struct {
	service      *TagService
	sender       Sender
	fetcher      ContentFetcher
	members      MemberDirectory
	metrics      *Metrics
	prefix       string
	commandGroup string
	acceptEmoji  string
	logger       *zap.Logger
}

// NewCommands creates the command surface.
func NewCommands(service *TagService, sender Sender, opts ...Option) (*Commands, error) {
	if service == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilService)
	}
	if sender == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilSender)
	}
	return newCommands(service, sender, newBotConfig(opts)), nil
}

func newCommands(service *TagService, sender Sender, cfg *botConfig) *Commands {
	return &Commands{
		service:      service,
		sender:       sender,
		fetcher:      cfg.fetcher,
		members:      cfg.members,
		metrics:      cfg.metrics,
		prefix:       cfg.prefix,
		commandGroup: cfg.commandGroup,
		acceptEmoji:  cfg.acceptEmoji,
		logger:       cfg.logger,
	}
}

// Handle runs the command in args (the text after the command group word)
// on behalf of msg's author. User-facing failures become the reply and are
// not returned; the returned error is a send or backend fault.
func (c *Commands) Handle(ctx context.Context, msg *Message, args string) error {
	sub, rest := internal.NextWord(args)
	sub = strings.ToLower(sub)
	if sub == CmdAdd {
		sub = CmdCreate
	}

	var (
		reply *RenderableMessage
		err   error
	)
	switch sub {
	case CmdCreate:
		reply, err = c.create(ctx, msg, rest)
	case CmdEdit:
		reply, err = c.edit(ctx, msg, rest)
	case CmdDelete:
		reply, err = c.delete(ctx, msg, rest)
	case CmdClaim:
		reply, err = c.claim(ctx, msg, rest)
	case CmdInfo:
		reply, err = c.info(ctx, msg, rest)
	case CmdList:
		reply, err = c.list(ctx, msg)
	default:
		sub = CmdHelp
		reply = c.help()
	}

	result := ResultOK
	if err != nil {
		if text, ok := c.userReply(ctx, sub, err); ok {
			reply = TextMessage(text)
			result = ResultRejected
			err = nil
		} else {
			reply = TextMessage(ReplyInternalError)
			result = ResultFailed
		}
	}
	c.metrics.ObserveCommand(sub, result)

	if sendErr := c.sender.Send(ctx, msg, reply); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (c *Commands) create(ctx context.Context, msg *Message, args string) (*RenderableMessage, error) {
	name, content := internal.NextWord(args)
	if name == "" || content == "" {
		return c.usage(CmdCreate), nil
	}
	if c.service.IsReserved(name) {
		return nil, NewReservedNameError(name)
	}

	if IsRemoteContent(content) {
		c.logger.Debug(LogMsgFetchStarted,
			zap.String(LogFieldGuild, msg.GuildID),
			zap.String(LogFieldTag, name),
			zap.String(LogFieldURL, content))
		fetched, err := c.fetcher.Fetch(ctx, content)
		if err != nil {
			return nil, err
		}
		content = fetched
	}

	if _, err := c.service.Create(ctx, msg.GuildID, name, content, msg.Author.ID); err != nil {
		return nil, err
	}
	return TextMessage(c.acceptEmoji), nil
}

func (c *Commands) edit(ctx context.Context, msg *Message, args string) (*RenderableMessage, error) {
	name, content := internal.NextWord(args)
	if name == "" || content == "" {
		return c.usage(CmdEdit), nil
	}
	if _, err := c.service.Edit(ctx, msg.GuildID, name, content, msg.Author.ID); err != nil {
		return nil, err
	}
	return TextMessage(fmt.Sprintf(ReplyEdited, name)), nil
}

func (c *Commands) delete(ctx context.Context, msg *Message, args string) (*RenderableMessage, error) {
	name, _ := internal.NextWord(args)
	if name == "" {
		return c.usage(CmdDelete), nil
	}
	if err := c.service.Delete(ctx, msg.GuildID, name, msg.Author.ID); err != nil {
		return nil, err
	}
	return TextMessage(fmt.Sprintf(ReplyDeleted, name)), nil
}

func (c *Commands) claim(ctx context.Context, msg *Message, args string) (*RenderableMessage, error) {
	name, _ := internal.NextWord(args)
	if name == "" {
		return c.usage(CmdClaim), nil
	}

	rec, err := c.service.FindByName(ctx, msg.GuildID, name)
	if err != nil {
		return nil, err
	}
	stillMember, err := c.isMember(ctx, msg.GuildID, rec.Author)
	if err != nil {
		return nil, err
	}
	if _, err := c.service.Claim(ctx, msg.GuildID, name, msg.Author.ID, stillMember); err != nil {
		return nil, err
	}
	return TextMessage(fmt.Sprintf(ReplyClaimed, name, msg.Author.Tag())), nil
}

func (c *Commands) info(ctx context.Context, msg *Message, args string) (*RenderableMessage, error) {
	name, _ := internal.NextWord(args)
	if name == "" {
		return c.usage(CmdInfo), nil
	}

	rec, err := c.service.FindByName(ctx, msg.GuildID, name)
	if err != nil {
		return nil, err
	}

	embed := &Embed{
		Title: fmt.Sprintf(ReplyInfoTitle, rec.Name),
		Color: ColorGreen,
	}
	embed.AddField(InfoFieldCreatedBy, c.displayUser(ctx, rec.Author), true).
		AddField(InfoFieldCreatedAt, rec.CreatedAt.UTC().Format(InfoTimeLayout), true).
		AddField(InfoFieldModifiedAt, rec.UpdatedAt.UTC().Format(InfoTimeLayout), false).
		AddField(InfoFieldUses, strconv.FormatInt(rec.Uses, 10), false)
	return EmbedMessage(embed), nil
}

func (c *Commands) list(ctx context.Context, msg *Message) (*RenderableMessage, error) {
	names, err := c.service.List(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return TextMessage(ReplyNoTags), nil
	}

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "`" + name + "`"
	}
	return EmbedMessage(&Embed{
		Title:       ReplyListTitle,
		Description: strings.Join(quoted, ", "),
		Color:       ColorGreen,
	}), nil
}

func (c *Commands) help() *RenderableMessage {
	var b strings.Builder
	for _, cmd := range commandOrder {
		b.WriteString("`")
		b.WriteString(c.prefix + c.commandGroup + " " + commandUsage[cmd])
		b.WriteString("`\n")
	}
	return EmbedMessage(&Embed{
		Title:       ReplyHelpTitle,
		Description: strings.TrimSuffix(b.String(), "\n"),
		Color:       ColorGreen,
	})
}

func (c *Commands) usage(cmd string) *RenderableMessage {
	return TextMessage(fmt.Sprintf(ReplyUsage, c.prefix, c.commandGroup, commandUsage[cmd]))
}

// userReply maps a taxonomy error to its reply text. ok is false for faults
// the user cannot act on.
func (c *Commands) userReply(ctx context.Context, cmd string, err error) (string, bool) {
	name := metadataOf(err, MetaKeyTagName)

	switch {
	case errors.Is(err, ErrNameConflict):
		if c.service.IsReserved(name) {
			return ReplyReservedName, true
		}
		return fmt.Sprintf(ReplyTagExists, name), true
	case errors.Is(err, ErrTagNotFound):
		return fmt.Sprintf(ReplyNotFound, name), true
	case errors.Is(err, ErrForbidden):
		return fmt.Sprintf(ReplyForbidden, metadataOf(err, MetaKeyAction)), true
	case errors.Is(err, ErrStillOwned):
		return fmt.Sprintf(ReplyStillOwned, c.displayUser(ctx, metadataOf(err, MetaKeyAuthor))), true
	case errors.Is(err, ErrInvalidTag):
		return fmt.Sprintf(ReplyInvalid, metadataOf(err, MetaKeyField), metadataOf(err, MetaKeyReason)), true
	case errors.Is(err, ErrFetchTimeout):
		return ReplyFetchTimeout, true
	case errors.Is(err, ErrFetchFailure):
		return ReplyFetchFailure, true
	}

	c.logger.Error(LogMsgCommandFailed, zap.String(LogFieldCommand, cmd), zap.Error(err))
	return "", false
}

// isMember reports whether userID still belongs to the guild. Without a
// directory membership cannot be disproved, so claims are refused.
func (c *Commands) isMember(ctx context.Context, guildID, userID string) (bool, error) {
	if c.members == nil {
		return true, nil
	}
	return c.members.IsMember(ctx, guildID, userID)
}

// displayUser renders a user ID as "name#discriminator" when known.
func (c *Commands) displayUser(ctx context.Context, userID string) string {
	if c.members == nil {
		return userID
	}
	user, err := c.members.User(ctx, userID)
	if err != nil {
		c.logger.Warn(LogMsgMemberLookupFailed, zap.String(LogFieldAuthor, userID), zap.Error(err))
		return userID
	}
	if user == nil {
		return userID
	}
	return user.Tag()
}
