package tagbot

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/itsatony/go-cuserr"
	"go.uber.org/zap"

	"github.com/itsatony/go-tagbot/internal"
)

const validateTagName = "tagname"

// TagService enforces the tag lifecycle rules (uniqueness, reserved names,
// ownership) on top of a TagStorage.
type TagService struct {
	storage     TagStorage
	permissions PermissionChecker
	validate    *validator.Validate
	reserved    map[string]struct{}
	clock       func() time.Time
	logger      *zap.Logger
}

type createInput struct {
	GuildID string `json:"guild_id" validate:"required"`
	Name    string `json:"name" validate:"required,max=64,tagname"`
	Content string `json:"content" validate:"required,max=4000"`
	Author  string `json:"author" validate:"required"`
}

type editInput struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// NewTagService creates a service over storage. Relevant options are
// WithPermissions, WithReservedNames, WithCommandGroup, WithClock and WithLogger.
func NewTagService(storage TagStorage, opts ...Option) (*TagService, error) {
	if storage == nil {
		return nil, cuserr.NewValidationError(ErrCodeTag, ErrMsgNilStorage)
	}
	return newTagService(storage, newBotConfig(opts)), nil
}

func newTagService(storage TagStorage, cfg *botConfig) *TagService {
	reserved := make(map[string]struct{})
	for _, name := range append(cfg.groupWords(), CmdHelp) {
		reserved[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range cfg.reservedNames {
		reserved[strings.ToLower(name)] = struct{}{}
	}

	return &TagService{
		storage:     storage,
		permissions: cfg.permissions,
		validate:    newTagValidator(),
		reserved:    reserved,
		clock:       cfg.clock,
		logger:      cfg.logger,
	}
}

func newTagValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Names are a single word; invocation splits on whitespace.
	_ = v.RegisterValidation(validateTagName, func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
	})

	return v
}

// IsReserved reports whether name collides with a bot command.
func (s *TagService) IsReserved(name string) bool {
	_, ok := s.reserved[strings.ToLower(name)]
	return ok
}

// Create stores a new tag with zero uses. It fails with ErrNameConflict when
// the name is reserved or already taken in the guild, and with ErrInvalidTag
// when the input does not validate.
func (s *TagService) Create(ctx context.Context, guildID, name, content, author string) (*TagRecord, error) {
	if err := s.check(createInput{GuildID: guildID, Name: name, Content: content, Author: author}); err != nil {
		return nil, err
	}
	if s.IsReserved(name) {
		return nil, NewReservedNameError(name)
	}

	id, err := internal.NewTagID()
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	rec := &TagRecord{
		ID:        id,
		GuildID:   guildID,
		Name:      name,
		Content:   content,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info(LogMsgTagCreated,
		zap.String(LogFieldGuild, guildID),
		zap.String(LogFieldTag, name),
		zap.String(LogFieldAuthor, author))
	return copyTagRecord(rec), nil
}

// FindByName returns the tag or an ErrTagNotFound error.
func (s *TagService) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	return s.storage.FindByName(ctx, guildID, name)
}

// Edit replaces the content of a tag the requester owns or may moderate.
func (s *TagService) Edit(ctx context.Context, guildID, name, content, requester string) (*TagRecord, error) {
	if err := s.check(editInput{Content: content}); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, ActionEdit, guildID, name, requester); err != nil {
		return nil, err
	}

	rec, err := s.storage.UpdateContent(ctx, guildID, name, content, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info(LogMsgTagEdited,
		zap.String(LogFieldGuild, guildID),
		zap.String(LogFieldTag, name),
		zap.String(LogFieldRequester, requester))
	return rec, nil
}

// Delete removes a tag the requester owns or may moderate.
func (s *TagService) Delete(ctx context.Context, guildID, name, requester string) error {
	if err := s.authorize(ctx, ActionDelete, guildID, name, requester); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, guildID, name); err != nil {
		return err
	}

	s.logger.Info(LogMsgTagDeleted,
		zap.String(LogFieldGuild, guildID),
		zap.String(LogFieldTag, name),
		zap.String(LogFieldRequester, requester))
	return nil
}

// Claim transfers ownership to requester. It fails with ErrStillOwned while
// the current author is still a member of the guild.
func (s *TagService) Claim(ctx context.Context, guildID, name, requester string, isAuthorStillMember bool) (*TagRecord, error) {
	rec, err := s.storage.FindByName(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	if isAuthorStillMember {
		return nil, NewStillOwnedError(guildID, name, rec.Author)
	}

	rec, err = s.storage.UpdateAuthor(ctx, guildID, name, requester, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info(LogMsgTagClaimed,
		zap.String(LogFieldGuild, guildID),
		zap.String(LogFieldTag, name),
		zap.String(LogFieldRequester, requester))
	return rec, nil
}

// IncrementUses atomically adds one to the tag's use counter.
func (s *TagService) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	return s.storage.IncrementUses(ctx, guildID, name)
}

// List returns the names of all tags in the guild, sorted.
func (s *TagService) List(ctx context.Context, guildID string) ([]string, error) {
	records, err := s.storage.List(ctx, guildID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.Name
	}
	return names, nil
}

// authorize loads the tag and checks the requester is its author or elevated.
func (s *TagService) authorize(ctx context.Context, action, guildID, name, requester string) error {
	rec, err := s.storage.FindByName(ctx, guildID, name)
	if err != nil {
		return err
	}
	if rec.Author == requester {
		return nil
	}

	elevated, err := s.permissions.IsElevated(ctx, guildID, requester)
	if err != nil {
		return err
	}
	if !elevated {
		return NewForbiddenError(action, guildID, name, requester)
	}
	return nil
}

// check runs struct validation and reports the first failing field.
func (s *TagService) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}
	fe := validationErrs[0]
	return NewInvalidTagError(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	case validateTagName:
		return "must be a single word"
	default:
		return "is invalid"
	}
}
