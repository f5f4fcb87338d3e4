package tagbot

import "context"

// Sender transmits a rendered message to the channel a trigger came from.
// It is the chat platform boundary; the core never talks to the platform directly.
type Sender interface {
	Send(ctx context.Context, to *Message, msg *RenderableMessage) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to *Message, msg *RenderableMessage) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to *Message, msg *RenderableMessage) error {
	return f(ctx, to, msg)
}

// PermissionChecker answers whether a user holds elevated
// (manage-server-equivalent) privilege within a guild.
type PermissionChecker interface {
	IsElevated(ctx context.Context, guildID, userID string) (bool, error)
}

// MemberDirectory looks up users and guild membership.
type MemberDirectory interface {
	// Member returns the guild member, or nil when the user is not a member.
	Member(ctx context.Context, guildID, userID string) (*Member, error)

	// User returns any known user regardless of membership, or nil.
	User(ctx context.Context, userID string) (*Member, error)

	// IsMember reports whether the user currently belongs to the guild. It
	// returns false only when the user is known to have left.
	IsMember(ctx context.Context, guildID, userID string) (bool, error)
}

// GuildDirectory looks up guild metadata. A nil result means unknown.
type GuildDirectory interface {
	Guild(ctx context.Context, guildID string) (*Guild, error)
}

// InviteProvider returns an invite link for a guild, or "" when there is none.
type InviteProvider interface {
	Invite(ctx context.Context, guildID string) (string, error)
}

// noElevation is the PermissionChecker used when none is configured:
// only authors may modify their tags.
type noElevation struct{}

func (noElevation) IsElevated(context.Context, string, string) (bool, error) {
	return false, nil
}
