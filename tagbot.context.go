package tagbot

import "strings"

// Member is a user as seen inside one guild.
type Member struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Nick          string `json:"nick,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Bot           bool   `json:"bot,omitempty"`

	// Elevated is true for members holding manage-server-equivalent privilege.
	Elevated bool `json:"elevated,omitempty"`
}

// DisplayName returns the nickname, falling back to the username.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.Username
}

// Tag returns "name#discriminator", or just the name for accounts without one.
func (m Member) Tag() string {
	if m.Discriminator == "" || m.Discriminator == "0" {
		return m.Username
	}
	return m.Username + "#" + m.Discriminator
}

// Mention returns the platform mention markup for the member.
func (m Member) Mention() string {
	return "<@" + m.ID + ">"
}

// Guild is the scope tags live in.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count,omitempty"`
	Invite      string `json:"invite,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	ID        string `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    Member `json:"author"`
}

// ChannelMention returns the platform mention markup for the message's channel.
func (m Message) ChannelMention() string {
	return "<#" + m.ChannelID + ">"
}

// Context is everything a variable may read while a tag is expanded.
// It is a value snapshot; resolution never mutates it.
type Context struct {
	Member  Member
	Message Message
	Guild   Guild
	Invite  string
}

// NewContext creates a substitution context.
func NewContext(member Member, msg Message, guild Guild, invite string) *Context {
	if guild.ID == "" {
		guild.ID = msg.GuildID
	}
	return &Context{
		Member:  member,
		Message: msg,
		Guild:   guild,
		Invite:  strings.TrimSpace(invite),
	}
}
