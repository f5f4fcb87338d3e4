package tagbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMember(t *testing.T) {
	tests := []struct {
		name    string
		member  Member
		tag     string
		display string
	}{
		{name: "legacy discriminator", member: Member{Username: "ann", Discriminator: "0042"}, tag: "ann#0042", display: "ann"},
		{name: "zero discriminator", member: Member{Username: "ann", Discriminator: "0"}, tag: "ann", display: "ann"},
		{name: "no discriminator", member: Member{Username: "ann"}, tag: "ann", display: "ann"},
		{name: "nickname", member: Member{Username: "ann", Nick: "Annie"}, tag: "ann", display: "Annie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tag, tt.member.Tag())
			assert.Equal(t, tt.display, tt.member.DisplayName())
		})
	}

	assert.Equal(t, "<@9>", Member{ID: "9"}.Mention())
	assert.Equal(t, "<#c>", Message{ChannelID: "c"}.ChannelMention())
}

func TestNewContext(t *testing.T) {
	t.Run("guild id falls back to message", func(t *testing.T) {
		vctx := NewContext(Member{}, Message{GuildID: "g1"}, Guild{Name: "x"}, "")
		assert.Equal(t, "g1", vctx.Guild.ID)
	})

	t.Run("explicit guild id wins", func(t *testing.T) {
		vctx := NewContext(Member{}, Message{GuildID: "g1"}, Guild{ID: "g2"}, "")
		assert.Equal(t, "g2", vctx.Guild.ID)
	})

	t.Run("invite is trimmed", func(t *testing.T) {
		vctx := NewContext(Member{}, Message{}, Guild{}, " https://i \n")
		assert.Equal(t, "https://i", vctx.Invite)
	})
}
