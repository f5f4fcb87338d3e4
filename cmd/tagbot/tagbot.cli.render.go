package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itsatony/go-tagbot"
)

// renderConfig holds the sample context for the render command
type renderConfig struct {
	member  tagbot.Member
	guild   tagbot.Guild
	channel string
	message string
	invite  string
}

func newRenderCmd() *cobra.Command {
	cfg := &renderConfig{}

	cmd := &cobra.Command{
		Use:   CmdNameRender + " [file|-]",
		Short: HelpShortRender,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := InputSourceStdin
			if len(args) == 1 {
				path = args[0]
			}
			return runRender(cmd, path, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.member.ID, FlagUserID, FlagDefaultUserID, "invoking user ID")
	f.StringVar(&cfg.member.Username, FlagUserName, FlagDefaultUser, "invoking username")
	f.StringVar(&cfg.member.Nick, FlagNick, "", "invoking member nickname")
	f.StringVar(&cfg.member.Discriminator, FlagDiscriminator, "", "invoking user discriminator")
	f.StringVar(&cfg.member.AvatarURL, FlagAvatar, "", "invoking user avatar URL")
	f.StringVar(&cfg.guild.ID, FlagServerID, FlagDefaultUserID, "server ID")
	f.StringVar(&cfg.guild.Name, FlagServerName, FlagDefaultServer, "server name")
	f.IntVar(&cfg.guild.MemberCount, FlagMembers, 0, "server member count")
	f.StringVar(&cfg.channel, FlagChannelID, FlagDefaultUserID, "channel ID")
	f.StringVar(&cfg.message, FlagMessageID, FlagDefaultUserID, "message ID")
	f.StringVar(&cfg.invite, FlagInvite, "", "invite link")
	return cmd
}

func runRender(cmd *cobra.Command, path string, cfg *renderConfig) error {
	source, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
	}

	msg := tagbot.Message{
		ID:        cfg.message,
		GuildID:   cfg.guild.ID,
		ChannelID: cfg.channel,
		Author:    cfg.member,
	}
	vctx := tagbot.NewContext(cfg.member, msg, cfg.guild, cfg.invite)

	engine := tagbot.NewEngine(nil, nil)
	out, err := engine.Render(string(source), vctx)
	if err != nil {
		return fail(ExitCodeValidationError, ErrMsgMalformed, err)
	}
	if unknown := engine.Variables().Unknown(string(source)); len(unknown) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), FmtWarnUnknown, "{"+strings.Join(unknown, "}, {")+"}")
	}

	data, err := json.MarshalIndent(out, "", JSONIndent)
	if err != nil {
		return fail(ExitCodeError, ErrMsgMalformed, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// readInput reads content from a file or stdin
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == InputSourceStdin {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// itoa is shorthand used by tag output.
func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
