package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsatony/go-tagbot"
	"github.com/itsatony/go-tagbot/internal"
)

// tagsFlags holds flags shared by the tags subcommands
type tagsFlags struct {
	guild  string
	format string
}

func newTagsCmd(flags *globalFlags) *cobra.Command {
	tf := &tagsFlags{}

	cmd := &cobra.Command{
		Use:   CmdNameTags,
		Short: HelpShortTags,
	}
	cmd.PersistentFlags().StringVarP(&tf.guild, FlagGuild, FlagGuildShort, "", "guild ID")
	cmd.PersistentFlags().StringVarP(&tf.format, FlagFormat, FlagFormatShort, FlagDefaultFormat, "output format: text or json")

	cmd.AddCommand(
		newTagsListCmd(flags, tf),
		newTagsInfoCmd(flags, tf),
		newTagsCreateCmd(flags, tf),
	)
	return cmd
}

func newTagsListCmd(flags *globalFlags, tf *tagsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   CmdNameList,
		Short: HelpShortList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(flags, tf, func(cfg *tagbot.Config, service *tagbot.TagService) error {
				names, err := service.List(cmd.Context(), tf.guild)
				if err != nil {
					return fail(ExitCodeError, ErrMsgListTags, err)
				}
				if tf.format == OutputFormatJSON {
					if names == nil {
						names = []string{}
					}
					return printJSON(cmd, names)
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newTagsInfoCmd(flags *globalFlags, tf *tagsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   CmdNameInfo + " <name>",
		Short: HelpShortInfo,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(flags, tf, func(cfg *tagbot.Config, service *tagbot.TagService) error {
				rec, err := service.FindByName(cmd.Context(), tf.guild, args[0])
				if errors.Is(err, tagbot.ErrTagNotFound) {
					if hint := suggestNames(cmd.Context(), service, tf.guild, args[0]); hint != "" {
						return fail(ExitCodeError, ErrMsgFindTag+"; "+hint, err)
					}
				}
				if err != nil {
					return fail(ExitCodeError, ErrMsgFindTag, err)
				}
				if tf.format == OutputFormatJSON {
					return printJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "name:     %s\n", rec.Name)
				fmt.Fprintf(out, "id:       %s\n", rec.ID)
				fmt.Fprintf(out, "author:   %s\n", rec.Author)
				fmt.Fprintf(out, "created:  %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "updated:  %s\n", rec.UpdatedAt.UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "uses:     %s\n", itoa(rec.Uses))
				fmt.Fprintf(out, "content:\n%s\n", rec.Content)
				return nil
			})
		},
	}
}

func newTagsCreateCmd(flags *globalFlags, tf *tagsFlags) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   CmdNameCreate + " <name> <content>",
		Short: HelpShortCreate,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if author == "" {
				return fail(ExitCodeUsageError, ErrMsgMissingAuthor, nil)
			}
			return withService(flags, tf, func(cfg *tagbot.Config, service *tagbot.TagService) error {
				content := args[1]
				if tagbot.IsRemoteContent(content) {
					fetcher := cfg.Fetch.NewFetcher()
					fetched, err := fetcher.Fetch(cmd.Context(), content)
					if err != nil {
						return fail(ExitCodeInputError, ErrMsgFetchContent, err)
					}
					content = fetched
				}

				rec, err := service.Create(cmd.Context(), tf.guild, args[0], content, author)
				if err != nil {
					if tagbot.IsUserError(err) {
						return fail(ExitCodeValidationError, ErrMsgCreateTag, err)
					}
					return fail(ExitCodeError, ErrMsgCreateTag, err)
				}
				if tf.format == OutputFormatJSON {
					return printJSON(cmd, rec)
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, FlagAuthor, "", "author user ID")
	return cmd
}

// withService opens the configured storage for one command and closes it after.
func withService(flags *globalFlags, tf *tagsFlags, fn func(*tagbot.Config, *tagbot.TagService) error) error {
	if tf.guild == "" {
		return fail(ExitCodeUsageError, ErrMsgMissingGuild, nil)
	}
	if tf.format != OutputFormatText && tf.format != OutputFormatJSON {
		return fail(ExitCodeUsageError, ErrMsgInvalidFormat, nil)
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	storage, err := tagbot.OpenStorage(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fail(ExitCodeError, ErrMsgOpenStorage, err)
	}
	defer storage.Close()

	service, err := tagbot.NewTagService(storage, cfg.Options()...)
	if err != nil {
		return fail(ExitCodeError, ErrMsgOpenStorage, err)
	}
	return fn(cfg, service)
}

// suggestNames looks for existing tags close to a missing name.
func suggestNames(ctx context.Context, service *tagbot.TagService, guildID, name string) string {
	names, err := service.List(ctx, guildID)
	if err != nil {
		return ""
	}
	return internal.FormatSuggestions(internal.SimilarNames(name, names, internal.SuggestMaxNames))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", JSONIndent)
	if err != nil {
		return fail(ExitCodeError, ErrMsgInvalidFormat, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
