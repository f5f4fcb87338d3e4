package main

import (
	"github.com/spf13/cobra"

	"github.com/itsatony/go-tagbot"
)

// globalFlags are shared by every subcommand that touches storage.
type globalFlags struct {
	configPath string
	driver     string
	dsn        string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           CmdNameRoot,
		Short:         HelpShortRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, FlagConfig, FlagConfigShort, "", "path to YAML config file")
	root.PersistentFlags().StringVar(&flags.driver, FlagDriver, "", "storage driver override")
	root.PersistentFlags().StringVar(&flags.dsn, FlagDSN, "", "storage connection string override")

	root.AddCommand(
		newServeCmd(flags),
		newRenderCmd(),
		newTagsCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file (or defaults) and applies flag overrides.
func (f *globalFlags) loadConfig() (*tagbot.Config, error) {
	cfg := tagbot.DefaultConfig()
	if f.configPath != "" {
		loaded, err := tagbot.LoadConfig(f.configPath)
		if err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgLoadConfig, err)
		}
		cfg = loaded
	}

	if f.driver != "" {
		cfg.Storage.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.Storage.DSN = f.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fail(ExitCodeValidationError, ErrMsgLoadConfig, err)
	}
	return cfg, nil
}
