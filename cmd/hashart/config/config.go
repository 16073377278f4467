// Package configcmder provides the config command for writing and inspecting hashart.toml.
package configcmder

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/Niederb/hash-art/config"
)

// DefaultPath is where "config init" writes when no path is given.
const DefaultPath = "hashart.toml"

const configLongDesc string = `Manage the hashart configuration file.

Precedence, highest first: flags, HASHART_ environment variables, the config
file, built-in defaults.

Example:
  hashart config init
  hashart config init ~/.config/hashart/hashart.toml --force
  hashart config show -c hashart.toml`

const configShortDesc string = "Manage hashart configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Write(path, config.NewDefaultConfig(), force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, nil)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}
