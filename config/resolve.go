package config

import (
	"github.com/spf13/cobra"
)

// Persistent flag names shared by every subcommand.
const (
	FlagConfig = "config"
	FlagDebug  = "debug"
)

// Resolve builds the effective configuration for a subcommand: defaults, the
// --config file (or hashart.toml), HASHART_ environment variables, then the
// root flags and the given command flags.
func Resolve(cmd *cobra.Command, fs FlagSet) (*Config, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)

	v, err := InitViper(path)
	if err != nil {
		return nil, err
	}
	BindRegisteredFlags(v, cmd, RootFlags, RootFlags.Keys())
	if fs != nil {
		BindRegisteredFlags(v, cmd, fs, fs.Keys())
	}

	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool(FlagDebug); debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
