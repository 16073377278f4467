// Package hashartcmder - The hashart root command and its global flags.
package hashartcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/Niederb/hash-art/cmd/hashart/config"
	benchcmder "github.com/Niederb/hash-art/cmd/hashart/bench"
	hashcmder "github.com/Niederb/hash-art/cmd/hashart/hash"
	searchcmder "github.com/Niederb/hash-art/cmd/hashart/search"
	"github.com/Niederb/hash-art/config"
)

const hashartLongDesc string = `Hashart perturbs a source image until its per-block hashes match a target's.

Both images are cut into a grid of blocks and every block is hashed. The search
nudges pixel bytes of the source, keeping edits that bring more block hashes
into agreement with the target, and writes the best candidate it found.

Commands:
  hashart search -s source.png -t target.png    Run a search
  hashart hash image.png                        Print the block hashes of an image
  hashart config init                           Write a hashart.toml with the defaults
  hashart bench                                 Measure search throughput`

const hashartShortDesc string = "Hashart - block hash image search"

func NewHashartCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:           "hashart",
		Short:         hashartShortDesc,
		Long:          hashartLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(config.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&configPath, config.FlagConfig, "c", "", "Config file (default: ./hashart.toml)")
	config.AddPersistentStringFlag(cmd, config.RootFlags, config.FlagLogLevel, &logLevel)
	config.AddPersistentStringFlag(cmd, config.RootFlags, config.FlagLogFormat, &logFormat)

	// Add subcommands
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(hashcmder.NewHashCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(benchcmder.NewBenchCmd())

	return cmd
}
