// Package searchcmder provides the search command.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Niederb/hash-art/config"
	"github.com/Niederb/hash-art/logger"
	"github.com/Niederb/hash-art/pipeline"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	hashStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type searchCommander struct {
	// Flag targets. The effective values are read back through viper.
	flags config.Config
	quiet bool
}

const searchLongDesc string = `Search for a perturbation of the source whose block hashes match the target.

The target is resampled to the source's dimensions and converted to its channel
layout. With --invert-target and no --target, the inverted source is the target. The search stops on an exact match, when the distance drops to the
threshold, after max-iterations, when the time budget is spent or on Ctrl-C.
The best candidate is always written to --output.

Every flag can also be set in hashart.toml or through HASHART_ environment
variables, e.g. HASHART_SEARCH_MAX_ITERATIONS=50000.

Example:
  hashart search -s cat.png -t dog.png
  hashart search -s cat.png -t dog.png -b 4 --hash md5 -m pixel --pixels 2
  hashart search -s cat.png -t dog.png --policy anneal --temperature 2 --cooling 0.999
  hashart search -s cat.png -t dog.png --backend parallel --batch 16 --time-budget 10m
  hashart search -s cat.png --invert-target --grayscale`

const searchShortDesc string = "Run a block hash search"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, config.SearchFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagSource, &f.Source)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagTarget, &f.Target)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagOutput, &f.Output)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagDecoder, &f.Image.Decoder)
	config.AddBoolFlag(cmd, config.SearchFlags, config.FlagGrayscale, &f.Image.Grayscale)
	config.AddBoolFlag(cmd, config.SearchFlags, config.FlagHeadroom, &f.Image.Headroom)
	config.AddBoolFlag(cmd, config.SearchFlags, config.FlagInvertTarget, &f.Image.InvertTarget)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagBlockSize, &f.Search.BlockSize)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagEdge, &f.Search.Edge)
	config.AddUint8Flag(cmd, config.SearchFlags, config.FlagPadFill, &f.Search.PadFill)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagHash, &f.Search.Hash)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagMode, &f.Search.Mode)
	config.AddIntFlag(cmd, config.SearchFlags, config.FlagPixels, &f.Search.Pixels)
	config.AddIntFlag(cmd, config.SearchFlags, config.FlagMaxDelta, &f.Search.MaxDelta)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagPolicy, &f.Search.Policy)
	config.AddFloat64Flag(cmd, config.SearchFlags, config.FlagTemperature, &f.Search.Temperature)
	config.AddFloat64Flag(cmd, config.SearchFlags, config.FlagCooling, &f.Search.Cooling)
	config.AddFloat64Flag(cmd, config.SearchFlags, config.FlagMinTemperature, &f.Search.MinTemperature)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagSchedule, &f.Search.Schedule)
	config.AddUint64Flag(cmd, config.SearchFlags, config.FlagMaxIterations, &f.Search.MaxIterations)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagTimeBudget, &f.Search.TimeBudget)
	config.AddUint64Flag(cmd, config.SearchFlags, config.FlagThreshold, &f.Search.Threshold)
	config.AddUint64Flag(cmd, config.SearchFlags, config.FlagSeed, &f.Search.Seed)
	config.AddIntFlag(cmd, config.SearchFlags, config.FlagBatch, &f.Search.Batch)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagBackend, &f.Search.Backend)
	config.AddUint64Flag(cmd, config.SearchFlags, config.FlagLogEvery, &f.Search.LogEvery)
	config.AddStringFlag(cmd, config.SearchFlags, config.FlagReportInterval, &f.Profile.ReportInterval)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only the output path")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log := logger.New(cfg.LoggerOptions()...)

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Run(ctx, opts, log)
	if err != nil {
		return err
	}

	if c.quiet {
		_, err = fmt.Fprintln(out, summary.Output)
		return err
	}
	return printSummary(out, summary)
}

func printSummary(out io.Writer, s *pipeline.Summary) error {
	status := partialStyle.Render(fmt.Sprintf("%d of %d blocks still differ", s.Mismatched, s.Blocks))
	if s.Matched() {
		status = matchedStyle.Render(fmt.Sprintf("all %d blocks match", s.Blocks))
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	lines := []string{
		headerStyle.Render("Search finished: ") + status,
		"",
		row("reason", s.Reason.String()),
		row("distance", fmt.Sprintf("%d (initial %d)", s.Distance, s.InitialDistance)),
		row("iterations", fmt.Sprintf("%d", s.Iterations)),
		row("accepted", fmt.Sprintf("%d (%d improvements)", s.Accepted, s.Improvements)),
		row("rejected", fmt.Sprintf("%d", s.Rejected)),
		row("skipped", fmt.Sprintf("%d", s.Skipped)),
		row("elapsed", s.Elapsed.Round(time.Millisecond).String()),
		row("seed", fmt.Sprintf("%d", s.Seed)),
		row("checksum", hashStyle.Render(s.Checksum)),
	}
	if s.Output != "" {
		lines = append(lines, row("output", s.Output))
	}

	_, err := fmt.Fprintln(out, "\n"+lipgloss.JoinVertical(lipgloss.Left, lines...)+"\n")
	return err
}
