// Package benchcmder provides the bench command for measuring search throughput.
package benchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Niederb/hash-art/benchmark"
	"github.com/Niederb/hash-art/config"
	"github.com/Niederb/hash-art/logger"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Width(36)
	numStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(14).Align(lipgloss.Right)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type benchCommander struct {
	set           string
	scenarioFile  string
	saveScenarios string
	outputDir     string
	save          bool
}

const benchLongDesc string = `Measure search throughput on synthetic noise images.

Each scenario runs the search for a fixed number of iterations against a target
that cannot be matched, and reports iterations per second. Predefined sets:
quick, algorithms, backends, blocks, modes. A custom set can be loaded from a
JSON file written with --save-scenarios.

Example:
  hashart bench
  hashart bench --set backends --save
  hashart bench --set blocks --save-scenarios blocks.json
  hashart bench --scenarios blocks.json --output-dir ./benchmark_results --save`

const benchShortDesc string = "Benchmark search throughput"

func NewBenchCmd() *cobra.Command {
	cmder := &benchCommander{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: benchShortDesc,
		Long:  benchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, nil)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.set, "set", benchmark.SetQuick, "Predefined scenario set")
	cmd.Flags().StringVar(&cmder.scenarioFile, "scenarios", "", "Load scenarios from a JSON file instead of --set")
	cmd.Flags().StringVar(&cmder.saveScenarios, "save-scenarios", "", "Write the selected scenario set to a JSON file and exit")
	cmd.Flags().StringVar(&cmder.outputDir, "output-dir", "./benchmark_results", "Directory for saved results")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Save JSON and CSV results to --output-dir")

	return cmd
}

func (c *benchCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log := logger.New(cfg.LoggerOptions()...)

	set, err := c.scenarioSet()
	if err != nil {
		return err
	}
	if c.saveScenarios != "" {
		if err := benchmark.SaveScenarioSet(set, c.saveScenarios); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "wrote %d scenarios to %s\n", len(set.Scenarios), c.saveScenarios)
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite := benchmark.NewSuite(benchmark.NewSuiteArgs{OutputPath: c.outputDir, Logger: log})
	suite.AddScenarioSet(set)
	if err := suite.RunAllScenarios(ctx); err != nil {
		return err
	}

	printResults(out, set.Name, suite.GetResults())

	if c.save {
		resultsFile, summaryFile, err := suite.SaveResults()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("results: %s\nsummary: %s", resultsFile, summaryFile)))
	}
	return nil
}

func (c *benchCommander) scenarioSet() (*benchmark.ScenarioSet, error) {
	if c.scenarioFile != "" {
		return benchmark.LoadScenarioSet(c.scenarioFile)
	}
	return benchmark.Predefined(c.set)
}

func printResults(out io.Writer, title string, results []benchmark.PerformanceMetrics) {
	_, _ = fmt.Fprintf(out, "\n%s\n\n", headerStyle.Render(title))
	_, _ = fmt.Fprintln(out,
		nameStyle.Render("scenario")+
			numStyle.Render("iter/s")+
			numStyle.Render("iterations")+
			numStyle.Render("distance")+
			numStyle.Render("alloc MiB"))

	for _, r := range results {
		_, _ = fmt.Fprintln(out,
			nameStyle.Render(r.Scenario.Name)+
				numStyle.Render(fmt.Sprintf("%.0f", r.IterationsPerSecond))+
				numStyle.Render(fmt.Sprintf("%d", r.Iterations))+
				numStyle.Render(fmt.Sprintf("%d/%d", r.FinalDistance, r.InitialDistance))+
				numStyle.Render(fmt.Sprintf("%.1f", float64(r.MemoryStats.TotalAllocBytes)/(1<<20))))
	}
	_, _ = fmt.Fprintln(out)
}
