package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/logger"
	"github.com/Niederb/hash-art/search"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	scenarios []Scenario
	outputDir string
	log       *slog.Logger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	OutputPath string       `json:"outputPath" yaml:"outputPath"`
	Logger     *slog.Logger `json:"-" yaml:"-"`
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(args NewSuiteArgs) *Suite {
	return &Suite{
		outputDir: args.OutputPath,
		log:       logger.OrNop(args.Logger),
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// Synthetic returns a deterministic noise image.
//
// Arguments:
//   - res: The image dimensions.
//   - channels: The channel layout.
//   - seed: Selects the noise pattern.
//
// Returns:
//   - *images.Image: The generated image.
//   - error: A setup error for empty dimensions or unsupported channels.
func Synthetic(res Resolution, channels int, seed uint64) (*images.Image, error) {
	img, err := images.New(res.Width, res.Height, channels)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Uint32())
	}
	return img, nil
}

// RunScenario executes a single benchmark scenario. The source and target are
// independent noise images, so the search runs its full iteration count.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	cfg, err := scenario.SearchConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}
	source, err := Synthetic(scenario.Resolution, scenario.Channels, scenario.Seed)
	if err != nil {
		return nil, err
	}
	target, err := Synthetic(scenario.Resolution, scenario.Channels, scenario.Seed+1)
	if err != nil {
		return nil, err
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	// Warmup runs
	warm := cfg
	warm.MaxIterations = min(cfg.MaxIterations, 100)
	for i := 0; i < scenario.WarmupRuns; i++ {
		ctrl, err := search.New(source, target, warm)
		if err != nil {
			return nil, err
		}
		if _, err := ctrl.Run(ctx); err != nil {
			return nil, err
		}
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	setupStart := time.Now()
	ctrl, err := search.NewBuilder().
		WithSource(source).
		WithTarget(target).
		WithConfig(cfg).
		WithLogger(bs.log).
		Build()
	if err != nil {
		return nil, err
	}
	metrics.SetupDuration = time.Since(setupStart)

	startTime := time.Now()
	result, err := ctrl.Run(ctx)
	if err != nil {
		return nil, err
	}
	totalDuration := time.Since(startTime)

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.TotalDuration = totalDuration
	metrics.Iterations = result.Iterations
	if secs := totalDuration.Seconds(); secs > 0 {
		metrics.IterationsPerSecond = float64(result.Iterations) / secs
		metrics.BlocksPerSecond = float64(result.Iterations) * float64(cfg.BatchSize) / secs
	}
	metrics.InitialDistance = result.InitialDistance
	metrics.FinalDistance = result.Distance
	metrics.Accepted = result.Accepted

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios. A failing scenario
// is logged and skipped; cancelling ctx stops after the current scenario.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.Lock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.Unlock()

	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			break
		}
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.log.Error("scenario failed", "scenario", scenario.Name, "error", err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.log.Info("scenario completed",
			"scenario", scenario.Name,
			"iterations_per_second", fmt.Sprintf("%.0f", metrics.IterationsPerSecond),
			"distance", metrics.FinalDistance,
		)
	}

	return nil
}

// SaveResults persists benchmark results to the output directory as a JSON
// report and a CSV summary, and returns both paths.
func (bs *Suite) SaveResults() (string, string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", "", errs.New(errs.KindIO, "benchmark.SaveResults", errors.Wrapf(errs.ErrIO, "%v", err))
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errs.New(errs.KindIO, "benchmark.SaveResults", errors.Wrapf(errs.ErrIO, "%v", err))
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errs.New(errs.KindIO, "benchmark.SaveResults", errors.Wrapf(errs.ErrIO, "summary: %v", err))
	}

	bs.log.Info("benchmark results saved", "results", resultsFile, "summary", summaryFile)
	return resultsFile, summaryFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		"Scenario", "Resolution", "Block_Size", "Hash", "Mode", "Backend", "Batch",
		"Iterations", "Iterations_Per_Second", "Total_Duration_ms", "Initial_Distance", "Final_Distance",
	}); err != nil {
		return err
	}

	for _, result := range results {
		s := result.Scenario
		if err := w.Write([]string{
			s.Name,
			s.Resolution.Name,
			s.BlockSize,
			s.Algorithm,
			s.Mode,
			s.Backend,
			strconv.Itoa(s.BatchSize),
			strconv.FormatUint(result.Iterations, 10),
			strconv.FormatFloat(result.IterationsPerSecond, 'f', 2, 64),
			strconv.FormatFloat(float64(result.TotalDuration.Nanoseconds())/1e6, 'f', 2, 64),
			strconv.FormatUint(result.InitialDistance, 10),
			strconv.FormatUint(result.FinalDistance, 10),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
