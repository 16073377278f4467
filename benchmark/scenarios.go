package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/search"
)

// Resolution represents image dimensions for benchmarking
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// MegaPixels returns the pixel count in millions.
func (r Resolution) MegaPixels() float64 {
	return float64(r.Width*r.Height) / 1_000_000
}

// Common resolutions for benchmarking
var CommonResolutions = []Resolution{
	{Width: 64, Height: 64, Name: "64x64"},
	{Width: 256, Height: 256, Name: "256x256"},
	{Width: 640, Height: 480, Name: "640x480"},
	{Width: 1280, Height: 720, Name: "1280x720"},
	{Width: 1920, Height: 1080, Name: "1920x1080"},
}

// Scenario defines a specific test configuration. Enum fields hold the names
// accepted by the corresponding Parse functions so that scenario files stay readable.
type Scenario struct {
	Name       string     `json:"name"`
	Resolution Resolution `json:"resolution"`
	Channels   int        `json:"channels"`
	BlockSize  string     `json:"block_size"`
	Algorithm  string     `json:"algorithm"`
	Mode       string     `json:"mode"`
	Pixels     int        `json:"pixels"`
	Backend    string     `json:"backend"`
	BatchSize  int        `json:"batch_size"`
	Iterations uint64     `json:"iterations"`
	WarmupRuns int        `json:"warmup_runs"`
	Seed       uint64     `json:"seed"`
}

// SearchConfig converts the scenario into a search configuration. The threshold
// and stop conditions are left so that every scenario runs its full iteration count
// unless the synthetic target is matched early.
func (s Scenario) SearchConfig() (search.Config, error) {
	cfg := search.DefaultConfig()

	size, err := blocks.ParseSize(s.BlockSize)
	if err != nil {
		return cfg, err
	}
	alg, err := hashing.ParseAlgorithm(s.Algorithm)
	if err != nil {
		return cfg, err
	}
	mode, err := perturb.ParseMode(s.Mode)
	if err != nil {
		return cfg, err
	}
	backend, err := search.ParseBackend(s.Backend)
	if err != nil {
		return cfg, err
	}

	cfg.Blocks.Size = size
	cfg.Algorithm = alg
	cfg.Perturb.Mode = mode
	if s.Pixels > 0 {
		cfg.Perturb.Pixels = s.Pixels
	}
	cfg.Backend = backend
	cfg.BatchSize = s.BatchSize
	cfg.MaxIterations = s.Iterations
	cfg.Seed = s.Seed
	cfg.LogEvery = 0

	return cfg, cfg.Validate()
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Resolution: CommonResolutions[1],
			Channels:   images.ChannelsRGB,
			BlockSize:  "8",
			Algorithm:  hashing.DefaultAlgorithm.String(),
			Mode:       perturb.ModeBlock.String(),
			Backend:    string(search.BackendSequential),
			BatchSize:  1,
			Iterations: 10_000,
			WarmupRuns: 1,
			Seed:       1,
		},
	}
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithChannels sets the channel layout of the synthetic images
func (sb *ScenarioBuilder) WithChannels(channels int) *ScenarioBuilder {
	sb.scenario.Channels = channels
	return sb
}

// WithBlockSize sets the block size ("N" or "WxH")
func (sb *ScenarioBuilder) WithBlockSize(size string) *ScenarioBuilder {
	sb.scenario.BlockSize = size
	return sb
}

// WithAlgorithm sets the block hash
func (sb *ScenarioBuilder) WithAlgorithm(alg hashing.Algorithm) *ScenarioBuilder {
	sb.scenario.Algorithm = alg.String()
	return sb
}

// WithMode sets the perturbation mode and, for pixel mode, the bytes per edit
func (sb *ScenarioBuilder) WithMode(mode perturb.Mode, pixels int) *ScenarioBuilder {
	sb.scenario.Mode = mode.String()
	sb.scenario.Pixels = pixels
	return sb
}

// WithBackend sets the evaluation backend and batch size
func (sb *ScenarioBuilder) WithBackend(backend search.Backend, batchSize int) *ScenarioBuilder {
	sb.scenario.Backend = string(backend)
	sb.scenario.BatchSize = batchSize
	return sb
}

// WithIterations sets the number of search iterations
func (sb *ScenarioBuilder) WithIterations(iterations uint64) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithSeed sets the seed for the synthetic images and the search
func (sb *ScenarioBuilder) WithSeed(seed uint64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// Predefined scenario set names.
const (
	SetQuick      = "quick"
	SetAlgorithms = "algorithms"
	SetBackends   = "backends"
	SetBlockSizes = "blocks"
	SetModes      = "modes"
)

// PredefinedSets lists the names accepted by Predefined.
func PredefinedSets() []string {
	return []string{SetQuick, SetAlgorithms, SetBackends, SetBlockSizes, SetModes}
}

// Predefined returns a named scenario set.
func Predefined(name string) (*ScenarioSet, error) {
	switch name {
	case SetQuick:
		return QuickScenarios(), nil
	case SetAlgorithms:
		return AlgorithmScenarios(CommonResolutions[1]), nil
	case SetBackends:
		return BackendScenarios(CommonResolutions[2], []int{1, 4, 16}), nil
	case SetBlockSizes:
		return BlockSizeScenarios(CommonResolutions[2], []string{"4", "8", "16", "32"}), nil
	case SetModes:
		return ModeScenarios(CommonResolutions[1]), nil
	default:
		return nil, errs.Setupf("benchmark.Predefined", errs.ErrInvalidConfig, "unknown scenario set %q (want one of %v)", name, PredefinedSets())
	}
}

// QuickScenarios returns a smaller set for quick testing
func QuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, resolution := range CommonResolutions[:2] {
		scenario := NewScenarioBuilder(fmt.Sprintf("quick_%s", resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithIterations(2_000).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Default search settings on small images",
		Scenarios:   scenarios,
	}
}

// AlgorithmScenarios compares every block hash at one resolution
func AlgorithmScenarios(resolution Resolution) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, name := range hashing.Algorithms() {
		alg, _ := hashing.ParseAlgorithm(name)
		scenario := NewScenarioBuilder(fmt.Sprintf("hash_%s_%s", name, resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithAlgorithm(alg).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Hash Comparison @ %s", resolution.Name),
		Description: "Compares block hash algorithms with otherwise default settings",
		Scenarios:   scenarios,
	}
}

// BackendScenarios compares the sequential and parallel evaluators over batch sizes
func BackendScenarios(resolution Resolution, batchSizes []int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, backend := range []search.Backend{search.BackendSequential, search.BackendParallel} {
		for _, batch := range batchSizes {
			scenario := NewScenarioBuilder(fmt.Sprintf("backend_%s_batch%d_%s", backend, batch, resolution.Name)).
				WithResolution(resolution.Width, resolution.Height).
				WithBackend(backend, batch).
				WithIterations(2_000).
				Build()

			scenarios = append(scenarios, scenario)
		}
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Backend Comparison @ %s", resolution.Name),
		Description: "Compares evaluation backends across batch sizes",
		Scenarios:   scenarios,
	}
}

// BlockSizeScenarios compares block sizes at one resolution
func BlockSizeScenarios(resolution Resolution, sizes []string) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, size := range sizes {
		scenario := NewScenarioBuilder(fmt.Sprintf("blocks_%s_%s", size, resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithBlockSize(size).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Block Size Comparison @ %s", resolution.Name),
		Description: "Compares block sizes with otherwise default settings",
		Scenarios:   scenarios,
	}
}

// ModeScenarios compares block-wide and pixel perturbations
func ModeScenarios(resolution Resolution) *ScenarioSet {
	scenarios := []Scenario{
		NewScenarioBuilder(fmt.Sprintf("mode_block_%s", resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithMode(perturb.ModeBlock, 0).
			Build(),
	}
	for _, pixels := range []int{1, 4} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("mode_pixel%d_%s", pixels, resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithMode(perturb.ModePixel, pixels).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Mode Comparison @ %s", resolution.Name),
		Description: "Compares perturbation modes",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errs.New(errs.KindIO, "benchmark.SaveScenarioSet", errors.Wrapf(errs.ErrIO, "%v", err))
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errs.New(errs.KindIO, "benchmark.LoadScenarioSet", errors.Wrapf(errs.ErrIO, "%v", err))
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, errs.Setupf("benchmark.LoadScenarioSet", errs.ErrInvalidConfig, "%s: %v", filename, err)
	}

	return &scenarioSet, nil
}
