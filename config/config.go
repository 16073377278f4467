package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/logger"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/search"
)

// Log formats.
const (
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

// Load unmarshals the resolved viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.New(errs.KindSetup, "config.Load", errors.Wrapf(errs.ErrInvalidConfig, "%v", err))
	}
	return cfg, nil
}

// SearchConfig converts the string-typed section into a validated search.Config.
//
// Returns:
//   - search.Config: The parsed configuration.
//   - error: A setup error wrapping errs.ErrInvalidConfig or errs.ErrInvalidBlockSize.
func (c *Config) SearchConfig() (search.Config, error) {
	s := c.Search
	out := search.DefaultConfig()

	size, err := blocks.ParseSize(s.BlockSize)
	if err != nil {
		return out, err
	}
	edge, err := blocks.ParseEdgePolicy(s.Edge)
	if err != nil {
		return out, err
	}
	alg, err := hashing.ParseAlgorithm(s.Hash)
	if err != nil {
		return out, err
	}
	mode, err := perturb.ParseMode(s.Mode)
	if err != nil {
		return out, err
	}
	policy, err := search.ParsePolicy(s.Policy)
	if err != nil {
		return out, err
	}
	schedule, err := search.ParseSchedule(s.Schedule)
	if err != nil {
		return out, err
	}
	backend, err := search.ParseBackend(s.Backend)
	if err != nil {
		return out, err
	}
	budget, err := parseDuration(s.TimeBudget)
	if err != nil {
		return out, errs.Setupf("config.SearchConfig", errs.ErrInvalidConfig, "time_budget: %v", err)
	}

	out.Blocks = blocks.Options{Size: size, Policy: edge, Fill: s.PadFill}
	out.Algorithm = alg
	out.Perturb = perturb.Config{Mode: mode, Pixels: s.Pixels, MaxDelta: s.MaxDelta}
	out.Policy = policy
	out.Temperature = float32(s.Temperature)
	out.Cooling = float32(s.Cooling)
	out.MinTemperature = float32(s.MinTemperature)
	out.Schedule = schedule
	out.MaxIterations = s.MaxIterations
	out.TimeBudget = budget
	out.Threshold = s.Threshold
	out.Seed = s.Seed
	out.BatchSize = s.Batch
	out.Backend = backend
	out.LogEvery = s.LogEvery

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// ReportInterval parses the profiler interval. Zero means disabled.
func (c *Config) ReportInterval() (time.Duration, error) {
	d, err := parseDuration(c.Profile.ReportInterval)
	if err != nil {
		return 0, errs.Setupf("config.ReportInterval", errs.ErrInvalidConfig, "report_interval: %v", err)
	}
	return d, nil
}

// LoggerOptions translates the log section into logger options.
func (c *Config) LoggerOptions() []logger.Option {
	opts := []logger.Option{logger.WithLevel(c.Log.Level)}
	switch strings.ToLower(c.Log.Format) {
	case FormatJSON:
		opts = append(opts, logger.WithJSON(true))
	case FormatText:
	default:
		opts = append(opts, logger.WithPretty(true))
	}
	return opts
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Errorf("negative duration %s", s)
	}
	return d, nil
}

// Write encodes cfg as TOML to path. An existing file is only replaced when force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errs.IOf("config.Write", errs.ErrIO, "%s already exists", path)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errs.New(errs.KindIO, "config.Write", errors.Wrap(errs.ErrIO, err.Error()))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.New(errs.KindIO, "config.Write", errors.Wrap(errs.ErrIO, err.Error()))
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.New(errs.KindIO, "config.Write", errors.Wrap(errs.ErrIO, err.Error()))
	}
	return nil
}
