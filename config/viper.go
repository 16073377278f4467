package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Niederb/hash-art/errs"
)

// EnvPrefix prefixes every environment variable, e.g. HASHART_SEARCH_SEED.
const EnvPrefix = "HASHART"

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (HASHART_SOURCE, HASHART_SEARCH_MAX_ITERATIONS, ...)
//  3. The config file: configFile when set, otherwise hashart.toml in the
//     working directory or $XDG_CONFIG_HOME/hashart
//  4. Defaults from NewDefaultConfig()
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.New(errs.KindSetup, "config.InitViper", errors.Wrapf(errs.ErrInvalidConfig, "reading %s: %v", configFile, err))
		}
	} else {
		v.SetConfigName("hashart")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "hashart"))
		}
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine, defaults apply.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errs.New(errs.KindSetup, "config.InitViper", errors.Wrapf(errs.ErrInvalidConfig, "reading config: %v", err))
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() using dotted keys.
// Every key must be registered for AutomaticEnv to reach it through Unmarshal.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("source", d.Source)
	v.SetDefault("target", d.Target)
	v.SetDefault("output", d.Output)

	v.SetDefault("image.decoder", d.Image.Decoder)
	v.SetDefault("image.grayscale", d.Image.Grayscale)
	v.SetDefault("image.headroom", d.Image.Headroom)
	v.SetDefault("image.invert_target", d.Image.InvertTarget)

	v.SetDefault("search.block_size", d.Search.BlockSize)
	v.SetDefault("search.edge", d.Search.Edge)
	v.SetDefault("search.pad_fill", d.Search.PadFill)
	v.SetDefault("search.hash", d.Search.Hash)
	v.SetDefault("search.mode", d.Search.Mode)
	v.SetDefault("search.pixels", d.Search.Pixels)
	v.SetDefault("search.max_delta", d.Search.MaxDelta)
	v.SetDefault("search.policy", d.Search.Policy)
	v.SetDefault("search.temperature", d.Search.Temperature)
	v.SetDefault("search.cooling", d.Search.Cooling)
	v.SetDefault("search.min_temperature", d.Search.MinTemperature)
	v.SetDefault("search.schedule", d.Search.Schedule)
	v.SetDefault("search.max_iterations", d.Search.MaxIterations)
	v.SetDefault("search.time_budget", d.Search.TimeBudget)
	v.SetDefault("search.threshold", d.Search.Threshold)
	v.SetDefault("search.seed", d.Search.Seed)
	v.SetDefault("search.batch", d.Search.Batch)
	v.SetDefault("search.backend", d.Search.Backend)
	v.SetDefault("search.log_every", d.Search.LogEvery)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("profile.report_interval", d.Profile.ReportInterval)
}
