package config

import (
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/search"
)

// DefaultOutput is where the best candidate is written.
const DefaultOutput = "result.png"

// NewDefaultConfig returns the single source of truth for default values.
func NewDefaultConfig() *Config {
	d := search.DefaultConfig()

	return &Config{
		Output: DefaultOutput,
		Image: ImageConfig{
			Decoder: images.DecoderStd,
		},
		Search: SearchConfig{
			BlockSize:      d.Blocks.Size.String(),
			Edge:           d.Blocks.Policy.String(),
			PadFill:        d.Blocks.Fill,
			Hash:           d.Algorithm.String(),
			Mode:           d.Perturb.Mode.String(),
			Pixels:         d.Perturb.Pixels,
			MaxDelta:       d.Perturb.MaxDelta,
			Policy:         d.Policy.String(),
			Temperature:    float64(d.Temperature),
			Cooling:        float64(d.Cooling),
			MinTemperature: float64(d.MinTemperature),
			Schedule:       d.Schedule.String(),
			MaxIterations:  d.MaxIterations,
			TimeBudget:     d.TimeBudget.String(),
			Threshold:      d.Threshold,
			Seed:           d.Seed,
			Batch:          d.BatchSize,
			Backend:        string(d.Backend),
			LogEvery:       d.LogEvery,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
		Profile: ProfileConfig{
			ReportInterval: "",
		},
	}
}
