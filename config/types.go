// Package config - hashart configuration: defaults, TOML file, HASHART_ environment
// variables and CLI flags, resolved through viper.
package config

// Config is the persistent configuration, written as TOML by "hashart config init".
type Config struct {
	Source  string        `toml:"source" mapstructure:"source"`
	Target  string        `toml:"target" mapstructure:"target"`
	Output  string        `toml:"output" mapstructure:"output"`
	Image   ImageConfig   `toml:"image" mapstructure:"image"`
	Search  SearchConfig  `toml:"search" mapstructure:"search"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Profile ProfileConfig `toml:"profile" mapstructure:"profile"`
}

// ImageConfig controls how the source and target are decoded and prepared.
type ImageConfig struct {
	// Decoder names a registered images decoder ("std", or "gocv" when built with -tags gocv).
	Decoder string `toml:"decoder" mapstructure:"decoder"`
	// Grayscale converts both images to a single luma channel.
	Grayscale bool `toml:"grayscale" mapstructure:"grayscale"`
	// Headroom darkens the source by max_delta levels so additive edits never clip.
	Headroom bool `toml:"headroom" mapstructure:"headroom"`
	// InvertTarget uses the inverted source (255 - byte) as the target when none is given.
	InvertTarget bool `toml:"invert_target" mapstructure:"invert_target"`
}

// SearchConfig mirrors search.Config with string-typed enums and durations.
type SearchConfig struct {
	BlockSize      string  `toml:"block_size" mapstructure:"block_size"`
	Edge           string  `toml:"edge" mapstructure:"edge"`
	PadFill        uint8   `toml:"pad_fill" mapstructure:"pad_fill"`
	Hash           string  `toml:"hash" mapstructure:"hash"`
	Mode           string  `toml:"mode" mapstructure:"mode"`
	Pixels         int     `toml:"pixels" mapstructure:"pixels"`
	MaxDelta       int     `toml:"max_delta" mapstructure:"max_delta"`
	Policy         string  `toml:"policy" mapstructure:"policy"`
	Temperature    float64 `toml:"temperature" mapstructure:"temperature"`
	Cooling        float64 `toml:"cooling" mapstructure:"cooling"`
	MinTemperature float64 `toml:"min_temperature" mapstructure:"min_temperature"`
	Schedule       string  `toml:"schedule" mapstructure:"schedule"`
	MaxIterations  uint64  `toml:"max_iterations" mapstructure:"max_iterations"`
	TimeBudget     string  `toml:"time_budget" mapstructure:"time_budget"`
	Threshold      uint64  `toml:"threshold" mapstructure:"threshold"`
	Seed           uint64  `toml:"seed" mapstructure:"seed"`
	Batch          int     `toml:"batch" mapstructure:"batch"`
	Backend        string  `toml:"backend" mapstructure:"backend"`
	LogEvery       uint64  `toml:"log_every" mapstructure:"log_every"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// ProfileConfig controls the runtime profiler. An empty interval disables it.
type ProfileConfig struct {
	ReportInterval string `toml:"report_interval" mapstructure:"report_interval"`
}
