package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
type Flag struct {
	// Name is the long flag name (e.g. "block-size").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "search.block_size").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagSource         = "source"
	FlagTarget         = "target"
	FlagOutput         = "output"
	FlagDecoder        = "decoder"
	FlagGrayscale      = "grayscale"
	FlagHeadroom       = "headroom"
	FlagInvertTarget   = "invert-target"
	FlagBlockSize      = "block-size"
	FlagEdge           = "edge"
	FlagPadFill        = "pad-fill"
	FlagHash           = "hash"
	FlagMode           = "mode"
	FlagPixels         = "pixels"
	FlagMaxDelta       = "max-delta"
	FlagPolicy         = "policy"
	FlagTemperature    = "temperature"
	FlagCooling        = "cooling"
	FlagMinTemperature = "min-temperature"
	FlagSchedule       = "schedule"
	FlagMaxIterations  = "max-iterations"
	FlagTimeBudget     = "time-budget"
	FlagThreshold      = "threshold"
	FlagSeed           = "seed"
	FlagBatch          = "batch"
	FlagBackend        = "backend"
	FlagLogEvery       = "log-every"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagReportInterval = "report-interval"
)

// SearchFlags are the flags of "hashart search".
var SearchFlags = FlagSet{
	FlagSource:         {Name: "source", Shorthand: "s", ViperKey: "source", Description: "Source image to perturb"},
	FlagTarget:         {Name: "target", Shorthand: "t", ViperKey: "target", Description: "Target image whose block hashes are searched for"},
	FlagOutput:         {Name: "output", Shorthand: "o", ViperKey: "output", Description: "Output image (png, bmp or webp)"},
	FlagDecoder:        {Name: "decoder", ViperKey: "image.decoder", Description: "Image decoder (std, gocv)"},
	FlagGrayscale:      {Name: "grayscale", ViperKey: "image.grayscale", Description: "Convert both images to grayscale"},
	FlagHeadroom:       {Name: "headroom", ViperKey: "image.headroom", Description: "Darken the source by max-delta so additive edits never clip"},
	FlagInvertTarget:   {Name: "invert-target", ViperKey: "image.invert_target", Description: "Without --target, search for the inverted source"},
	FlagBlockSize:      {Name: "block-size", Shorthand: "b", ViperKey: "search.block_size", Description: "Block size, N or WxH"},
	FlagEdge:           {Name: "edge", ViperKey: "search.edge", Description: "Partial edge blocks: drop or pad"},
	FlagPadFill:        {Name: "pad-fill", ViperKey: "search.pad_fill", Description: "Fill byte for padded blocks"},
	FlagHash:           {Name: "hash", ViperKey: "search.hash", Description: "Block hash: sha512, sha256, sha1, md5, fnv64a, blake2b-256, sha3-256"},
	FlagMode:           {Name: "mode", Shorthand: "m", ViperKey: "search.mode", Description: "Perturbation mode: block or pixel"},
	FlagPixels:         {Name: "pixels", ViperKey: "search.pixels", Description: "Bytes edited per perturbation in pixel mode"},
	FlagMaxDelta:       {Name: "max-delta", ViperKey: "search.max_delta", Description: "Maximum change of one byte"},
	FlagPolicy:         {Name: "policy", ViperKey: "search.policy", Description: "Acceptance policy: greedy or anneal"},
	FlagTemperature:    {Name: "temperature", ViperKey: "search.temperature", Description: "Initial annealing temperature"},
	FlagCooling:        {Name: "cooling", ViperKey: "search.cooling", Description: "Cooling factor (exponential) or step (linear)"},
	FlagMinTemperature: {Name: "min-temperature", ViperKey: "search.min_temperature", Description: "Temperature floor"},
	FlagSchedule:       {Name: "schedule", ViperKey: "search.schedule", Description: "Temperature schedule: exponential or linear"},
	FlagMaxIterations:  {Name: "max-iterations", Shorthand: "n", ViperKey: "search.max_iterations", Description: "Iteration cap (0 stops right after setup)"},
	FlagTimeBudget:     {Name: "time-budget", ViperKey: "search.time_budget", Description: "Stop after this duration (0s disables)"},
	FlagThreshold:      {Name: "threshold", ViperKey: "search.threshold", Description: "Stop once the distance is at or below this value"},
	FlagSeed:           {Name: "seed", ViperKey: "search.seed", Description: "Random seed"},
	FlagBatch:          {Name: "batch", ViperKey: "search.batch", Description: "Trials evaluated per iteration"},
	FlagBackend:        {Name: "backend", ViperKey: "search.backend", Description: "Evaluation backend: sequential, parallel or gpu"},
	FlagLogEvery:       {Name: "log-every", ViperKey: "search.log_every", Description: "Log progress every N iterations (0 disables)"},
	FlagReportInterval: {Name: "report-interval", ViperKey: "profile.report_interval", Description: "Profiler report interval, e.g. 5s (empty disables)"},
}

// RootFlags are the persistent flags of the root command.
var RootFlags = FlagSet{
	FlagLogLevel:  {Name: "log-level", ViperKey: "log.level", Description: "Log level: debug, info, warn, error"},
	FlagLogFormat: {Name: "log-format", ViperKey: "log.format", Description: "Log format: pretty, text or json"},
}

// Keys returns the registry keys of fs.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

func lookup(fs FlagSet, key string) (Flag, bool) {
	def, ok := fs[key]
	return def, ok
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaults().GetInt(def.ViperKey), def.Description)
}

// AddUint64Flag registers a uint64 flag on cmd from the given FlagSet.
func AddUint64Flag(cmd *cobra.Command, fs FlagSet, key string, target *uint64) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().Uint64VarP(target, def.Name, def.Shorthand, defaults().GetUint64(def.ViperKey), def.Description)
}

// AddUint8Flag registers a uint8 flag on cmd from the given FlagSet.
func AddUint8Flag(cmd *cobra.Command, fs FlagSet, key string, target *uint8) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().Uint8VarP(target, def.Name, def.Shorthand, defaults().GetUint8(def.ViperKey), def.Description)
}

// AddFloat64Flag registers a float64 flag on cmd from the given FlagSet.
func AddFloat64Flag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaults().GetFloat64(def.ViperKey), def.Description)
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaults().GetBool(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds already-registered flags to viper. Call it in
// PreRunE after InitViper so that flags take precedence over env, file and defaults.
// Persistent flags of parent commands are found too.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(def.Name)
		}
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only the defaults.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

// AddPersistentStringFlag registers a string flag inherited by every subcommand of cmd.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := lookup(fs, key)
	if !ok {
		return
	}
	cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}
