package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/perturb"
)

// Policy decides whether a proposed edit replaces the current candidate.
type Policy uint8

const (
	// PolicyGreedy accepts an edit iff it does not increase the distance.
	PolicyGreedy Policy = iota
	// PolicyAnneal also accepts worse edits with probability exp(-increase/T).
	PolicyAnneal
)

func (p Policy) String() string {
	switch p {
	case PolicyGreedy:
		return "greedy"
	case PolicyAnneal:
		return "anneal"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy parses "greedy" or "anneal".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "greedy":
		return PolicyGreedy, nil
	case "anneal", "annealing":
		return PolicyAnneal, nil
	default:
		return PolicyGreedy, errs.Setupf("search.ParsePolicy", errs.ErrInvalidConfig, "unknown policy %q", s)
	}
}

// Schedule is the annealing temperature decay.
type Schedule uint8

const (
	// ScheduleExponential multiplies the temperature by Cooling every iteration.
	ScheduleExponential Schedule = iota
	// ScheduleLinear subtracts Cooling every iteration.
	ScheduleLinear
)

func (s Schedule) String() string {
	switch s {
	case ScheduleExponential:
		return "exponential"
	case ScheduleLinear:
		return "linear"
	default:
		return fmt.Sprintf("Schedule(%d)", uint8(s))
	}
}

// ParseSchedule parses "exponential" or "linear".
func ParseSchedule(s string) (Schedule, error) {
	switch strings.ToLower(s) {
	case "", "exponential", "exp":
		return ScheduleExponential, nil
	case "linear":
		return ScheduleLinear, nil
	default:
		return ScheduleExponential, errs.Setupf("search.ParseSchedule", errs.ErrInvalidConfig, "unknown schedule %q", s)
	}
}

// Backend names an Evaluator implementation.
type Backend string

// Evaluation backends.
const (
	BackendSequential Backend = "sequential"
	BackendParallel   Backend = "parallel"
	BackendGPU        Backend = "gpu"
)

// ParseBackend validates a backend name. The empty string selects BackendSequential.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case "":
		return BackendSequential, nil
	case BackendSequential, BackendParallel, BackendGPU:
		return b, nil
	default:
		return BackendSequential, errs.Setupf("search.ParseBackend", errs.ErrInvalidConfig, "unknown backend %q", s)
	}
}

// Config holds every tunable of a search run.
type Config struct {
	Blocks    blocks.Options    `json:"blocks" yaml:"blocks"`
	Algorithm hashing.Algorithm `json:"algorithm" yaml:"algorithm"`
	Perturb   perturb.Config    `json:"perturb" yaml:"perturb"`

	Policy Policy `json:"policy" yaml:"policy"`
	// Temperature is the initial annealing temperature.
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// Cooling is the decay factor (exponential, in (0,1)) or step (linear, > 0).
	Cooling float32 `json:"cooling" yaml:"cooling"`
	// MinTemperature floors the schedule.
	MinTemperature float32  `json:"min_temperature" yaml:"min_temperature"`
	Schedule       Schedule `json:"schedule" yaml:"schedule"`

	// MaxIterations caps the loop. 0 terminates right after initialisation.
	MaxIterations uint64 `json:"max_iterations" yaml:"max_iterations"`
	// TimeBudget stops the loop once exceeded. 0 disables it.
	TimeBudget time.Duration `json:"time_budget" yaml:"time_budget"`
	// Threshold stops the loop once the best distance is at or below it. 0 means exact match only.
	Threshold uint64 `json:"threshold" yaml:"threshold"`

	Seed uint64 `json:"seed" yaml:"seed"`
	// BatchSize is the number of trials evaluated per iteration.
	BatchSize int     `json:"batch_size" yaml:"batch_size"`
	Backend   Backend `json:"backend" yaml:"backend"`
	// Weights optionally weighs each block position in the distance.
	Weights []uint32 `json:"weights,omitempty" yaml:"weights,omitempty"`

	// LogEvery logs a progress line every LogEvery iterations. 0 disables it.
	LogEvery uint64 `json:"log_every" yaml:"log_every"`
}

// DefaultConfig returns 8x8 blocks, SHA-512, block perturbations with a maximum
// delta of 2, greedy acceptance and a one million iteration cap.
func DefaultConfig() Config {
	return Config{
		Blocks:         blocks.DefaultOptions(),
		Algorithm:      hashing.DefaultAlgorithm,
		Perturb:        perturb.DefaultConfig(),
		Policy:         PolicyGreedy,
		Temperature:    1,
		Cooling:        0.9999,
		MinTemperature: 1e-3,
		Schedule:       ScheduleExponential,
		MaxIterations:  1_000_000,
		Seed:           1,
		BatchSize:      1,
		Backend:        BackendSequential,
		LogEvery:       100_000,
	}
}

// Validate checks the parameters that are independent of the images.
func (c Config) Validate() error {
	if err := c.Perturb.Validate(); err != nil {
		return err
	}
	if _, err := c.Algorithm.New(); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		return errs.Setupf("search.Config", errs.ErrInvalidConfig, "batch size %d must be >= 1", c.BatchSize)
	}
	if c.TimeBudget < 0 {
		return errs.Setupf("search.Config", errs.ErrInvalidConfig, "negative time budget %s", c.TimeBudget)
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}

	if c.Policy != PolicyAnneal {
		return nil
	}
	if c.Temperature <= 0 || c.MinTemperature < 0 {
		return errs.Setupf("search.Config", errs.ErrInvalidConfig, "temperature %g / min %g", c.Temperature, c.MinTemperature)
	}
	switch c.Schedule {
	case ScheduleExponential:
		if c.Cooling <= 0 || c.Cooling >= 1 {
			return errs.Setupf("search.Config", errs.ErrInvalidConfig, "exponential cooling %g not in (0,1)", c.Cooling)
		}
	case ScheduleLinear:
		if c.Cooling <= 0 {
			return errs.Setupf("search.Config", errs.ErrInvalidConfig, "linear cooling %g must be > 0", c.Cooling)
		}
	default:
		return errs.Setupf("search.Config", errs.ErrInvalidConfig, "unknown schedule %s", c.Schedule)
	}
	return nil
}
