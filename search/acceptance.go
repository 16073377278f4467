package search

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// Acceptor is an acceptance policy. Implementations must draw from rng the same
// number of times on every call so that runs stay reproducible.
type Acceptor interface {
	Accept(rng *rand.Rand, iteration, current, candidate uint64) bool
	Name() string
}

// NewAcceptor builds the acceptor configured by cfg.
func NewAcceptor(cfg Config) Acceptor {
	if cfg.Policy == PolicyAnneal {
		return &Annealing{
			Initial:  cfg.Temperature,
			Cooling:  cfg.Cooling,
			Minimum:  cfg.MinTemperature,
			Schedule: cfg.Schedule,
		}
	}
	return Greedy{}
}

// Greedy accepts edits that do not increase the distance. It never draws.
type Greedy struct{}

func (Greedy) Accept(_ *rand.Rand, _, current, candidate uint64) bool {
	return candidate <= current
}

func (Greedy) Name() string { return PolicyGreedy.String() }

// Annealing accepts worse edits with probability exp(-(candidate-current)/T).
// It draws exactly one uniform per call.
type Annealing struct {
	Initial  float32
	Cooling  float32
	Minimum  float32
	Schedule Schedule
}

// Temperature returns T at the given iteration.
func (a *Annealing) Temperature(iteration uint64) float32 {
	var t float32
	switch a.Schedule {
	case ScheduleLinear:
		t = a.Initial - a.Cooling*float32(iteration)
	default:
		t = a.Initial * math32.Pow(a.Cooling, float32(iteration))
	}
	return math32.Max(t, a.Minimum)
}

func (a *Annealing) Accept(rng *rand.Rand, iteration, current, candidate uint64) bool {
	u := rng.Float32()
	if candidate <= current {
		return true
	}
	t := a.Temperature(iteration)
	if t <= 0 {
		return false
	}
	return u < math32.Exp(-float32(candidate-current)/t)
}

func (a *Annealing) Name() string { return PolicyAnneal.String() }
