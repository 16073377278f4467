package search

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
)

// Phase is the lifecycle state of a Controller.
type Phase uint8

const (
	// PhaseInit is set once both images are hashed and the initial distance is known.
	PhaseInit Phase = iota
	// PhaseIterating is set while the loop runs.
	PhaseIterating
	// PhaseTerminated is terminal.
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseIterating:
		return "iterating"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

var allowedTransitions = map[Phase][]Phase{
	PhaseInit:      {PhaseIterating},
	PhaseIterating: {PhaseTerminated},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Phase) bool {
	for _, p := range allowedTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Reason records why the loop terminated.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonExactMatch
	ReasonThreshold
	ReasonMaxIterations
	ReasonTimeBudget
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExactMatch:
		return "exact match"
	case ReasonThreshold:
		return "threshold reached"
	case ReasonMaxIterations:
		return "iteration cap"
	case ReasonTimeBudget:
		return "time budget"
	case ReasonCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// State is the single-owner search state. Only the Controller mutates it.
type State struct {
	Phase Phase

	Current         *images.Image
	CurrentHashes   hashing.HashSet
	CurrentDistance uint64

	// Best is a candidate achieving BestDistance, the minimum distance ever observed.
	Best         *images.Image
	BestDistance uint64

	InitialDistance uint64
	Iteration       uint64
	Accepted        uint64
	Rejected        uint64
	Skipped         uint64
	Improvements    uint64

	Reason  Reason
	Started time.Time
	Elapsed time.Duration

	rng *rand.Rand
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (s *State) transition(to Phase) error {
	if s.Phase == PhaseTerminated {
		return errs.Setupf("search.transition", errs.ErrTerminated, "cannot enter %s", to)
	}
	if !CanTransition(s.Phase, to) {
		return errs.Setupf("search.transition", errs.ErrInvalidConfig, "illegal transition %s -> %s", s.Phase, to)
	}
	s.Phase = to
	return nil
}
