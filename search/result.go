package search

import (
	"time"

	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Result is the read-out of a terminated search.
type Result struct {
	// Image is a copy of the best candidate.
	Image           *images.Image
	Distance        uint64
	InitialDistance uint64
	Blocks          int
	// Mismatched counts the best candidate's blocks whose hash differs from the
	// target's. It equals Distance unless block weights are set.
	Mismatched   int
	Iterations   uint64
	Accepted     uint64
	Rejected     uint64
	Skipped      uint64
	Improvements uint64
	Reason       Reason
	Elapsed      time.Duration
	Seed         uint64
}

// Matched reports whether every block hash matches the target.
func (r *Result) Matched() bool {
	return r.Distance == 0
}

// Result returns the best candidate of a terminated search. It does not modify
// the controller and may be called any number of times.
func (c *Controller) Result() (*Result, error) {
	s := &c.state
	if s.Phase != PhaseTerminated {
		return nil, errs.Setupf("search.Result", errs.ErrNotTerminated, "phase %s", s.Phase)
	}
	bestHashes, err := c.hasher.HashSet(s.Best, c.grid)
	if err != nil {
		return nil, err
	}
	mismatched := 0
	for i, h := range bestHashes {
		if h != c.target[i] {
			mismatched++
		}
	}

	return &Result{
		Image:           s.Best.Clone(),
		Distance:        s.BestDistance,
		InitialDistance: s.InitialDistance,
		Blocks:          c.grid.Len(),
		Mismatched:      mismatched,
		Iterations:      s.Iteration,
		Accepted:        s.Accepted,
		Rejected:        s.Rejected,
		Skipped:         s.Skipped,
		Improvements:    s.Improvements,
		Reason:          s.Reason,
		Elapsed:         s.Elapsed,
		Seed:            c.cfg.Seed,
	}, nil
}
