// Package scoring - Position-aligned distance between two HashSets.
//
// Each BlockHash is an opaque token: a position either matches or it does not.
// The distance is the number (or weighted sum) of mismatching positions.
package scoring

import (
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
)

// Scorer compares HashSets. The zero value weighs every block 1.
type Scorer struct {
	// Weights optionally assigns an integer weight to each block position.
	Weights []uint32
}

// Validate checks that the weights, if any, cover n blocks and are all positive.
// A zero weight would let a mismatching position score 0.
func (s Scorer) Validate(n int) error {
	if s.Weights == nil {
		return nil
	}
	if len(s.Weights) != n {
		return errs.Setupf("scoring.Validate", errs.ErrBlockGridMismatch, "%d weights for %d blocks", len(s.Weights), n)
	}
	for i, w := range s.Weights {
		if w == 0 {
			return errs.Setupf("scoring.Validate", errs.ErrInvalidConfig, "weight of block %d is 0", i)
		}
	}
	return nil
}

func (s Scorer) weight(i int) uint64 {
	if s.Weights == nil {
		return 1
	}
	return uint64(s.Weights[i])
}

// Max is the distance of two sets of n blocks that differ everywhere.
func (s Scorer) Max(n int) uint64 {
	if s.Weights == nil {
		return uint64(n)
	}
	var total uint64
	for i := 0; i < n; i++ {
		total += s.weight(i)
	}
	return total
}

// Distance counts the positions where candidate and target differ.
//
// Arguments:
//   - candidate: The HashSet of the working image.
//   - target: The HashSet of the target image.
//
// Returns:
//   - uint64: 0 iff the sets are identical, len (unweighted) iff every position differs.
//   - error: A setup error wrapping errs.ErrBlockGridMismatch for unequal lengths.
func (s Scorer) Distance(candidate, target hashing.HashSet) (uint64, error) {
	if len(candidate) != len(target) {
		return 0, errs.Setupf("scoring.Distance", errs.ErrBlockGridMismatch,
			"candidate has %d blocks, target %d", len(candidate), len(target))
	}
	if err := s.Validate(len(target)); err != nil {
		return 0, err
	}

	var d uint64
	for i := range target {
		if candidate[i] != target[i] {
			d += s.weight(i)
		}
	}
	return d, nil
}

// Change is the distance delta at position i when its digest goes from old to updated.
func (s Scorer) Change(i int, old, updated, target hashing.BlockHash) int64 {
	var delta int64
	if old != target {
		delta -= int64(s.weight(i))
	}
	if updated != target {
		delta += int64(s.weight(i))
	}
	return delta
}

// Delta is the distance change between old and updated when only indices differ:
// Distance(old) + Delta == Distance(updated). Duplicate indices are counted once.
func (s Scorer) Delta(old, updated, target hashing.HashSet, indices []int) int64 {
	var delta int64
	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		delta += s.Change(i, old[i], updated[i], target[i])
	}
	return delta
}

// Apply adds delta to distance.
func Apply(distance uint64, delta int64) uint64 {
	if delta < 0 {
		return distance - uint64(-delta)
	}
	return distance + uint64(delta)
}

// Distance is Scorer{}.Distance.
func Distance(candidate, target hashing.HashSet) (uint64, error) {
	return Scorer{}.Distance(candidate, target)
}
