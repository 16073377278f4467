package search

import (
	"context"
	"runtime"
	"slices"
	"sync"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/scoring"
)

// Trial is one proposed perturbation of the current candidate.
type Trial struct {
	Index        int
	Perturbation perturb.Perturbation
}

// Outcome is the evaluation of a Trial. Touched and Hashes are parallel: the
// blocks the trial changes and their digests after applying it.
type Outcome struct {
	Index    int
	Distance uint64
	Touched  []int
	Hashes   []hashing.BlockHash
	Err      error
}

// View is the read-only state an Evaluator scores trials against.
type View struct {
	Image    *images.Image
	Hashes   hashing.HashSet
	Target   hashing.HashSet
	Distance uint64
	Grid     blocks.Grid
	Scorer   scoring.Scorer
}

// Evaluator scores a batch of trials. Implementations must not mutate the view
// and must return one Outcome per trial, in trial order. The returned error is
// reserved for cancellation; per-trial failures go into Outcome.Err.
type Evaluator interface {
	Evaluate(ctx context.Context, view View, trials []Trial) ([]Outcome, error)
	Backend() Backend
}

// NewEvaluator returns the evaluator for backend.
//
// Arguments:
//   - backend: BackendSequential, BackendParallel or BackendGPU.
//   - alg: The block hash algorithm.
//
// Returns:
//   - Evaluator: The evaluator.
//   - error: A setup error wrapping errs.ErrBackendUnavailable for BackendGPU, which
//     has no hash kernel in this build.
func NewEvaluator(backend Backend, alg hashing.Algorithm) (Evaluator, error) {
	hasher, err := hashing.NewHasher(alg)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendSequential, "":
		return &Sequential{scratch: newScratch(hasher)}, nil
	case BackendParallel:
		return NewParallel(hasher, runtime.NumCPU()), nil
	case BackendGPU:
		return nil, errs.Setupf("search.NewEvaluator", errs.ErrBackendUnavailable, "no GPU hash kernel for %s", alg)
	default:
		return nil, errs.Setupf("search.NewEvaluator", errs.ErrInvalidConfig, "unknown backend %q", backend)
	}
}

type located struct {
	block int
	local int
	value byte
}

// scratch evaluates trials with its own hasher and buffers.
type scratch struct {
	hasher *hashing.Hasher
	buf    []byte
	locs   []located
}

func newScratch(h *hashing.Hasher) *scratch {
	return &scratch{hasher: h}
}

// evaluate applies the trial to copies of the touched blocks only, rehashes them
// and derives the new distance incrementally.
func (s *scratch) evaluate(v View, t Trial) Outcome {
	out := Outcome{Index: t.Index, Distance: v.Distance}

	s.locs = s.locs[:0]
	for _, e := range t.Perturbation.Edits {
		if e.Offset < 0 || e.Offset >= len(v.Image.Pix) {
			out.Err = errs.Iterationf("search.evaluate", errs.ErrOutOfBounds, "trial %d: offset %d", t.Index, e.Offset)
			return out
		}
		if block, local, ok := v.Grid.Locate(e.Offset); ok {
			s.locs = append(s.locs, located{block: block, local: local, value: e.New})
		}
	}
	slices.SortStableFunc(s.locs, func(a, b located) int { return a.block - b.block })

	var delta int64
	for i := 0; i < len(s.locs); {
		block := s.locs[i].block
		s.buf = v.Grid.Bytes(v.Image, block, s.buf)
		for ; i < len(s.locs) && s.locs[i].block == block; i++ {
			s.buf[s.locs[i].local] = s.locs[i].value
		}

		h := s.hasher.Sum(s.buf)
		delta += v.Scorer.Change(block, v.Hashes[block], h, v.Target[block])
		out.Touched = append(out.Touched, block)
		out.Hashes = append(out.Hashes, h)
	}
	out.Distance = scoring.Apply(v.Distance, delta)
	return out
}

// Sequential evaluates trials one after another on the calling goroutine.
type Sequential struct {
	scratch *scratch
}

func (e *Sequential) Evaluate(ctx context.Context, v View, trials []Trial) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(trials))
	for i, t := range trials {
		outcomes[i] = e.scratch.evaluate(v, t)
	}
	return outcomes, nil
}

func (e *Sequential) Backend() Backend { return BackendSequential }

// Parallel fans trials out over up to Workers goroutines, each with a cloned hasher.
type Parallel struct {
	Workers int
	pool    sync.Pool
}

// NewParallel creates a parallel evaluator that clones hasher per worker.
func NewParallel(hasher *hashing.Hasher, workers int) *Parallel {
	p := &Parallel{Workers: max(workers, 1)}
	p.pool.New = func() any { return newScratch(hasher.Clone()) }
	return p
}

func (e *Parallel) Evaluate(ctx context.Context, v View, trials []Trial) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(trials))

	images.ParallelN(e.Workers, len(trials), func(start, end int) {
		s := e.pool.Get().(*scratch)
		defer e.pool.Put(s)

		for i := start; i < end; i++ {
			outcomes[i] = s.evaluate(v, trials[i])
		}
	})
	return outcomes, nil
}

func (e *Parallel) Backend() Backend { return BackendParallel }
