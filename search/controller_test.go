package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/profiler"
	"github.com/Niederb/hash-art/scoring"
)

// MockEvaluator fails every trial.
type MockEvaluator struct {
	calls int
}

func (m *MockEvaluator) Evaluate(_ context.Context, _ View, trials []Trial) ([]Outcome, error) {
	m.calls++
	out := make([]Outcome, len(trials))
	for i, tr := range trials {
		out[i] = Outcome{Index: tr.Index, Err: errs.Iterationf("mock", errs.ErrOutOfBounds, "trial %d", tr.Index)}
	}
	return out, nil
}

func (m *MockEvaluator) Backend() Backend { return "mock" }

// BrokenEvaluator fails the whole batch.
type BrokenEvaluator struct{}

func (BrokenEvaluator) Evaluate(context.Context, View, []Trial) ([]Outcome, error) {
	return nil, errs.Iterationf("broken", errs.ErrBackendUnavailable, "device lost")
}

func (BrokenEvaluator) Backend() Backend { return "broken" }

func colourPair(t *testing.T) (*images.Image, *images.Image) {
	source := newImage(t, 16, 16, images.ChannelsRGB, func(i int) byte { return byte(i * 7) })
	target := newImage(t, 16, 16, images.ChannelsRGB, func(i int) byte { return byte(i*11 + 5) })
	return source, target
}

func TestIdenticalImagesTerminateImmediately(t *testing.T) {
	source, _ := colourPair(t)
	var calls int

	c, err := NewBuilder().
		WithSource(source).
		WithTarget(source.Clone()).
		WithObserver(func(Progress) { calls++ }).
		Build()
	require.NoError(t, err)
	assert.Equal(t, PhaseInit, c.Phase())

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonExactMatch, res.Reason)
	assert.True(t, res.Matched())
	assert.Zero(t, res.Iterations)
	assert.Zero(t, res.Accepted)
	assert.Zero(t, calls, "no perturbation may be applied")
	assert.True(t, res.Image.Equal(source))
	assert.Equal(t, PhaseTerminated, c.Phase())
}

func TestZeroIterationCap(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.Blocks = blocks.Options{Size: blocks.Size{W: 4, H: 4}}
	cfg.MaxIterations = 0

	c, err := New(source, target, cfg)
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonMaxIterations, res.Reason)
	assert.Zero(t, res.Iterations)
	assert.True(t, res.Image.Equal(source))
	assert.Equal(t, res.InitialDistance, res.Distance)
	assert.Equal(t, uint64(16), res.Distance)
	assert.Equal(t, 16, res.Blocks)
	assert.Equal(t, 16, res.Mismatched)
}

func TestWeightedDistanceKeepsBlockCount(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	cfg.Weights = []uint32{3, 1, 4, 1}

	c, err := New(source, target, cfg)
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(9), res.Distance)
	assert.Equal(t, 4, res.Mismatched)
	assert.False(t, res.Matched())
}

func TestSetupErrors(t *testing.T) {
	source, target := colourPair(t)
	small := newImage(t, 8, 8, images.ChannelsRGB, func(int) byte { return 0 })

	oversize := DefaultConfig()
	oversize.Blocks.Size = blocks.Size{W: 32, H: 32}

	gpu := DefaultConfig()
	gpu.Backend = BackendGPU

	badBatch := DefaultConfig()
	badBatch.BatchSize = 0

	weights := DefaultConfig()
	weights.Weights = []uint32{1, 2}

	zeroWeight := DefaultConfig()
	zeroWeight.Weights = []uint32{1, 1, 0, 1}

	tests := []struct {
		name     string
		source   *images.Image
		target   *images.Image
		cfg      Config
		sentinel error
	}{
		{name: "oversize block", source: source, target: target, cfg: oversize, sentinel: errs.ErrInvalidBlockSize},
		{name: "grid mismatch", source: source, target: small, cfg: DefaultConfig(), sentinel: errs.ErrBlockGridMismatch},
		{name: "empty source", source: &images.Image{}, target: target, cfg: DefaultConfig(), sentinel: errs.ErrEmptyImage},
		{name: "nil target", source: source, target: nil, cfg: DefaultConfig(), sentinel: errs.ErrEmptyImage},
		{name: "gpu backend", source: source, target: target, cfg: gpu, sentinel: errs.ErrBackendUnavailable},
		{name: "batch size", source: source, target: target, cfg: badBatch, sentinel: errs.ErrInvalidConfig},
		{name: "weights length", source: source, target: target, cfg: weights, sentinel: errs.ErrBlockGridMismatch},
		{name: "zero weight", source: source, target: target, cfg: zeroWeight, sentinel: errs.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.source, tt.target, tt.cfg)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, errs.IsFatal(err))
		})
	}

	assert.Panics(t, func() { NewBuilder().WithSource(source).MustBuild() })
}

func TestFindsExactMatch(t *testing.T) {
	for _, mode := range []perturb.Config{
		{Mode: perturb.ModePixel, Pixels: 1, MaxDelta: 1},
		{Mode: perturb.ModeBlock, MaxDelta: 2},
	} {
		t.Run(mode.Mode.String(), func(t *testing.T) {
			// From 0 the only reachable change of the differing pixel is +1.
			source := newImage(t, 2, 2, images.ChannelsGray, func(i int) byte { return byte(40 * i) })
			target := source.Clone()
			target.Pix[0] = 1

			cfg := DefaultConfig()
			cfg.Blocks = blocks.Options{Size: blocks.Size{W: 1, H: 1}}
			cfg.Perturb = mode
			cfg.MaxIterations = 10_000
			cfg.Seed = 99

			c, err := New(source, target, cfg)
			require.NoError(t, err)
			res, err := c.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, ReasonExactMatch, res.Reason)
			assert.True(t, res.Image.Equal(target))
			assert.Equal(t, uint64(1), res.InitialDistance)
			assert.Equal(t, uint64(1), res.Improvements)
			assert.Less(t, res.Iterations, cfg.MaxIterations)
		})
	}
}

func TestThreshold(t *testing.T) {
	source, target, cfg := nearTarget(t)
	cfg.Threshold = 3
	cfg.MaxIterations = 20_000

	c, err := New(source, target, cfg)
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonThreshold, res.Reason)
	assert.LessOrEqual(t, res.Distance, uint64(3))
}

func TestBestIsMonotonicAndConsistent(t *testing.T) {
	for _, policy := range []Policy{PolicyGreedy, PolicyAnneal} {
		t.Run(policy.String(), func(t *testing.T) {
			source, target, cfg := nearTarget(t)
			cfg.Policy = policy
			cfg.Temperature = 2
			cfg.Cooling = 0.999
			cfg.BatchSize = 2

			last := ^uint64(0)
			var sawRegression bool
			var prevCurrent uint64 = 4
			c, err := NewBuilder().
				WithSource(source).
				WithTarget(target).
				WithConfig(cfg).
				WithObserver(func(p Progress) {
					assert.LessOrEqual(t, p.BestDistance, last, "iteration %d", p.Iteration)
					assert.LessOrEqual(t, p.BestDistance, p.CurrentDistance)
					if policy == PolicyGreedy {
						assert.LessOrEqual(t, p.CurrentDistance, prevCurrent)
					}
					if p.CurrentDistance > prevCurrent {
						sawRegression = true
					}
					last = p.BestDistance
					prevCurrent = p.CurrentDistance
				}).
				Build()
			require.NoError(t, err)

			res, err := c.Run(context.Background())
			require.NoError(t, err)
			if policy == PolicyAnneal {
				assert.True(t, sawRegression, "annealing should accept some worse candidates")
			}

			// Incremental bookkeeping must agree with a full recomputation.
			h, err := hashing.NewHasher(cfg.Algorithm)
			require.NoError(t, err)
			targetSet, err := h.HashSet(target, c.Grid())
			require.NoError(t, err)

			bestSet, err := h.HashSet(res.Image, c.Grid())
			require.NoError(t, err)
			d, err := scoring.Distance(bestSet, targetSet)
			require.NoError(t, err)
			assert.Equal(t, res.Distance, d)

			currentSet, err := h.HashSet(c.state.Current, c.Grid())
			require.NoError(t, err)
			assert.True(t, currentSet.Equal(c.state.CurrentHashes))
			d, err = scoring.Distance(currentSet, targetSet)
			require.NoError(t, err)
			assert.Equal(t, c.state.CurrentDistance, d)

			assert.True(t, source.Equal(newImage(t, 4, 4, images.ChannelsGray, func(i int) byte { return byte(100 + i) })),
				"the source must never be modified")
		})
	}
}

func TestReproducibleAcrossRunsAndBackends(t *testing.T) {
	run := func(backend Backend) *Result {
		source, target, cfg := nearTarget(t)
		cfg.Policy = PolicyAnneal
		cfg.Temperature = 1.5
		cfg.BatchSize = 3
		cfg.Backend = backend
		cfg.MaxIterations = 300
		cfg.Seed = 2024

		c, err := New(source, target, cfg)
		require.NoError(t, err)
		res, err := c.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	first := run(BackendSequential)
	second := run(BackendSequential)
	parallel := run(BackendParallel)

	assert.True(t, first.Image.Equal(second.Image))
	assert.True(t, first.Image.Equal(parallel.Image))
	assert.Equal(t, first.Distance, parallel.Distance)
	assert.Equal(t, first.Iterations, parallel.Iterations)
	assert.Equal(t, first.Accepted, parallel.Accepted)
	assert.Equal(t, first.Reason, parallel.Reason)
}

func TestIterationErrorsAreSkipped(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 5
	mock := &MockEvaluator{}

	c, err := NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).WithEvaluator(mock).Build()
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, mock.calls)
	assert.Equal(t, uint64(5), res.Skipped)
	assert.Equal(t, uint64(5), res.Iterations)
	assert.Zero(t, res.Accepted)
	assert.True(t, res.Image.Equal(source))
}

func TestEvaluatorFailuresAreSkipped(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 3

	c, err := NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).WithEvaluator(BrokenEvaluator{}).Build()
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonMaxIterations, res.Reason)
	assert.Equal(t, uint64(3), res.Skipped)
	assert.True(t, res.Image.Equal(source))
}

func TestCancellation(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()

	t.Run("before run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c, err := New(source, target, cfg)
		require.NoError(t, err)
		res, err := c.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReasonCancelled, res.Reason)
		assert.Zero(t, res.Iterations)
	})

	t.Run("at iteration boundary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c, err := NewBuilder().
			WithSource(source).
			WithTarget(target).
			WithConfig(cfg).
			WithObserver(func(p Progress) {
				if p.Iteration == 10 {
					cancel()
				}
			}).
			Build()
		require.NoError(t, err)

		res, err := c.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReasonCancelled, res.Reason)
		assert.Equal(t, uint64(10), res.Iterations)
	})
}

func TestTimeBudget(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.TimeBudget = 10 * time.Second
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Second}

	c, err := NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).WithClock(clock.Now).Build()
	require.NoError(t, err)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonTimeBudget, res.Reason)
	assert.Equal(t, uint64(9), res.Iterations)
	assert.Equal(t, 11*time.Second, res.Elapsed)
}

func TestLifecycleErrors(t *testing.T) {
	source, target := colourPair(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 1

	c, err := New(source, target, cfg)
	require.NoError(t, err)

	_, err = c.Result()
	assert.ErrorIs(t, err, errs.ErrNotTerminated)

	first, err := c.Run(context.Background())
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrTerminated)

	again, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.NotSame(t, first.Image, again.Image, "each result owns its pixels")
}

func TestCollectMetrics(t *testing.T) {
	source, target, cfg := nearTarget(t)
	cfg.MaxIterations = 50
	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: nil})

	c, err := NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).WithProfiler(prof).Build()
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	m := c.CollectMetrics()
	assert.Equal(t, float64(c.state.Iteration), m["iterations"])
	assert.Equal(t, float64(c.state.BestDistance), m["best_distance"])
	assert.Contains(t, m, "accepted")

	ops := prof.GetCurrentStats()["operations"].(map[string]interface{})
	require.Contains(t, ops, "iteration")
	assert.Equal(t, int64(c.state.Iteration), ops["iteration"].(map[string]interface{})["count"])
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(PhaseInit, PhaseIterating))
	assert.True(t, CanTransition(PhaseIterating, PhaseTerminated))
	assert.False(t, CanTransition(PhaseInit, PhaseTerminated))
	assert.False(t, CanTransition(PhaseTerminated, PhaseIterating))
	assert.False(t, CanTransition(PhaseIterating, PhaseInit))
}

func BenchmarkSearchLoop(b *testing.B) {
	source := newImage(b, 64, 64, images.ChannelsRGB, func(i int) byte { return byte(i * 7) })
	target := newImage(b, 64, 64, images.ChannelsRGB, func(i int) byte { return byte(i*11 + 5) })

	for _, backend := range []Backend{BackendSequential, BackendParallel} {
		b.Run(string(backend), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Backend = backend
			cfg.BatchSize = 8
			cfg.MaxIterations = uint64(b.N)
			cfg.LogEvery = 0

			c, err := New(source, target, cfg)
			require.NoError(b, err)
			b.ResetTimer()
			_, err = c.Run(context.Background())
			require.NoError(b, err)
		})
	}
}
