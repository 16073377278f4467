// Package search - The brute-force block-hash search: a single-owner controller
// that proposes perturbations, scores them against the target's HashSet, accepts
// or rejects them and tracks the best candidate until a stop condition holds.
package search

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/logger"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/profiler"
	"github.com/Niederb/hash-art/scoring"
)

// Progress is reported to an Observer after every iteration.
type Progress struct {
	Iteration       uint64
	CurrentDistance uint64
	BestDistance    uint64
	Accepted        bool
	Skipped         bool
}

// Observer is called synchronously on the search goroutine.
type Observer func(Progress)

// Controller drives one search run. It is not safe for concurrent use, except
// for CollectMetrics which the profiler may call from another goroutine.
type Controller struct {
	cfg      Config
	log      *slog.Logger
	prof     *profiler.RuntimeProfiler
	clock    func() time.Time
	observer Observer

	grid     blocks.Grid
	hasher   *hashing.Hasher
	scorer   scoring.Scorer
	engine   *perturb.Engine
	acceptor Acceptor
	eval     Evaluator
	target   hashing.HashSet

	state  State
	trials []Trial

	// Mirrors of the state for CollectMetrics.
	iterations atomic.Uint64
	best       atomic.Uint64
	current    atomic.Uint64
	accepted   atomic.Uint64
	startedAt  atomic.Int64
}

// Builder assembles a Controller with a fluent API.
type Builder struct {
	source   *images.Image
	target   *images.Image
	cfg      Config
	log      *slog.Logger
	prof     *profiler.RuntimeProfiler
	eval     Evaluator
	clock    func() time.Time
	observer Observer
	err      error
}

// NewBuilder creates a builder preloaded with DefaultConfig.
//
// Returns:
//   - *Builder: The builder.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), clock: time.Now}
}

// WithSource sets the image the search starts from. It is cloned, never modified.
func (b *Builder) WithSource(img *images.Image) *Builder {
	if b.HasError() {
		return b
	}
	if err := img.Validate(); err != nil {
		b.err = errors.Wrap(err, "source")
		return b
	}
	b.source = img
	return b
}

// WithTarget sets the image whose block hashes the search tries to reproduce.
func (b *Builder) WithTarget(img *images.Image) *Builder {
	if b.HasError() {
		return b
	}
	if err := img.Validate(); err != nil {
		b.err = errors.Wrap(err, "target")
		return b
	}
	b.target = img
	return b
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.cfg = cfg
	return b
}

// WithLogger sets the logger. Defaults to a discarding logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.log = l
	return b
}

// WithProfiler records iteration timings and registers the controller as a metrics collector.
func (b *Builder) WithProfiler(p *profiler.RuntimeProfiler) *Builder {
	b.prof = p
	return b
}

// WithEvaluator overrides the evaluator selected by Config.Backend.
func (b *Builder) WithEvaluator(e Evaluator) *Builder {
	b.eval = e
	return b
}

// WithClock overrides time.Now for the time budget.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// WithObserver registers a per-iteration callback.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// HasError checks if the builder has recorded an error.
func (b *Builder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the controller and panics if there is an error.
func (b *Builder) MustBuild() *Controller {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// Build partitions and hashes both images and computes the initial distance.
//
// Returns:
//   - *Controller: A controller in PhaseInit.
//   - error: A setup error (errs.ErrEmptyImage, errs.ErrInvalidBlockSize,
//     errs.ErrBlockGridMismatch, errs.ErrInvalidConfig or errs.ErrBackendUnavailable).
func (b *Builder) Build() (*Controller, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.source == nil {
		return nil, errs.Setupf("search.Build", errs.ErrEmptyImage, "source not configured")
	}
	if b.target == nil {
		return nil, errs.Setupf("search.Build", errs.ErrEmptyImage, "target not configured")
	}

	cfg := b.cfg
	sourceGrid, err := blocks.NewGrid(b.source.Width, b.source.Height, b.source.Channels, cfg.Blocks)
	if err != nil {
		return nil, errors.Wrap(err, "source grid")
	}
	targetGrid, err := blocks.NewGrid(b.target.Width, b.target.Height, b.target.Channels, cfg.Blocks)
	if err != nil {
		return nil, errors.Wrap(err, "target grid")
	}
	if err := blocks.CheckAligned(sourceGrid, targetGrid); err != nil {
		return nil, err
	}

	scorer := scoring.Scorer{Weights: cfg.Weights}
	if err := scorer.Validate(sourceGrid.Len()); err != nil {
		return nil, err
	}

	hasher, err := hashing.NewHasher(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	engine, err := perturb.NewEngine(cfg.Perturb, sourceGrid)
	if err != nil {
		return nil, err
	}

	eval := b.eval
	if eval == nil {
		if eval, err = NewEvaluator(cfg.Backend, cfg.Algorithm); err != nil {
			return nil, err
		}
	}

	current := b.source.Clone()
	currentHashes, err := hasher.HashSet(current, sourceGrid)
	if err != nil {
		return nil, err
	}
	targetHashes, err := hasher.HashSet(b.target, targetGrid)
	if err != nil {
		return nil, err
	}
	distance, err := scorer.Distance(currentHashes, targetHashes)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		log:      logger.OrNop(b.log),
		prof:     b.prof,
		clock:    b.clock,
		observer: b.observer,
		grid:     sourceGrid,
		hasher:   hasher,
		scorer:   scorer,
		engine:   engine,
		acceptor: NewAcceptor(cfg),
		eval:     eval,
		target:   targetHashes,
		trials:   make([]Trial, 0, cfg.BatchSize),
		state: State{
			Phase:           PhaseInit,
			Current:         current,
			CurrentHashes:   currentHashes,
			CurrentDistance: distance,
			Best:            current.Clone(),
			BestDistance:    distance,
			InitialDistance: distance,
			rng:             newRNG(cfg.Seed),
		},
	}
	c.publish()
	if c.prof != nil {
		c.prof.AddMetricsCollector(c)
	}

	c.log.Info("search initialised",
		"blocks", sourceGrid.Len(),
		"grid", slog.GroupValue(slog.Int("cols", sourceGrid.Cols), slog.Int("rows", sourceGrid.Rows)),
		"block_size", cfg.Blocks.Size.String(),
		"edge", cfg.Blocks.Policy.String(),
		"hash", cfg.Algorithm.String(),
		"mode", cfg.Perturb.Mode.String(),
		"policy", c.acceptor.Name(),
		"backend", string(eval.Backend()),
		"seed", cfg.Seed,
		"distance", distance,
	)
	return c, nil
}

// New is shorthand for NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).Build().
func New(source, target *images.Image, cfg Config) (*Controller, error) {
	return NewBuilder().WithSource(source).WithTarget(target).WithConfig(cfg).Build()
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase { return c.state.Phase }

// Grid returns the block grid shared by source and target.
func (c *Controller) Grid() blocks.Grid { return c.grid }

// Run iterates until a stop condition holds and returns the result. Cancelling
// ctx is a normal stop condition: the best candidate so far is returned without error.
//
// Arguments:
//   - ctx: Checked once per iteration boundary.
//
// Returns:
//   - *Result: The best candidate found.
//   - error: A setup error wrapping errs.ErrTerminated if the controller already ran.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if err := c.state.transition(PhaseIterating); err != nil {
		return nil, err
	}
	c.state.Started = c.clock()
	c.startedAt.Store(c.state.Started.UnixNano())

	for {
		if reason := c.shouldStop(ctx); reason != ReasonNone {
			c.terminate(reason)
			break
		}
		c.step(ctx)
	}
	return c.Result()
}

// shouldStop evaluates the stop conditions in priority order.
func (c *Controller) shouldStop(ctx context.Context) Reason {
	s := &c.state
	switch {
	case s.BestDistance == 0:
		return ReasonExactMatch
	case c.cfg.Threshold > 0 && s.BestDistance <= c.cfg.Threshold:
		return ReasonThreshold
	case s.Iteration >= c.cfg.MaxIterations:
		return ReasonMaxIterations
	case c.cfg.TimeBudget > 0 && c.clock().Sub(s.Started) >= c.cfg.TimeBudget:
		return ReasonTimeBudget
	case ctx.Err() != nil:
		return ReasonCancelled
	}
	return ReasonNone
}

func (c *Controller) terminate(reason Reason) {
	s := &c.state
	// Iterating -> Terminated is always legal here.
	_ = s.transition(PhaseTerminated)
	s.Reason = reason
	s.Elapsed = c.clock().Sub(s.Started)

	c.log.Info("search terminated",
		"reason", reason.String(),
		"iterations", s.Iteration,
		"distance", s.BestDistance,
		"initial_distance", s.InitialDistance,
		"accepted", s.Accepted,
		"skipped", s.Skipped,
		"elapsed", s.Elapsed,
	)
}

// step runs one iteration. Every mutation of the state happens after all trials
// are evaluated, so cancellation between iterations never observes a partial update.
func (c *Controller) step(ctx context.Context) {
	if c.prof != nil {
		defer c.prof.StartOperation("iteration")()
	}
	s := &c.state

	// 1. Propose serially from the single generator.
	c.trials = c.trials[:0]
	for i := 0; i < c.cfg.BatchSize; i++ {
		p, err := c.engine.Propose(s.rng, s.Current)
		if err != nil {
			c.log.Debug("proposal failed", "iteration", s.Iteration, "trial", i, "error", err)
			continue
		}
		c.trials = append(c.trials, Trial{Index: i, Perturbation: p})
	}

	// 2. Evaluate against the read-only view.
	view := View{
		Image:    s.Current,
		Hashes:   s.CurrentHashes,
		Target:   c.target,
		Distance: s.CurrentDistance,
		Grid:     c.grid,
		Scorer:   c.scorer,
	}
	outcomes, err := c.eval.Evaluate(ctx, view, c.trials)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before evaluating; the next boundary check terminates.
			return
		}
		c.log.Debug("evaluation failed", "iteration", s.Iteration, "error", err)
		c.skip()
		return
	}

	// 3. Reduce: arg-min distance, ties to the lowest trial index.
	winner := -1
	for i, o := range outcomes {
		if o.Err != nil {
			c.log.Debug("trial failed", "iteration", s.Iteration, "trial", o.Index, "error", o.Err)
			continue
		}
		if winner < 0 || o.Distance < outcomes[winner].Distance {
			winner = i
		}
	}
	if winner < 0 {
		c.skip()
		return
	}

	w := outcomes[winner]
	p := c.trials[winner].Perturbation

	// 4. Acceptance.
	accepted := c.acceptor.Accept(s.rng, s.Iteration, s.CurrentDistance, w.Distance)

	// 5. Best tracking, independent of acceptance.
	improved := w.Distance < s.BestDistance
	if accepted || improved {
		if err := p.Apply(s.Current); err != nil {
			c.log.Debug("apply failed", "iteration", s.Iteration, "error", err)
			c.skip()
			return
		}
		if improved {
			// Shapes are equal by construction.
			_ = s.Best.CopyFrom(s.Current)
			s.BestDistance = w.Distance
			s.Improvements++
			c.log.Debug("improved", "iteration", s.Iteration, "distance", w.Distance)
		}
		if accepted {
			for k, block := range w.Touched {
				s.CurrentHashes[block] = w.Hashes[k]
			}
			s.CurrentDistance = w.Distance
		} else {
			_ = p.Revert(s.Current)
		}
	}
	if accepted {
		s.Accepted++
	} else {
		s.Rejected++
	}

	c.advance(Progress{Accepted: accepted})
}

func (c *Controller) skip() {
	c.state.Skipped++
	c.advance(Progress{Skipped: true})
}

// advance closes an iteration: counters, metrics mirrors, observer and progress log.
func (c *Controller) advance(p Progress) {
	s := &c.state
	s.Iteration++
	c.publish()

	p.Iteration = s.Iteration
	p.CurrentDistance = s.CurrentDistance
	p.BestDistance = s.BestDistance
	if c.observer != nil {
		c.observer(p)
	}

	if c.cfg.LogEvery > 0 && s.Iteration%c.cfg.LogEvery == 0 {
		attrs := []any{
			"iteration", s.Iteration,
			"distance", s.CurrentDistance,
			"best", s.BestDistance,
			"accepted", s.Accepted,
			"skipped", s.Skipped,
		}
		if a, ok := c.acceptor.(*Annealing); ok {
			attrs = append(attrs, "temperature", a.Temperature(s.Iteration))
		}
		c.log.Info("search progress", attrs...)
	}
}

func (c *Controller) publish() {
	c.iterations.Store(c.state.Iteration)
	c.best.Store(c.state.BestDistance)
	c.current.Store(c.state.CurrentDistance)
	c.accepted.Store(c.state.Accepted)
}

// CollectMetrics implements profiler.MetricsCollector.
func (c *Controller) CollectMetrics() map[string]float64 {
	iterations := float64(c.iterations.Load())
	metrics := map[string]float64{
		"iterations":       iterations,
		"best_distance":    float64(c.best.Load()),
		"current_distance": float64(c.current.Load()),
		"accepted":         float64(c.accepted.Load()),
	}
	if started := c.startedAt.Load(); started != 0 {
		if secs := time.Since(time.Unix(0, started)).Seconds(); secs > 0 {
			metrics["iterations_per_second"] = iterations / secs
		}
	}
	return metrics
}
