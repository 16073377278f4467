// Package pipeline - Wires decoding, preparation, the search controller, the
// runtime profiler and encoding into one end-to-end run.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/config"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/logger"
	"github.com/Niederb/hash-art/profiler"
	"github.com/Niederb/hash-art/search"
)

// Options describes one run.
type Options struct {
	Source string
	Target string
	// Output receives the best candidate. Empty skips writing.
	Output  string
	Decoder string

	Grayscale bool
	Headroom  bool
	// InvertTarget searches for the inverted source when Target is empty.
	InvertTarget bool

	Search search.Config

	// ReportInterval enables periodic profiler reports when > 0.
	ReportInterval time.Duration
	Observer       search.Observer
}

// OptionsFromConfig resolves a loaded configuration into run options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	sc, err := cfg.SearchConfig()
	if err != nil {
		return Options{}, err
	}
	interval, err := cfg.ReportInterval()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Source:         cfg.Source,
		Target:         cfg.Target,
		Output:         cfg.Output,
		Decoder:        cfg.Image.Decoder,
		Grayscale:      cfg.Image.Grayscale,
		Headroom:       cfg.Image.Headroom,
		InvertTarget:   cfg.Image.InvertTarget,
		Search:         sc,
		ReportInterval: interval,
	}, nil
}

// Summary is the outcome of Run.
type Summary struct {
	*search.Result
	Output string
	// Checksum fingerprints the best candidate's pixels.
	Checksum string
}

// Run loads both images, searches and writes the best candidate.
//
// Arguments:
//   - ctx: Cancelling it stops the search; the best candidate so far is still written.
//   - opts: The run options.
//   - log: The logger, nil for none.
//
// Returns:
//   - *Summary: The result, output path and checksum.
//   - error: A setup or IO error.
func Run(ctx context.Context, opts Options, log *slog.Logger) (*Summary, error) {
	log = logger.OrNop(log)

	if opts.Source == "" {
		return nil, errs.Setupf("pipeline.Run", errs.ErrInvalidConfig, "a source is required")
	}
	if opts.Target == "" && !opts.InvertTarget {
		return nil, errs.Setupf("pipeline.Run", errs.ErrInvalidConfig, "a target is required unless the inverted source is searched for")
	}
	if opts.Output != "" {
		format, err := images.FormatFromPath(opts.Output)
		if err != nil {
			return nil, err
		}
		if !format.Lossless() {
			return nil, errs.Setupf("pipeline.Run", errs.ErrUnsupportedFormat, "output %s is %s, which would alter the searched bytes", opts.Output, format)
		}
	}
	if err := opts.Search.Validate(); err != nil {
		return nil, err
	}

	var prof *profiler.RuntimeProfiler
	if opts.ReportInterval > 0 {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: opts.ReportInterval,
			Logger:         log,
		})
		prof.Start(ctx)
		defer prof.Stop()
	}
	timed := func(name string) func() {
		if prof == nil {
			return func() {}
		}
		return prof.StartOperation(name)
	}

	done := timed("load")
	source, target, err := Prepare(opts)
	done()
	if err != nil {
		return nil, err
	}
	log.Debug("images prepared",
		"source", opts.Source,
		"target", opts.Target,
		"width", source.Width,
		"height", source.Height,
		"channels", source.Channels,
	)

	ctrl, err := search.NewBuilder().
		WithSource(source).
		WithTarget(target).
		WithConfig(opts.Search).
		WithLogger(log).
		WithProfiler(prof).
		WithObserver(opts.Observer).
		Build()
	if err != nil {
		return nil, err
	}

	done = timed("search")
	result, err := ctrl.Run(ctx)
	done()
	if err != nil {
		return nil, err
	}

	summary := &Summary{Result: result, Checksum: images.Checksum(result.Image)}
	if opts.Output != "" {
		done = timed("save")
		err := images.Save(opts.Output, result.Image)
		done()
		if err != nil {
			return summary, errors.Wrapf(err, "writing %s", opts.Output)
		}
		summary.Output = opts.Output
		log.Info("result written", "path", opts.Output, "checksum", summary.Checksum)
	}
	return summary, nil
}

// Prepare decodes the source and target and brings the target onto the source's
// shape: same dimensions (Lanczos3 resampling) and channel layout. Without a target
// and with InvertTarget set, the target is the inverted source.
func Prepare(opts Options) (source, target *images.Image, err error) {
	source, _, err = images.Load(opts.Source, opts.Decoder, 0)
	if err != nil {
		return nil, nil, err
	}
	if opts.Grayscale {
		source = images.Grayscale(source)
	}
	if opts.Target == "" && opts.InvertTarget {
		target = images.Invert(source)
	}
	if opts.Headroom {
		images.Headroom(source, opts.Search.Perturb.MaxDelta)
	}
	if target != nil {
		return source, target, nil
	}

	_, decoded, err := images.Load(opts.Target, opts.Decoder, source.Channels)
	if err != nil {
		return nil, nil, err
	}
	target, err = images.Match(decoded, source)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "matching %s", opts.Target)
	}
	return source, target, nil
}

// Hashes partitions and hashes one image.
//
// Arguments:
//   - path: The image file.
//   - decoder: A registered decoder name.
//   - opts: The block options.
//   - alg: The hash algorithm.
//
// Returns:
//   - hashing.HashSet: One hash per block in row-major order.
//   - blocks.Grid: The grid the hashes belong to.
//   - error: An IO or setup error.
func Hashes(path, decoder string, opts blocks.Options, alg hashing.Algorithm) (hashing.HashSet, blocks.Grid, error) {
	img, _, err := images.Load(path, decoder, 0)
	if err != nil {
		return nil, blocks.Grid{}, err
	}
	_, grid, err := blocks.Partition(img, opts)
	if err != nil {
		return nil, blocks.Grid{}, err
	}
	hasher, err := hashing.NewHasher(alg)
	if err != nil {
		return nil, blocks.Grid{}, err
	}
	set, err := hasher.HashSet(img, grid)
	if err != nil {
		return nil, blocks.Grid{}, err
	}
	return set, grid, nil
}
