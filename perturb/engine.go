// Package perturb - Reproducible, bounded, revertible pixel edits.
//
// Every random choice is drawn from the *rand.Rand passed to Propose, so a
// seeded generator always yields the same sequence of perturbations.
package perturb

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Mode selects the shape of a perturbation.
type Mode uint8

const (
	// ModeBlock adds an unsigned delta in [0, MaxDelta) to every byte of one random block.
	ModeBlock Mode = iota
	// ModePixel nudges Pixels random bytes by a signed delta in [-MaxDelta, MaxDelta] without 0.
	ModePixel
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeBlock:
		return "block"
	case ModePixel:
		return "pixel"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses "block" or "pixel". The empty string selects ModeBlock.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return ModeBlock, nil
	case "pixel":
		return ModePixel, nil
	default:
		return ModeBlock, errs.Setupf("perturb.ParseMode", errs.ErrInvalidConfig, "unknown mode %q", s)
	}
}

// Config holds the perturbation parameters.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`
	// Pixels is the number of bytes edited per perturbation in ModePixel.
	Pixels int `json:"pixels" yaml:"pixels"`
	// MaxDelta bounds the magnitude of each byte change, 1..255.
	MaxDelta int `json:"max_delta" yaml:"max_delta"`
}

// DefaultConfig returns block mode with a maximum delta of 2.
func DefaultConfig() Config {
	return Config{Mode: ModeBlock, Pixels: 1, MaxDelta: 2}
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	if c.MaxDelta < 1 || c.MaxDelta > 255 {
		return errs.Setupf("perturb.Config", errs.ErrInvalidConfig, "max delta %d not in 1..255", c.MaxDelta)
	}
	switch c.Mode {
	case ModeBlock:
		if c.MaxDelta < 2 {
			return errs.Setupf("perturb.Config", errs.ErrInvalidConfig, "block mode draws deltas in [0,%d) and needs max delta >= 2", c.MaxDelta)
		}
	case ModePixel:
		if c.Pixels < 1 {
			return errs.Setupf("perturb.Config", errs.ErrInvalidConfig, "pixels %d must be >= 1", c.Pixels)
		}
	default:
		return errs.Setupf("perturb.Config", errs.ErrInvalidConfig, "unknown mode %s", c.Mode)
	}
	return nil
}

// Engine proposes perturbations restricted to the hashed blocks of a grid.
type Engine struct {
	cfg  Config
	grid blocks.Grid
}

// NewEngine validates cfg and binds it to g.
func NewEngine(cfg Config, g blocks.Grid) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g.Len() == 0 {
		return nil, errs.Setupf("perturb.NewEngine", errs.ErrInvalidBlockSize, "grid has no blocks")
	}
	return &Engine{cfg: cfg, grid: g}, nil
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.cfg }

// Propose draws one perturbation of img from rng. img is only read.
//
// Arguments:
//   - rng: The search's generator; the only source of randomness.
//   - img: The current candidate, shaped like the engine's grid.
//
// Returns:
//   - Perturbation: The edits. It may be empty when every drawn change saturated.
//   - error: An iteration error wrapping errs.ErrBlockGridMismatch if img does not fit the grid.
func (e *Engine) Propose(rng *rand.Rand, img *images.Image) (Perturbation, error) {
	if err := e.grid.Check(img); err != nil {
		return Perturbation{}, errs.New(errs.KindIteration, "perturb.Propose", err)
	}

	if e.cfg.Mode == ModePixel {
		return e.proposePixels(rng, img), nil
	}
	return e.proposeBlock(rng, img), nil
}

// proposeBlock reproduces the classic scheme: one block, an independent delta per byte.
func (e *Engine) proposeBlock(rng *rand.Rand, img *images.Image) Perturbation {
	b := e.grid.Block(rng.IntN(e.grid.Len()))
	rowBytes := b.Rect.Dx() * img.Channels

	p := Perturbation{Edits: make([]Edit, 0, b.Rect.Dy()*rowBytes)}
	for y := b.Rect.Min.Y; y < b.Rect.Max.Y; y++ {
		start := img.Offset(b.Rect.Min.X, y)
		for off := start; off < start+rowBytes; off++ {
			delta := rng.IntN(e.cfg.MaxDelta)
			old := img.Pix[off]
			updated := byte(min(int(old)+delta, 255))
			if updated != old {
				p.Edits = append(p.Edits, Edit{Offset: off, Old: old, New: updated})
			}
		}
	}
	return p
}

func (e *Engine) proposePixels(rng *rand.Rand, img *images.Image) Perturbation {
	p := Perturbation{Edits: make([]Edit, 0, e.cfg.Pixels)}
	pos := make(map[int]int, e.cfg.Pixels)

	for n := 0; n < e.cfg.Pixels; n++ {
		b := e.grid.Block(rng.IntN(e.grid.Len()))
		x := b.Rect.Min.X + rng.IntN(b.Rect.Dx())
		y := b.Rect.Min.Y + rng.IntN(b.Rect.Dy())
		off := img.Offset(x, y) + rng.IntN(img.Channels)

		delta := rng.IntN(e.cfg.MaxDelta) + 1
		if rng.IntN(2) == 0 {
			delta = -delta
		}

		// Repeated offsets compound on the pending value.
		i, seen := pos[off]
		cur := img.Pix[off]
		if seen {
			cur = p.Edits[i].New
		}
		updated := saturate(int(cur) + delta)
		if updated == cur {
			updated = saturate(int(cur) - delta)
		}

		if seen {
			p.Edits[i].New = updated
			continue
		}
		pos[off] = len(p.Edits)
		p.Edits = append(p.Edits, Edit{Offset: off, Old: cur, New: updated})
	}

	// Drop edits that compounded back to their original value.
	kept := p.Edits[:0]
	for _, edit := range p.Edits {
		if edit.New != edit.Old {
			kept = append(kept, edit)
		}
	}
	p.Edits = kept
	return p
}

func saturate(v int) byte {
	return byte(max(0, min(v, 255)))
}
