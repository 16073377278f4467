package perturb

import (
	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Edit replaces one byte of the pixel buffer. Old makes the edit invertible.
type Edit struct {
	Offset int
	Old    byte
	New    byte
}

// Perturbation is an ordered list of byte edits with distinct offsets.
type Perturbation struct {
	Edits []Edit
}

// Empty reports whether applying p would change nothing.
func (p Perturbation) Empty() bool {
	return len(p.Edits) == 0
}

// Offsets returns the byte offsets p writes to.
func (p Perturbation) Offsets() []int {
	out := make([]int, len(p.Edits))
	for i, e := range p.Edits {
		out[i] = e.Offset
	}
	return out
}

// Touched returns the sorted blocks of g that p modifies.
func (p Perturbation) Touched(g blocks.Grid) []int {
	return g.BlocksTouching(p.Offsets())
}

func (p Perturbation) check(op string, img *images.Image) error {
	for _, e := range p.Edits {
		if e.Offset < 0 || e.Offset >= len(img.Pix) {
			return errs.Iterationf(op, errs.ErrOutOfBounds, "offset %d in a %d byte buffer", e.Offset, len(img.Pix))
		}
	}
	return nil
}

// Apply writes every edit into img. Nothing is written if any offset is out of bounds.
func (p Perturbation) Apply(img *images.Image) error {
	if err := p.check("perturb.Apply", img); err != nil {
		return err
	}
	for _, e := range p.Edits {
		img.Pix[e.Offset] = e.New
	}
	return nil
}

// Revert restores the bytes Apply overwrote.
func (p Perturbation) Revert(img *images.Image) error {
	if err := p.check("perturb.Revert", img); err != nil {
		return err
	}
	for i := len(p.Edits) - 1; i >= 0; i-- {
		img.Pix[p.Edits[i].Offset] = p.Edits[i].Old
	}
	return nil
}
