package hashing

import (
	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Render paints every digest of set back into its block, producing the "hash art"
// of an image. The digest bytes fill the block serialization in order, repeated
// when the block holds more bytes than the digest and truncated when it holds
// fewer. A SHA-512 digest exactly fills an 8x8 gray block.
//
// Arguments:
//   - set: One digest per block, as returned by HashSet.
//   - g: The grid set was computed on.
//
// Returns:
//   - *images.Image: A new image shaped like the grid. Dropped edges stay zero.
//   - error: A setup error wrapping errs.ErrBlockGridMismatch when set does not fit g,
//     or errs.ErrInvalidConfig for an empty digest.
func Render(set HashSet, g blocks.Grid) (*images.Image, error) {
	if len(set) != g.Len() {
		return nil, errs.Setupf("hashing.Render", errs.ErrBlockGridMismatch, "set has %d blocks, grid %d", len(set), g.Len())
	}

	n := g.BlockBytes()
	parts := make([][]byte, len(set))
	for i, h := range set {
		digest := h.Bytes()
		if len(digest) == 0 {
			return nil, errs.Setupf("hashing.Render", errs.ErrInvalidConfig, "block %d has no digest", i)
		}
		data := make([]byte, n)
		for k := 0; k < n; k += len(digest) {
			copy(data[k:], digest)
		}
		parts[i] = data
	}
	return g.Reassemble(parts)
}
