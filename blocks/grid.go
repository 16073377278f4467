// Package blocks - Partitions a pixel buffer into a deterministic row-major grid of
// fixed-size blocks and serializes each block canonically for hashing.
package blocks

import (
	"fmt"
	"image"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Size is the extent of one block in pixels.
type Size struct {
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// String formats the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// ParseSize parses "N" (square) or "WxH".
func ParseSize(s string) (Size, error) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		h = w
	}
	bw, errW := strconv.Atoi(w)
	bh, errH := strconv.Atoi(h)
	if errW != nil || errH != nil {
		return Size{}, errs.Setupf("blocks.ParseSize", errs.ErrInvalidBlockSize, "%q is not N or WxH", s)
	}
	size := Size{W: bw, H: bh}
	if bw <= 0 || bh <= 0 {
		return size, errs.Setupf("blocks.ParseSize", errs.ErrInvalidBlockSize, "%s must be positive", size)
	}
	return size, nil
}

// EdgePolicy decides what happens to the partial blocks at the right and bottom edges.
type EdgePolicy uint8

const (
	// EdgeDrop excludes partial blocks: only the interior tiling is hashed.
	EdgeDrop EdgePolicy = iota
	// EdgePad includes partial blocks, padding the missing bytes with a fill value.
	EdgePad
)

// String returns the policy name.
func (p EdgePolicy) String() string {
	switch p {
	case EdgeDrop:
		return "drop"
	case EdgePad:
		return "pad"
	default:
		return fmt.Sprintf("EdgePolicy(%d)", uint8(p))
	}
}

// ParseEdgePolicy parses "drop" or "pad". The empty string selects EdgeDrop.
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop":
		return EdgeDrop, nil
	case "pad":
		return EdgePad, nil
	default:
		return EdgeDrop, errs.Setupf("blocks.ParseEdgePolicy", errs.ErrInvalidConfig, "unknown edge policy %q", s)
	}
}

// Options configures a partition.
type Options struct {
	Size   Size       `json:"size" yaml:"size"`
	Policy EdgePolicy `json:"policy" yaml:"policy"`
	// Fill is written for out-of-image bytes under EdgePad.
	Fill byte `json:"fill" yaml:"fill"`
}

// DefaultOptions returns 8x8 blocks with the drop policy.
func DefaultOptions() Options {
	return Options{Size: Size{W: 8, H: 8}, Policy: EdgeDrop}
}

// Block is one cell of the grid.
type Block struct {
	Index int
	Row   int
	Col   int
	// Rect is the in-image region of the block. Under EdgePad it may be smaller than the block size.
	Rect image.Rectangle
}

// Grid describes how an image of a given shape is tiled. It holds no pixels and is
// safe to share between goroutines.
type Grid struct {
	Width    int
	Height   int
	Channels int
	Size     Size
	Policy   EdgePolicy
	Fill     byte
	Rows     int
	Cols     int
}

// NewGrid builds the block grid for an image of the given shape.
//
// Arguments:
//   - width, height: The image dimensions in pixels.
//   - channels: Bytes per pixel.
//   - opts: Block size, edge policy and pad fill.
//
// Returns:
//   - Grid: The grid, with at least one block.
//   - error: A setup error wrapping errs.ErrEmptyImage for an empty shape, or
//     errs.ErrInvalidBlockSize for non-positive or oversized blocks.
func NewGrid(width, height, channels int, opts Options) (Grid, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return Grid{}, errs.Setupf("blocks.NewGrid", errs.ErrEmptyImage, "shape %dx%dx%d", width, height, channels)
	}
	if opts.Size.W <= 0 || opts.Size.H <= 0 {
		return Grid{}, errs.Setupf("blocks.NewGrid", errs.ErrInvalidBlockSize, "%s must be positive", opts.Size)
	}
	if opts.Size.W > width || opts.Size.H > height {
		return Grid{}, errs.Setupf("blocks.NewGrid", errs.ErrInvalidBlockSize,
			"block %s exceeds image %dx%d", opts.Size, width, height)
	}

	g := Grid{
		Width:    width,
		Height:   height,
		Channels: channels,
		Size:     opts.Size,
		Policy:   opts.Policy,
		Fill:     opts.Fill,
		Cols:     width / opts.Size.W,
		Rows:     height / opts.Size.H,
	}
	if opts.Policy == EdgePad {
		g.Cols = (width + opts.Size.W - 1) / opts.Size.W
		g.Rows = (height + opts.Size.H - 1) / opts.Size.H
	}
	return g, nil
}

// Partition validates img and returns its blocks in row-major order together with the grid.
func Partition(img *images.Image, opts Options) ([]Block, Grid, error) {
	if err := img.Validate(); err != nil {
		return nil, Grid{}, errors.Wrap(err, "partition")
	}
	g, err := NewGrid(img.Width, img.Height, img.Channels, opts)
	if err != nil {
		return nil, Grid{}, err
	}
	return g.Blocks(), g, nil
}

// Len is the number of blocks, and so the length of every HashSet built on this grid.
func (g Grid) Len() int {
	return g.Rows * g.Cols
}

// BlockBytes is the length of one canonical block serialization.
func (g Grid) BlockBytes() int {
	return g.Size.W * g.Size.H * g.Channels
}

// Block returns block i. It panics when i is out of range.
func (g Grid) Block(i int) Block {
	if i < 0 || i >= g.Len() {
		panic(fmt.Sprintf("blocks: index %d out of range [0,%d)", i, g.Len()))
	}
	row, col := i/g.Cols, i%g.Cols
	x0, y0 := col*g.Size.W, row*g.Size.H
	return Block{
		Index: i,
		Row:   row,
		Col:   col,
		Rect:  image.Rect(x0, y0, min(x0+g.Size.W, g.Width), min(y0+g.Size.H, g.Height)),
	}
}

// Blocks lists every block in row-major order.
func (g Grid) Blocks() []Block {
	out := make([]Block, g.Len())
	for i := range out {
		out[i] = g.Block(i)
	}
	return out
}

// Check verifies that img has the shape the grid was built for.
func (g Grid) Check(img *images.Image) error {
	if img.Width != g.Width || img.Height != g.Height || img.Channels != g.Channels {
		return errs.Setupf("blocks.Check", errs.ErrBlockGridMismatch,
			"image %dx%dx%d, grid %dx%dx%d", img.Width, img.Height, img.Channels, g.Width, g.Height, g.Channels)
	}
	return nil
}

// Bytes writes the canonical serialization of block i of img into dst and returns it:
// Size.H rows of Size.W pixels, channels in buffer order. Bytes outside the image
// (EdgePad only) are Fill. dst is reused when it has enough capacity.
func (g Grid) Bytes(img *images.Image, i int, dst []byte) []byte {
	n := g.BlockBytes()
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	b := g.Block(i)
	rowBytes := g.Size.W * g.Channels
	stride := g.Width * g.Channels
	inRow := b.Rect.Dx() * g.Channels

	for y := 0; y < g.Size.H; y++ {
		line := dst[y*rowBytes : (y+1)*rowBytes]
		k := 0
		if py := b.Rect.Min.Y + y; py < b.Rect.Max.Y {
			start := py*stride + b.Rect.Min.X*g.Channels
			k = copy(line, img.Pix[start:start+inRow])
		}
		for j := k; j < len(line); j++ {
			line[j] = g.Fill
		}
	}
	return dst
}

// Scatter is the inverse of Bytes: it writes the in-image part of a block
// serialization back into img. Padding bytes are ignored.
func (g Grid) Scatter(img *images.Image, i int, data []byte) error {
	if len(data) != g.BlockBytes() {
		return errs.Iterationf("blocks.Scatter", errs.ErrOutOfBounds, "block %d: %d bytes, want %d", i, len(data), g.BlockBytes())
	}
	b := g.Block(i)
	rowBytes := g.Size.W * g.Channels
	stride := g.Width * g.Channels
	inRow := b.Rect.Dx() * g.Channels

	for y := 0; y < b.Rect.Dy(); y++ {
		start := (b.Rect.Min.Y+y)*stride + b.Rect.Min.X*g.Channels
		copy(img.Pix[start:start+inRow], data[y*rowBytes:y*rowBytes+inRow])
	}
	return nil
}

// Reassemble builds a new image from one serialization per block in grid order.
// Pixels outside every block (dropped edges) are left zero.
func (g Grid) Reassemble(parts [][]byte) (*images.Image, error) {
	if len(parts) != g.Len() {
		return nil, errs.Setupf("blocks.Reassemble", errs.ErrBlockGridMismatch, "%d blocks, grid has %d", len(parts), g.Len())
	}
	img, err := images.New(g.Width, g.Height, g.Channels)
	if err != nil {
		return nil, err
	}
	for i, data := range parts {
		if err := g.Scatter(img, i, data); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// BlockOf returns the index of the block containing pixel (x, y). ok is false for
// pixels outside the image or in a dropped edge.
func (g Grid) BlockOf(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return -1, false
	}
	col, row := x/g.Size.W, y/g.Size.H
	if col >= g.Cols || row >= g.Rows {
		return -1, false
	}
	return row*g.Cols + col, true
}

// Locate maps a byte offset of the pixel buffer to its block and to the position of
// that byte inside the block's serialization.
func (g Grid) Locate(offset int) (block, local int, ok bool) {
	stride := g.Width * g.Channels
	if offset < 0 || offset >= stride*g.Height {
		return -1, -1, false
	}
	y := offset / stride
	x := (offset % stride) / g.Channels
	c := offset % g.Channels

	block, ok = g.BlockOf(x, y)
	if !ok {
		return -1, -1, false
	}
	lx, ly := x%g.Size.W, y%g.Size.H
	return block, (ly*g.Size.W+lx)*g.Channels + c, true
}

// BlocksTouching returns the sorted, de-duplicated blocks containing the given byte
// offsets. Offsets in dropped edges touch no block.
func (g Grid) BlocksTouching(offsets []int) []int {
	out := make([]int, 0, len(offsets))
	for _, off := range offsets {
		if b, _, ok := g.Locate(off); ok {
			out = append(out, b)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Equal reports whether both grids tile identically.
func (g Grid) Equal(o Grid) bool {
	return g == o
}

// CheckAligned fails with errs.ErrBlockGridMismatch unless a and b produce
// position-aligned HashSets.
func CheckAligned(a, b Grid) error {
	if a.Equal(b) {
		return nil
	}
	return errs.Setupf("blocks.CheckAligned", errs.ErrBlockGridMismatch,
		"%dx%d blocks of %s over %dx%dx%d vs %dx%d blocks of %s over %dx%dx%d",
		a.Cols, a.Rows, a.Size, a.Width, a.Height, a.Channels,
		b.Cols, b.Rows, b.Size, b.Width, b.Height, b.Channels)
}
