package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/perturb"
)

func newImage(t testing.TB, w, h, c int, fill func(i int) byte) *images.Image {
	t.Helper()
	img, err := images.New(w, h, c)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = fill(i)
	}
	return img
}

// nearTarget returns a 4x4 gray source and a target that differs by one to
// three levels in a handful of pixels, hashed per pixel.
func nearTarget(t testing.TB) (*images.Image, *images.Image, Config) {
	t.Helper()
	source := newImage(t, 4, 4, images.ChannelsGray, func(i int) byte { return byte(100 + i) })
	target := source.Clone()
	target.Pix[1] += 1
	target.Pix[6] -= 2
	target.Pix[11] += 3
	target.Pix[15] -= 1

	cfg := DefaultConfig()
	cfg.Blocks = blocks.Options{Size: blocks.Size{W: 1, H: 1}}
	cfg.Perturb = perturb.Config{Mode: perturb.ModePixel, Pixels: 1, MaxDelta: 2}
	cfg.MaxIterations = 2_000
	cfg.LogEvery = 0
	return source, target, cfg
}

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (f *fakeClock) Now() time.Time {
	f.now = f.now.Add(f.step)
	return f.now
}
