// Package images - Owned pixel buffers and the decode/encode collaborators of the search.
package images

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	"github.com/Niederb/hash-art/errs"
)

// Supported channel layouts.
const (
	// ChannelsGray is a single 8-bit luma channel.
	ChannelsGray = 1
	// ChannelsRGB is three 8-bit channels in R, G, B order.
	ChannelsRGB = 3
	// ChannelsRGBA is four 8-bit channels in R, G, B, A order (non-premultiplied).
	ChannelsRGBA = 4
)

// Image represents an owned, row-major pixel buffer with a fixed channel layout.
type Image struct {
	// The format the image was decoded from, empty for synthetic images.
	Format ImageFormat `json:"format" yaml:"format"`
	// Pix holds Height rows of Width*Channels bytes.
	Pix []byte `json:"pix" yaml:"pix"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// Channels is one of ChannelsGray, ChannelsRGB or ChannelsRGBA.
	Channels int `json:"channels" yaml:"channels"`
}

// New allocates a zeroed image.
//
// Arguments:
//   - width: The width in pixels, must be > 0.
//   - height: The height in pixels, must be > 0.
//   - channels: One of ChannelsGray, ChannelsRGB or ChannelsRGBA.
//
// Returns:
//   - *Image: The allocated image.
//   - error: A setup error wrapping errs.ErrEmptyImage for non-positive dimensions.
func New(width, height, channels int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Setupf("images.New", errs.ErrEmptyImage, "dimensions %dx%d", width, height)
	}
	if !validChannels(channels) {
		return nil, errs.Setupf("images.New", errs.ErrUnsupportedFormat, "%d channels", channels)
	}
	return &Image{
		Pix:      make([]byte, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

func validChannels(c int) bool {
	return c == ChannelsGray || c == ChannelsRGB || c == ChannelsRGBA
}

// Stride is the number of bytes in one row.
func (img *Image) Stride() int {
	return img.Width * img.Channels
}

// Offset returns the index of the first byte of pixel (x, y).
func (img *Image) Offset(x, y int) int {
	return y*img.Stride() + x*img.Channels
}

// Empty reports whether the image holds no pixels.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Pix) == 0
}

// Validate checks that the buffer length matches the declared geometry.
func (img *Image) Validate() error {
	if img.Empty() {
		return errs.Setupf("images.Validate", errs.ErrEmptyImage, "no pixels")
	}
	if !validChannels(img.Channels) {
		return errs.Setupf("images.Validate", errs.ErrUnsupportedFormat, "%d channels", img.Channels)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pix) != want {
		return errs.Setupf("images.Validate", errs.ErrCorruptImage, "buffer holds %d bytes, want %d", len(img.Pix), want)
	}
	return nil
}

// SameShape reports whether o has the same dimensions and channel layout.
func (img *Image) SameShape(o *Image) bool {
	return img.Width == o.Width && img.Height == o.Height && img.Channels == o.Channels
}

// Clone returns a deep copy that shares no memory with img.
func (img *Image) Clone() *Image {
	pix := make([]byte, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{
		Format:   img.Format,
		Pix:      pix,
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
	}
}

// CopyFrom overwrites img's pixels with src's. Both must have the same shape.
func (img *Image) CopyFrom(src *Image) error {
	if !img.SameShape(src) {
		return errs.Iterationf("images.CopyFrom", errs.ErrBlockGridMismatch,
			"%dx%dx%d <- %dx%dx%d", img.Width, img.Height, img.Channels, src.Width, src.Height, src.Channels)
	}
	copy(img.Pix, src.Pix)
	return nil
}

// Equal reports whether both images have the same shape and identical bytes.
func (img *Image) Equal(o *Image) bool {
	return img.SameShape(o) && bytes.Equal(img.Pix, o.Pix)
}

// FromImage converts a decoded image into an owned buffer.
//
// Arguments:
//   - src: The decoded image.
//   - channels: The layout to convert to, or 0 to pick one from src (gray sources
//     become ChannelsGray, opaque sources ChannelsRGB, everything else ChannelsRGBA).
//
// Returns:
//   - *Image: The converted image.
//   - error: A setup error if src is empty or channels is not supported.
func FromImage(src image.Image, channels int) (*Image, error) {
	bounds := src.Bounds()
	if channels == 0 {
		channels = detectChannels(src)
	}
	img, err := New(bounds.Dx(), bounds.Dy(), channels)
	if err != nil {
		return nil, err
	}

	if channels == ChannelsGray {
		gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
		draw.Draw(gray, gray.Bounds(), src, bounds.Min, draw.Src)
		for y := 0; y < img.Height; y++ {
			copy(img.Pix[y*img.Stride():(y+1)*img.Stride()], gray.Pix[y*gray.Stride:])
		}
		return img, nil
	}

	// NRGBA keeps colour bytes exact for translucent pixels.
	nrgba := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	Parallel(img.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := nrgba.Pix[y*nrgba.Stride:]
			dst := img.Pix[y*img.Stride():]
			for x := 0; x < img.Width; x++ {
				copy(dst[x*channels:x*channels+channels], row[x*4:x*4+channels])
			}
		}
	})

	return img, nil
}

// detectChannels picks the narrowest layout that represents src losslessly.
func detectChannels(src image.Image) int {
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		return ChannelsGray
	}
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return ChannelsRGB
	}
	return ChannelsRGBA
}

// ToImage converts the buffer into a standard library image for encoding.
// Gray buffers become *image.Gray, colour buffers *image.NRGBA.
func (img *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)

	if img.Channels == ChannelsGray {
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Pix)
		return gray
	}

	nrgba := image.NewNRGBA(rect)
	Parallel(img.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			src := img.Pix[y*img.Stride():]
			row := nrgba.Pix[y*nrgba.Stride:]
			for x := 0; x < img.Width; x++ {
				px := src[x*img.Channels : x*img.Channels+img.Channels]
				c := color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255}
				if img.Channels == ChannelsRGBA {
					c.A = px[3]
				}
				row[x*4+0] = c.R
				row[x*4+1] = c.G
				row[x*4+2] = c.B
				row[x*4+3] = c.A
			}
		}
	})
	return nrgba
}
