package images

import (
	"image"

	"github.com/nfnt/resize"
)

// ResampleTo scales a decoded image onto the given dimensions with Lanczos3
// resampling so that a target image shares the source's block grid.
//
// Arguments:
//   - src: The decoded image to resample.
//   - width: The width to resize the image to.
//   - height: The height to resize the image to.
//
// Returns:
//   - image.Image: src itself when it already has the requested size, otherwise the
//     resampled image.
func ResampleTo(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}
	return resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
}

// Match prepares a decoded target for comparison against source: it is resampled
// to the source's dimensions and converted to the source's channel layout.
//
// Arguments:
//   - target: The decoded target image.
//   - source: The already converted source buffer.
//
// Returns:
//   - *Image: The target buffer, shaped like source.
//   - error: A setup error if the conversion fails.
func Match(target image.Image, source *Image) (*Image, error) {
	resampled := ResampleTo(target, source.Width, source.Height)
	img, err := FromImage(resampled, source.Channels)
	if err != nil {
		return nil, err
	}
	img.Format = source.Format
	return img, nil
}
