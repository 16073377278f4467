package images

import (
	"path/filepath"
	"strings"

	"github.com/Niederb/hash-art/errs"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format (decode only).
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format, encoded losslessly.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format (decode only).
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
)

// Lossless reports whether the format can carry searched pixels without changing them.
// Lossy or palette formats would destroy the block hashes the search produced.
func (f ImageFormat) Lossless() bool {
	switch f {
	case FormatPNG, FormatBMP, FormatWebP:
		return true
	default:
		return false
	}
}

// FormatFromPath derives the format from a file extension.
//
// Arguments:
//   - path: The file path, e.g. "result.png".
//
// Returns:
//   - ImageFormat: The format matching the extension.
//   - error: An IO error wrapping errs.ErrUnsupportedFormat for unknown extensions.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".webp":
		return FormatWebP, nil
	case ".gif":
		return FormatGIF, nil
	case ".bmp":
		return FormatBMP, nil
	default:
		return "", errs.IOf("images.FormatFromPath", errs.ErrUnsupportedFormat, "extension of %q", path)
	}
}
