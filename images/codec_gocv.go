//go:build gocv

package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/Niederb/hash-art/errs"
)

// DecoderGoCV is the name of the OpenCV backed decoder, available with -tags gocv.
const DecoderGoCV = "gocv"

func init() {
	RegisterDecoder(DecoderGoCV, DecodeMat)
}

// DecodeMat decodes any container OpenCV understands (TIFF, JPEG 2000, ...) via gocv.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The sniffed container format, empty when OpenCV-only.
//   - error: An IO error wrapping errs.ErrCorruptImage when OpenCV rejects the bytes.
func DecodeMat(data []byte) (img image.Image, format ImageFormat, err error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return nil, "", errs.New(errs.KindIO, "images.DecodeMat", errors.Wrapf(errs.ErrCorruptImage, "%v", err))
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, "", errs.IOf("images.DecodeMat", errs.ErrCorruptImage, "opencv returned an empty mat")
	}

	img, err = mat.ToImage()
	if err != nil {
		return nil, "", errs.New(errs.KindIO, "images.DecodeMat", errors.Wrapf(errs.ErrUnsupportedFormat, "%v", err))
	}
	return img, sniff(data), nil
}
