package images

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"

	"github.com/Niederb/hash-art/errs"
)

// DecoderStd is the name of the pure Go decoder.
const DecoderStd = "std"

// DecodeFunc turns encoded bytes into an image.
type DecodeFunc func(data []byte) (image.Image, ImageFormat, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]DecodeFunc{
		DecoderStd: Decode,
	}
)

// RegisterDecoder makes an alternative decoder selectable by name.
func RegisterDecoder(name string, fn DecodeFunc) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[name] = fn
}

// Decoders lists the registered decoder names in sorted order.
func Decoders() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	return names(decoders)
}

// LookupDecoder returns the decoder registered under name.
func LookupDecoder(name string) (DecodeFunc, error) {
	if name == "" {
		name = DecoderStd
	}
	decodersMu.RLock()
	defer decodersMu.RUnlock()

	fn, ok := decoders[name]
	if !ok {
		return nil, errs.Setupf("images.LookupDecoder", errs.ErrUnsupportedFormat,
			"decoder %q is not compiled in (available: %v)", name, names(decoders))
	}
	return fn, nil
}

func names(m map[string]DecodeFunc) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sniff identifies the container by its magic bytes.
func sniff(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte("\xff\xd8")):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return FormatGIF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	default:
		return ""
	}
}

// Decode decodes PNG, JPEG, GIF, BMP or WebP bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The detected container format.
//   - error: An IO error wrapping errs.ErrUnsupportedFormat or errs.ErrCorruptImage.
func Decode(data []byte) (image.Image, ImageFormat, error) {
	format := sniff(data)
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatGIF:
		img, err = gif.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, "", errs.IOf("images.Decode", errs.ErrUnsupportedFormat, "unrecognised header")
	}
	if err != nil {
		return nil, format, errs.New(errs.KindIO, "images.Decode",
			errors.Wrapf(errs.ErrCorruptImage, "%s: %v", format, err))
	}
	return img, format, nil
}

// Encode writes img losslessly in the given format.
//
// Arguments:
//   - w: The destination writer.
//   - img: The pixel buffer to encode.
//   - format: One of FormatPNG, FormatBMP or FormatWebP.
//
// Returns:
//   - error: An IO error wrapping errs.ErrUnsupportedFormat for lossy formats, or
//     errs.ErrIO when writing fails.
func Encode(w io.Writer, img *Image, format ImageFormat) error {
	if !format.Lossless() {
		return errs.IOf("images.Encode", errs.ErrUnsupportedFormat, "%q would alter pixel bytes", format)
	}

	out := img.ToImage()

	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, out)
	case FormatBMP:
		err = bmp.Encode(w, out)
	case FormatWebP:
		err = webp.Encode(w, out, &webp.Options{Lossless: true})
	}
	if err != nil {
		return errs.New(errs.KindIO, "images.Encode", errors.Wrapf(errs.ErrIO, "%s: %v", format, err))
	}
	return nil
}

// Load reads and decodes the image at path with the named decoder and converts it
// into an owned buffer.
//
// Arguments:
//   - path: The image file.
//   - decoder: A registered decoder name, empty for DecoderStd.
//   - channels: The channel layout, 0 to detect it from the file.
//
// Returns:
//   - *Image: The decoded buffer.
//   - image.Image: The decoded image before conversion (used to match a target).
//   - error: An IO error for unreadable or undecodable files.
func Load(path, decoder string, channels int) (*Image, image.Image, error) {
	decode, err := LookupDecoder(decoder)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errs.New(errs.KindIO, "images.Load", errors.Wrapf(errs.ErrIO, "%v", err))
	}

	decoded, format, err := decode(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding %s", path)
	}

	img, err := FromImage(decoded, channels)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "converting %s", path)
	}
	img.Format = format
	return img, decoded, nil
}

// Save encodes img to path, picking the format from the extension.
func Save(path string, img *Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.New(errs.KindIO, "images.Save", errors.Wrapf(errs.ErrIO, "%v", err))
	}
	return nil
}
