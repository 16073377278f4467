package images

import (
	"crypto/md5"
	"fmt"
)

// Checksum generates a deterministic checksum for an image buffer, used to compare
// the outputs of two runs.
//
// Arguments:
// - img: The image to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	checksum := Checksum(result.Image)
//	fmt.Printf("Result checksum: %s\n", checksum)
//
// ```
func Checksum(img *Image) string {
	if img.Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%dx%d:", img.Width, img.Height, img.Channels)
	hash.Write(img.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
