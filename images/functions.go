// Package images - provides idempotent pixel operations used to prepare the
// source and target images before a search.
package images

import (
	"runtime"
	"sync"
)

// ITU-R BT.709 luma coefficients in 16.16 fixed point.
// These weights reflect human eye sensitivity to different colors.
const (
	redWeight   = 13933 // 0.2126
	greenWeight = 46871 // 0.7152
	blueWeight  = 4732  // 0.0722
)

// Grayscale converts an image to a single luma channel using ITU-R BT.709 coefficients.
// Gray images are returned as a copy, alpha is discarded.
//
// Arguments:
// - img: The source image to convert.
//
// Returns:
// - A new ChannelsGray image with the same dimensions.
//
// @example
// gray := Grayscale(colorImage)
func Grayscale(img *Image) *Image {
	if img.Channels == ChannelsGray {
		return img.Clone()
	}

	dst := &Image{
		Format:   img.Format,
		Pix:      make([]byte, img.Width*img.Height),
		Width:    img.Width,
		Height:   img.Height,
		Channels: ChannelsGray,
	}

	// Process rows in parallel for better performance.
	Parallel(img.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			src := img.Pix[y*img.Stride():]
			row := dst.Pix[y*dst.Width:]
			for x := 0; x < img.Width; x++ {
				px := src[x*img.Channels:]
				luma := redWeight*uint32(px[0]) + greenWeight*uint32(px[1]) + blueWeight*uint32(px[2])
				// Round to nearest before dropping the fraction.
				row[x] = uint8((luma + 1<<15) >> 16)
			}
		}
	})

	return dst
}

// Headroom subtracts amount from every colour byte, saturating at zero, so that
// additive perturbations of up to amount never clip at 255. Alpha is left untouched.
//
// Arguments:
// - img: The image to darken in place.
// - amount: The number of levels to reserve.
func Headroom(img *Image, amount int) {
	if amount <= 0 {
		return
	}
	sub := uint8(Clamp(float64(amount), 0, 255))

	Parallel(img.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := img.Pix[y*img.Stride() : (y+1)*img.Stride()]
			for i := range row {
				if img.Channels == ChannelsRGBA && i%4 == 3 {
					continue
				}
				if row[i] < sub {
					row[i] = 0
				} else {
					row[i] -= sub
				}
			}
		}
	})
}

// Invert returns a copy of img with every colour byte replaced by 255 minus its
// value. Alpha is kept.
//
// Arguments:
// - img: The image to invert.
//
// Returns:
// - A new image with the same shape.
func Invert(img *Image) *Image {
	dst := img.Clone()

	Parallel(dst.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := dst.Pix[y*dst.Stride() : (y+1)*dst.Stride()]
			for i := range row {
				if dst.Channels == ChannelsRGBA && i%4 == 3 {
					continue
				}
				row[i] = 255 - row[i]
			}
		}
	})

	return dst
}

// Clamp restricts a value to the specified range.
//
// Arguments:
// - value: The value to clamp.
// - min: The minimum allowed value.
// - max: The maximum allowed value.
//
// Returns:
// - The clamped value.
//
// @example
// clamped := Clamp(300.0, 0.0, 255.0) // Returns 255.0
func Clamp(value, min, max float64) float64 {
	// Check lower bound first (common case for underflow).
	if value < min {
		return min
	}
	// Check upper bound.
	if value > max {
		return max
	}
	// Value is within range.
	return value
}

// Parallel executes a function in parallel across data partitions.
// This is a utility for parallelizing image processing and batch evaluation.
//
// Arguments:
// - dataSize: The total size of data to process.
// - fn: The function to execute for each partition, receiving [start, end) bounds.
//
// Returns:
// - None (fn is called for each partition; Parallel returns when all are done).
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	ParallelN(runtime.NumCPU(), dataSize, fn)
}

// ParallelN is Parallel with an explicit upper bound on the number of goroutines.
func ParallelN(workers, dataSize int, fn func(partStart, partEnd int)) {
	if dataSize <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}

	// For small data sizes, parallel processing overhead isn't worth it.
	// Process serially if data is too small.
	if workers == 1 || dataSize < workers*2 {
		fn(0, dataSize)
		return
	}

	// Calculate partition size for each goroutine.
	partSize := dataSize / workers

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize

		// Last partition gets any remaining data.
		if i == workers-1 {
			partEnd = dataSize
		}

		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}

	wg.Wait()
}
