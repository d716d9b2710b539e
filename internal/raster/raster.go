// Package raster defines the in-memory image type shared by the geometry,
// resampling and I/O packages.
//
// A Raster is row-major HWC float32. Three-channel rasters are always RGB;
// OpenCV Mats are BGR, and every conversion between the two is one of the
// named functions in this package so the channel order is never implicit.
package raster

import (
	"fmt"
	"math"
)

// Raster is an image of Rows x Cols pixels with Channels interleaved
// float32 samples per pixel. Values are nominally in [0,1].
type Raster struct {
	Rows     int
	Cols     int
	Channels int
	Pix      []float32
}

// New allocates a zeroed raster.
func New(rows, cols, channels int) Raster {
	return Raster{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Pix:      make([]float32, rows*cols*channels),
	}
}

// Index returns the offset of (row, col, ch) in Pix.
func (r Raster) Index(row, col, ch int) int {
	return (row*r.Cols+col)*r.Channels + ch
}

func (r Raster) At(row, col, ch int) float32 {
	return r.Pix[r.Index(row, col, ch)]
}

func (r Raster) Set(row, col, ch int, v float32) {
	r.Pix[r.Index(row, col, ch)] = v
}

// Pixel returns the channel values of one pixel. The slice aliases Pix.
func (r Raster) Pixel(row, col int) []float32 {
	i := r.Index(row, col, 0)
	return r.Pix[i : i+r.Channels]
}

// Fill sets every pixel to v, which must have Channels entries.
func (r Raster) Fill(v ...float32) {
	for i := 0; i < len(r.Pix); i += r.Channels {
		copy(r.Pix[i:i+r.Channels], v)
	}
}

// SameSize reports whether both rasters have the same spatial dimensions.
func (r Raster) SameSize(o Raster) bool {
	return r.Rows == o.Rows && r.Cols == o.Cols
}

// Validate checks that Pix matches the declared shape.
func (r Raster) Validate() error {
	if r.Rows <= 0 || r.Cols <= 0 || r.Channels <= 0 {
		return fmt.Errorf("invalid raster shape %dx%dx%d", r.Rows, r.Cols, r.Channels)
	}
	if len(r.Pix) != r.Rows*r.Cols*r.Channels {
		return fmt.Errorf("raster buffer has %d samples, shape %dx%dx%d needs %d",
			len(r.Pix), r.Rows, r.Cols, r.Channels, r.Rows*r.Cols*r.Channels)
	}
	return nil
}

// Quantize8 maps [0,1] to 0..255 with rounding and clamping.
func Quantize8(v float32) uint8 {
	return uint8(quantize(v, math.MaxUint8))
}

// Quantize16 maps [0,1] to 0..65535 with rounding and clamping.
func Quantize16(v float32) uint16 {
	return uint16(quantize(v, math.MaxUint16))
}

func quantize(v float32, max float64) float64 {
	f := math.Round(float64(v) * max)
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > max {
		return max
	}
	return f
}
