// Package resample changes raster resolution with smoothing interpolation.
// Nearest-neighbour is not offered.
package resample

import (
	"fmt"
	"image"
	"strings"

	"github.com/andresmejia3/tactset/internal/raster"
	"gocv.io/x/gocv"
)

// Method selects the interpolation kernel.
type Method int

const (
	// Area averages the source pixels covered by each output pixel.
	Area Method = iota
	// Linear is bilinear interpolation.
	Linear
)

func (m Method) String() string {
	switch m {
	case Area:
		return "area"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod accepts "area" or "linear".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "area":
		return Area, nil
	case "linear", "bilinear":
		return Linear, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", s)
	}
}

func (m Method) flag() (gocv.InterpolationFlags, error) {
	switch m {
	case Area:
		return gocv.InterpolationArea, nil
	case Linear:
		return gocv.InterpolationLinear, nil
	default:
		return 0, fmt.Errorf("unsupported interpolation %v", m)
	}
}

// Resize returns src scaled to exactly rows x cols with the same channel
// count. Output depends only on the input and method.
func Resize(src raster.Raster, rows, cols int, method Method) (raster.Raster, error) {
	if rows <= 0 || cols <= 0 {
		return raster.Raster{}, fmt.Errorf("invalid target size %dx%d", rows, cols)
	}
	interp, err := method.flag()
	if err != nil {
		return raster.Raster{}, err
	}
	if src.Rows == rows && src.Cols == cols {
		out := raster.New(rows, cols, src.Channels)
		copy(out.Pix, src.Pix)
		return out, src.Validate()
	}

	in, err := raster.ToFloatMat(src)
	if err != nil {
		return raster.Raster{}, fmt.Errorf("resize input: %w", err)
	}
	defer in.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Resize(in, &dst, image.Pt(cols, rows), 0, 0, interp); err != nil {
		return raster.Raster{}, fmt.Errorf("resize %dx%d -> %dx%d: %w", src.Rows, src.Cols, rows, cols, err)
	}

	out, err := raster.FromFloatMat(dst)
	if err != nil {
		return raster.Raster{}, fmt.Errorf("resize output: %w", err)
	}
	if out.Rows != rows || out.Cols != cols || out.Channels != src.Channels {
		return raster.Raster{}, fmt.Errorf("resize produced %dx%dx%d, want %dx%dx%d",
			out.Rows, out.Cols, out.Channels, rows, cols, src.Channels)
	}
	return out, nil
}
