// Package imageio reads sensor frames and writes dataset PNGs.
package imageio

import (
	"errors"
	"fmt"

	"github.com/andresmejia3/tactset/internal/raster"
	"gocv.io/x/gocv"
)

var ErrDecode = errors.New("image could not be decoded")

// ReadColor decodes path as an 8-bit BGR image. The caller owns the Mat.
func ReadColor(path string) (gocv.Mat, error) {
	m := gocv.IMRead(path, gocv.IMReadColor)
	if m.Empty() {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("%s: %w", path, ErrDecode)
	}
	return m, nil
}

// ReadRaster decodes an 8- or 16-bit PNG into an RGB raster in [0,1].
func ReadRaster(path string) (raster.Raster, error) {
	m := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer m.Close()
	if m.Empty() {
		return raster.Raster{}, fmt.Errorf("%s: %w", path, ErrDecode)
	}
	r, err := raster.FromMat(m)
	if err != nil {
		return raster.Raster{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// WriteColor stores an RGB raster as an 8-bit PNG.
func WriteColor(path string, r raster.Raster) error {
	m, err := raster.ToBGR8(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	defer m.Close()
	return write(path, m)
}

// WriteNormal stores a packed normal raster as an 8- or 16-bit PNG.
func WriteNormal(path string, r raster.Raster, depth int) error {
	var (
		m   gocv.Mat
		err error
	)
	switch depth {
	case 8:
		m, err = raster.ToBGR8(r)
	case 16:
		m, err = raster.ToBGR16(r)
	default:
		return fmt.Errorf("unsupported normal bit depth %d", depth)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	defer m.Close()
	return write(path, m)
}

func write(path string, m gocv.Mat) error {
	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}
