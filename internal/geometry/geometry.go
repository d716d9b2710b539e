// Package geometry turns a contact-circle annotation into a foreground
// mask and a synthetic surface-normal map.
//
// The normal model treats the contact as the visible cap of a sphere of
// the bearing radius, centered on the annotation center. Normals use
// image axes with y flipped: x to the right, y up, z out of the sensor.
// They are packed into [0,1] as (n+1)/2 in R, G, B order.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/andresmejia3/tactset/internal/raster"
	"github.com/andresmejia3/tactset/internal/types"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrBearingRadius  = errors.New("bearing radius must be positive")
	ErrOutsideBearing = errors.New("foreground pixel outside bearing sphere")
)

// Flat is the packed normal written to background pixels.
var Flat = [3]float32{0.5, 0.5, 1}

// BearingRadius converts the bearing diameter to a pixel radius, truncated.
func BearingRadius(diameterMM, mmToPixel float64) int {
	return int(0.5 * diameterMM * mmToPixel)
}

// Mask rasterizes the filled annotation circle as a rows x cols CV_8UC1
// Mat: 255 where (x-cx)^2 + (y-cy)^2 <= r^2, 0 elsewhere. A non-positive
// radius yields an all-zero mask. The caller owns the returned Mat.
func Mask(rows, cols int, c types.Circle) (gocv.Mat, error) {
	disc := raster.New(rows, cols, 1)
	if c.Radius > 0 {
		r2 := c.Radius * c.Radius
		for y := max(0, c.CenterY-c.Radius); y <= min(rows-1, c.CenterY+c.Radius); y++ {
			dy := y - c.CenterY
			for x := max(0, c.CenterX-c.Radius); x <= min(cols-1, c.CenterX+c.Radius); x++ {
				dx := x - c.CenterX
				if dx*dx+dy*dy <= r2 {
					disc.Set(y, x, 0, 1)
				}
			}
		}
	}
	mask, err := raster.ToGray8(disc)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("mask for circle %+v: %w", c, err)
	}
	return mask, nil
}

// MaskCount is the number of set pixels of a mask.
func MaskCount(mask gocv.Mat) int {
	return gocv.CountNonZero(mask)
}

// ApplyMask zeroes every pixel of img outside mask. The caller owns the
// returned Mat.
func ApplyMask(img, mask gocv.Mat) (gocv.Mat, error) {
	out := gocv.NewMat()
	if err := gocv.BitwiseAndWithMask(img, img, &out, mask); err != nil {
		out.Close()
		return gocv.Mat{}, fmt.Errorf("apply mask: %w", err)
	}
	return out, nil
}

// SphereNormals computes the packed normal map for a masked image. A pixel
// is foreground when any of its channels is non-zero. Foreground pixels get
// the normal of a sphere of radius R centered at (cx, cy); background pixels
// get Flat.
func SphereNormals(masked raster.Raster, cx, cy float64, radius int) (raster.Raster, error) {
	if radius <= 0 {
		return raster.Raster{}, ErrBearingRadius
	}
	if err := masked.Validate(); err != nil {
		return raster.Raster{}, err
	}
	if masked.Channels != 3 {
		return raster.Raster{}, fmt.Errorf("masked image has %d channels, want 3", masked.Channels)
	}

	out := raster.New(masked.Rows, masked.Cols, 3)
	out.Fill(Flat[:]...)
	R := float64(radius)

	for y := 0; y < masked.Rows; y++ {
		for x := 0; x < masked.Cols; x++ {
			if !foreground(masked.Pixel(y, x)) {
				continue
			}
			n, err := sphereNormal(float64(x)-cx, float64(y)-cy, R)
			if err != nil {
				return raster.Raster{}, fmt.Errorf("pixel (%d,%d): %w", x, y, err)
			}
			px := out.Pixel(y, x)
			px[0] = float32((n.X + 1) / 2)
			px[1] = float32((n.Y + 1) / 2)
			px[2] = float32((n.Z + 1) / 2)
		}
	}
	return out, nil
}

func foreground(px []float32) bool {
	for _, v := range px {
		if v != 0 {
			return true
		}
	}
	return false
}

func sphereNormal(dx, dy, R float64) (r3.Vec, error) {
	d2 := dx*dx + dy*dy
	if d2 > R*R {
		return r3.Vec{}, fmt.Errorf("%w: distance %.2f > %.0f", ErrOutsideBearing, math.Sqrt(d2), R)
	}
	v := r3.Vec{X: dx / R, Y: -dy / R, Z: math.Sqrt(1 - d2/(R*R))}
	if r3.Norm(v) == 0 {
		return r3.Vec{Z: 1}, nil
	}
	return r3.Unit(v), nil
}

// UnpackNormal maps packed channel values back to a normal vector.
func UnpackNormal(r, g, b float32) r3.Vec {
	return r3.Vec{
		X: 2*float64(r) - 1,
		Y: 2*float64(g) - 1,
		Z: 2*float64(b) - 1,
	}
}
