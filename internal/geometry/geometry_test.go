package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/andresmejia3/tactset/internal/raster"
	"github.com/andresmejia3/tactset/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	sensorRows = 320
	sensorCols = 240
)

func inside(x, y int, c types.Circle) bool {
	dx, dy := x-c.CenterX, y-c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

func TestBearingRadius(t *testing.T) {
	assert.Equal(t, 63, BearingRadius(6.0, 21.09))
	assert.Equal(t, 3, BearingRadius(1.5, 4))
	assert.Equal(t, 0, BearingRadius(0, 21.09))
}

func TestMaskMatchesDisc(t *testing.T) {
	circles := []types.Circle{
		{CenterX: 120, CenterY: 160, Radius: 30},
		{CenterX: 100, CenterY: 100, Radius: 20},
		{CenterX: 0, CenterY: 0, Radius: 5},     // clipped at the corner
		{CenterX: 239, CenterY: 319, Radius: 1}, // bottom-right edge
		{CenterX: 10, CenterY: 300, Radius: 63}, // mostly off canvas
	}

	for _, c := range circles {
		mask, err := Mask(sensorRows, sensorCols, c)
		require.NoError(t, err)

		want := 0
		for y := 0; y < sensorRows; y++ {
			for x := 0; x < sensorCols; x++ {
				got := mask.GetUCharAt(y, x)
				if inside(x, y, c) {
					want++
					if got != 255 {
						t.Fatalf("circle %+v: pixel (%d,%d) = %d, want 255", c, x, y, got)
					}
				} else if got != 0 {
					t.Fatalf("circle %+v: pixel (%d,%d) = %d, want 0", c, x, y, got)
				}
			}
		}
		assert.Equal(t, want, MaskCount(mask))
		mask.Close()
	}
}

func TestMaskDegenerate(t *testing.T) {
	mask, err := Mask(sensorRows, sensorCols, types.Circle{})
	require.NoError(t, err)
	defer mask.Close()
	assert.Zero(t, MaskCount(mask))
	assert.Equal(t, sensorRows, mask.Rows())
	assert.Equal(t, sensorCols, mask.Cols())
}

func TestApplyMask(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), sensorRows, sensorCols, gocv.MatTypeCV8UC3)
	defer img.Close()
	c := types.Circle{CenterX: 120, CenterY: 160, Radius: 30}
	mask, err := Mask(sensorRows, sensorCols, c)
	require.NoError(t, err)
	defer mask.Close()

	masked, err := ApplyMask(img, mask)
	require.NoError(t, err)
	defer masked.Close()

	assert.Equal(t, []uint8{10, 20, 30}, []uint8(masked.GetVecbAt(160, 120)))
	assert.Equal(t, []uint8{0, 0, 0}, []uint8(masked.GetVecbAt(0, 0)))
}

func TestSphereNormals(t *testing.T) {
	c := types.Circle{CenterX: 120, CenterY: 160, Radius: 30}
	masked := raster.New(sensorRows, sensorCols, 3)
	for y := 0; y < sensorRows; y++ {
		for x := 0; x < sensorCols; x++ {
			if inside(x, y, c) {
				copy(masked.Pixel(y, x), []float32{0.4, 0.5, 0.6})
			}
		}
	}

	normals, err := SphereNormals(masked, float64(c.CenterX), float64(c.CenterY), 63)
	require.NoError(t, err)
	require.True(t, normals.SameSize(masked))
	require.Equal(t, 3, normals.Channels)

	for y := 0; y < sensorRows; y++ {
		for x := 0; x < sensorCols; x++ {
			px := normals.Pixel(y, x)
			if !inside(x, y, c) {
				require.Equal(t, Flat[:], px, "background pixel (%d,%d)", x, y)
				continue
			}
			n := UnpackNormal(px[0], px[1], px[2])
			require.InDelta(t, 1.0, r3.Norm(n), 1e-5, "pixel (%d,%d)", x, y)
			require.GreaterOrEqual(t, n.Z, 0.0)
		}
	}

	// The apex points straight out of the sensor.
	apex := normals.Pixel(c.CenterY, c.CenterX)
	assert.Equal(t, []float32{0.5, 0.5, 1}, apex)

	// Right of center tilts +x, above center tilts +y.
	right := UnpackNormal(normals.Pixel(160, 140)[0], normals.Pixel(160, 140)[1], normals.Pixel(160, 140)[2])
	assert.Greater(t, right.X, 0.0)
	assert.InDelta(t, 0.0, right.Y, 1e-6)
	up := UnpackNormal(normals.Pixel(140, 120)[0], normals.Pixel(140, 120)[1], normals.Pixel(140, 120)[2])
	assert.Greater(t, up.Y, 0.0)
	assert.InDelta(t, 20.0/63, up.Y, 1e-5)
}

func TestSphereNormalsErrors(t *testing.T) {
	masked := raster.New(10, 10, 3)
	copy(masked.Pixel(0, 9), []float32{1, 1, 1})

	_, err := SphereNormals(masked, 0, 0, 0)
	assert.True(t, errors.Is(err, ErrBearingRadius))

	_, err = SphereNormals(masked, 0, 0, 5)
	assert.True(t, errors.Is(err, ErrOutsideBearing), "got %v", err)

	_, err = SphereNormals(raster.New(10, 10, 1), 0, 0, 5)
	assert.Error(t, err)
}

func TestSphereNormalsRim(t *testing.T) {
	masked := raster.New(1, 11, 3)
	copy(masked.Pixel(0, 10), []float32{1, 1, 1})

	normals, err := SphereNormals(masked, 0, 0, 10)
	require.NoError(t, err)
	n := UnpackNormal(normals.Pixel(0, 10)[0], normals.Pixel(0, 10)[1], normals.Pixel(0, 10)[2])
	assert.InDelta(t, 1.0, n.X, 1e-6)
	assert.InDelta(t, 0.0, n.Z, 1e-6)
	assert.False(t, math.IsNaN(n.Z))
}
