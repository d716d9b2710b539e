package imageio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/tactset/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func pattern(rows, cols int) raster.Raster {
	r := raster.New(rows, cols, 3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := r.Pixel(y, x)
			px[0] = float32(x) / float32(cols-1)
			px[1] = float32(y) / float32(rows-1)
			px[2] = float32((x+y)%7) / 7
		}
	}
	return r
}

func TestColorRoundTrip(t *testing.T) {
	src := pattern(160, 120)
	path := filepath.Join(t.TempDir(), "0000.png")
	require.NoError(t, WriteColor(path, src))

	back, err := ReadRaster(path)
	require.NoError(t, err)
	require.Equal(t, src.Rows, back.Rows)
	require.Equal(t, src.Cols, back.Cols)
	require.Equal(t, 3, back.Channels)
	for i := range src.Pix {
		require.InDelta(t, src.Pix[i], back.Pix[i], 0.5/255+1e-6, "sample %d", i)
	}
}

func TestNormalRoundTrip16(t *testing.T) {
	src := pattern(20, 30)
	path := filepath.Join(t.TempDir(), "0001.png")
	require.NoError(t, WriteNormal(path, src, 16))

	m := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer m.Close()
	assert.Equal(t, gocv.MatTypeCV16UC3, m.Type())

	back, err := ReadRaster(path)
	require.NoError(t, err)
	for i := range src.Pix {
		require.InDelta(t, src.Pix[i], back.Pix[i], 0.5/65535+1e-6)
	}
}

func TestWriteNormalBadDepth(t *testing.T) {
	err := WriteNormal(filepath.Join(t.TempDir(), "x.png"), pattern(2, 2), 12)
	assert.Error(t, err)
}

func TestReadColorUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0644))

	_, err := ReadColor(path)
	assert.True(t, errors.Is(err, ErrDecode))
	_, err = ReadRaster(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, ErrDecode))
}
