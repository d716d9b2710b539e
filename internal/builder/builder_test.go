package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/tactset/internal/config"
	"github.com/andresmejia3/tactset/internal/geometry"
	"github.com/andresmejia3/tactset/internal/imageio"
	"github.com/andresmejia3/tactset/internal/logger"
	"github.com/andresmejia3/tactset/internal/manifest"
	"github.com/andresmejia3/tactset/internal/raster"
	"github.com/andresmejia3/tactset/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// memSource serves solid-color 320x240 frames.
type memSource struct {
	colors [][3]float64 // B, G, R
	annots [][]types.Circle
}

func (m *memSource) Len() int { return len(m.colors) }

func (m *memSource) Sample(i int) (types.Sample, error) {
	c := m.colors[i]
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(c[0], c[1], c[2], 0), 320, 240, gocv.MatTypeCV8UC3)
	return types.Sample{Index: i, Image: img, Annotations: m.annots[i]}, nil
}

// threeSamples is A (annotated), B (no annotation), C (annotated).
func threeSamples() *memSource {
	return &memSource{
		colors: [][3]float64{{50, 100, 150}, {10, 10, 10}, {200, 60, 30}},
		annots: [][]types.Circle{
			{{CenterX: 120, CenterY: 160, Radius: 30}},
			{},
			{{CenterX: 100, CenterY: 100, Radius: 20}},
		},
	}
}

type fakeRecorder struct {
	id       uuid.UUID
	base     string
	records  []types.SampleRecord
	finished bool
	failed   string
	written  int
	skipped  int
}

func (f *fakeRecorder) BeginRun(_ context.Context, basePath string) (uuid.UUID, error) {
	f.id = uuid.New()
	f.base = basePath
	return f.id, nil
}

func (f *fakeRecorder) RecordSample(_ context.Context, runID uuid.UUID, rec types.SampleRecord) error {
	if runID != f.id {
		return errors.New("unknown run")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, runID uuid.UUID, written, skipped int) error {
	f.finished = true
	f.written = written
	f.skipped = skipped
	return nil
}

func (f *fakeRecorder) FailRun(_ context.Context, runID uuid.UUID, written, skipped int, cause string) error {
	f.finished = true
	f.failed = cause
	f.written = written
	f.skipped = skipped
	return nil
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.BasePath = t.TempDir()
	return cfg
}

func TestRunThreeSamples(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecorder{}
	b, err := New(cfg, threeSamples(), logger.Nop{}, Options{Recorder: rec})
	require.NoError(t, err)

	report, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Samples)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 2, report.Converted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Empty)
	assert.Equal(t, []int{0, 2}, report.Indices)

	layout := b.Layout()
	wantColor := []string{filepath.Join(layout.ColorImages, "0000.png"), filepath.Join(layout.ColorImages, "0002.png")}
	wantNormal := []string{filepath.Join(layout.NormalImages, "0000.png"), filepath.Join(layout.NormalImages, "0002.png")}

	for _, dir := range []string{layout.ColorImages, layout.NormalImages} {
		_, err := os.Stat(filepath.Join(dir, "0001.png"))
		assert.True(t, os.IsNotExist(err), "skipped sample must not be written")
	}

	colorRows, err := manifest.Read(filepath.Join(layout.ColorCSV, manifest.ColorFile))
	require.NoError(t, err)
	assert.Equal(t, wantColor, colorRows)
	normalRows, err := manifest.Read(filepath.Join(layout.NormalCSV, manifest.NormalFile))
	require.NoError(t, err)
	assert.Equal(t, wantNormal, normalRows)

	for i := range wantColor {
		color, err := imageio.ReadRaster(wantColor[i])
		require.NoError(t, err)
		normal, err := imageio.ReadRaster(wantNormal[i])
		require.NoError(t, err)
		assert.Equal(t, 160, color.Rows)
		assert.Equal(t, 120, color.Cols)
		assert.True(t, color.SameSize(normal), "pair %d differs in size", i)

		// Corners are outside both contacts.
		assert.Equal(t, []float32{0, 0, 0}, color.Pixel(0, 0))
		corner := normal.Pixel(0, 0)
		assert.InDelta(t, geometry.Flat[0], corner[0], 1.0/255)
		assert.InDelta(t, geometry.Flat[2], corner[2], 1.0/255)
	}

	// Sample A's contact center (row 160, col 120) maps to (80, 60).
	a, err := imageio.ReadRaster(wantColor[0])
	require.NoError(t, err)
	center := a.Pixel(80, 60)
	assert.InDelta(t, 150.0/255, center[0], 1.0/255)
	assert.InDelta(t, 100.0/255, center[1], 1.0/255)
	assert.InDelta(t, 50.0/255, center[2], 1.0/255)

	require.Len(t, rec.records, 2)
	assert.Equal(t, cfg.BasePath, rec.base)
	assert.Equal(t, 0, rec.records[0].Index)
	assert.Equal(t, types.Circle{CenterX: 100, CenterY: 100, Radius: 20}, rec.records[1].Circle)
	assert.Equal(t, wantNormal[1], rec.records[1].NormalPath)
	assert.True(t, rec.finished)
	assert.Equal(t, 2, rec.written)
	assert.Equal(t, 1, rec.skipped)

	assert.Greater(t, report.Color.Mean[0], 0.0)
	assert.Greater(t, report.Color.Std[0], 0.0)
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := testConfig(t)
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)

	_, err = b.Run(context.Background())
	require.NoError(t, err)
	path := filepath.Join(b.Layout().ColorCSV, manifest.ColorFile)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = b.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunRemovesStaleOutputs(t *testing.T) {
	cfg := testConfig(t)
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)

	// Left over from a build where sample 1 was still annotated.
	layout := b.Layout()
	require.NoError(t, os.MkdirAll(layout.ColorImages, 0755))
	require.NoError(t, os.MkdirAll(layout.NormalImages, 0755))
	for _, dir := range []string{layout.ColorImages, layout.NormalImages} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "0001.png"), []byte("stale"), 0644))
	}

	_, err = b.Run(context.Background())
	require.NoError(t, err)

	for _, dir := range []string{layout.ColorImages, layout.NormalImages} {
		_, err := os.Stat(filepath.Join(dir, "0001.png"))
		assert.True(t, os.IsNotExist(err), "stale output in %s was kept", dir)
	}
	colorRows, err := manifest.Read(filepath.Join(layout.ColorCSV, manifest.ColorFile))
	require.NoError(t, err)
	assert.Len(t, colorRows, 2)
	normalRows, err := manifest.Read(filepath.Join(layout.NormalCSV, manifest.NormalFile))
	require.NoError(t, err)
	assert.Len(t, normalRows, 2)
}

func TestRunWithoutSaving(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.SaveDataset = false
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Written)
	assert.Equal(t, 2, report.Converted)

	rows, err := manifest.Read(filepath.Join(b.Layout().ColorCSV, manifest.ColorFile))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunWithoutAnnotations(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataloader.AnnotFlag = false
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Empty, "the degenerate circle yields empty masks")
	assert.Equal(t, 0, report.Written)
}

func TestRunNormalBitDepth16(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.NormalBitDepth = 16
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	m := gocv.IMRead(filepath.Join(b.Layout().NormalImages, "0000.png"), gocv.IMReadUnchanged)
	defer m.Close()
	assert.Equal(t, gocv.MatTypeCV16UC3, m.Type())
}

func TestRunContactLargerThanBearing(t *testing.T) {
	cfg := testConfig(t)
	src := &memSource{
		colors: [][3]float64{{1, 1, 1}},
		annots: [][]types.Circle{{{CenterX: 120, CenterY: 160, Radius: 100}}},
	}
	b, err := New(cfg, src, nil, Options{})
	require.NoError(t, err)

	_, err = b.Run(context.Background())
	assert.True(t, errors.Is(err, geometry.ErrOutsideBearing), "got %v", err)
}

func TestRunFailureClosesCatalogRun(t *testing.T) {
	cfg := testConfig(t)
	src := &memSource{
		colors: [][3]float64{{1, 1, 1}, {1, 1, 1}},
		annots: [][]types.Circle{
			{{CenterX: 120, CenterY: 160, Radius: 20}},
			{{CenterX: 120, CenterY: 160, Radius: 100}},
		},
	}
	rec := &fakeRecorder{}
	b, err := New(cfg, src, nil, Options{Recorder: rec})
	require.NoError(t, err)

	_, err = b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, rec.finished, "failed run left open")
	assert.Equal(t, err.Error(), rec.failed)
	assert.Equal(t, 1, rec.written)
	assert.Len(t, rec.records, 1)
}

func TestRunCancelledClosesCatalogRun(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecorder{}
	b, err := New(cfg, threeSamples(), nil, Options{Recorder: rec})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	assert.True(t, rec.finished)
	assert.Contains(t, rec.failed, context.Canceled.Error())
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	b, err := New(cfg, threeSamples(), nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Interpolation = "nearest"
	_, err := New(cfg, threeSamples(), nil, Options{})
	assert.Error(t, err)
}

func TestColorAccumulatorPools(t *testing.T) {
	var acc colorAccumulator
	for _, v := range []float32{0.2, 0.6} {
		r := raster.New(4, 4, 3)
		r.Fill(v, v, 1)
		acc.add(r)
	}
	s := acc.result()
	assert.InDelta(t, 0.4, s.Mean[0], 1e-6)
	assert.InDelta(t, 0.2, s.Std[0], 1e-6)
	assert.InDelta(t, 1.0, s.Mean[2], 1e-6)
	assert.InDelta(t, 0.0, s.Std[2], 1e-6)

	var empty colorAccumulator
	assert.Equal(t, ColorStats{}, empty.result())
}
