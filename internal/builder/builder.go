// Package builder converts annotated tactile frames into aligned
// color/normal training pairs.
//
// Samples are processed strictly in order. A sample without annotations
// is skipped but still consumes its index, so output names keep the
// source numbering and may have gaps.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andresmejia3/tactset/internal/config"
	"github.com/andresmejia3/tactset/internal/dataset"
	"github.com/andresmejia3/tactset/internal/geometry"
	"github.com/andresmejia3/tactset/internal/imageio"
	"github.com/andresmejia3/tactset/internal/logger"
	"github.com/andresmejia3/tactset/internal/manifest"
	"github.com/andresmejia3/tactset/internal/raster"
	"github.com/andresmejia3/tactset/internal/resample"
	"github.com/andresmejia3/tactset/internal/types"
	"github.com/andresmejia3/tactset/internal/utils"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

const component = "builder"

// Recorder persists build provenance. *store.Store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, basePath string) (uuid.UUID, error)
	RecordSample(ctx context.Context, runID uuid.UUID, rec types.SampleRecord) error
	FinishRun(ctx context.Context, runID uuid.UUID, written, skipped int) error
	FailRun(ctx context.Context, runID uuid.UUID, written, skipped int, cause string) error
}

// Options holds the optional collaborators of a Builder.
type Options struct {
	Recorder Recorder  // nil disables the catalog
	Progress io.Writer // nil disables the progress bar
}

type Builder struct {
	cfg     config.Config
	src     dataset.Source
	log     logger.Logger
	opts    Options
	layout  types.Layout
	method  resample.Method
	bearing int
}

// New validates cfg and prepares a build over src.
func New(cfg config.Config, src dataset.Source, log logger.Logger, opts Options) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	method, err := resample.ParseMethod(cfg.Dataset.Interpolation)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Builder{
		cfg:     cfg,
		src:     src,
		log:     log,
		opts:    opts,
		layout:  types.NewLayout(cfg.BasePath),
		method:  method,
		bearing: geometry.BearingRadius(cfg.BearingDiameterMM, cfg.MMToPixel),
	}, nil
}

// Layout is the output tree of the build.
func (b *Builder) Layout() types.Layout {
	return b.layout
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeEmpty
	outcomeConverted
	outcomeWritten
)

// Run processes every sample, then writes both manifests. The first
// failure aborts the build; a catalog run is then closed as failed.
func (b *Builder) Run(ctx context.Context) (Report, error) {
	if err := utils.EnsureDirs(b.layout.Dirs()...); err != nil {
		return Report{Samples: b.src.Len()}, err
	}

	if b.opts.Recorder == nil {
		return b.run(ctx, uuid.Nil)
	}

	runID, err := b.opts.Recorder.BeginRun(ctx, b.cfg.BasePath)
	if err != nil {
		return Report{Samples: b.src.Len()}, fmt.Errorf("begin catalog run: %w", err)
	}
	b.log.Info(component, "catalog run started", map[string]interface{}{"run_id": runID.String()})

	report, err := b.run(ctx, runID)
	if err != nil {
		// ctx may be the cancelled one.
		if ferr := b.opts.Recorder.FailRun(context.Background(), runID, report.Written, report.Skipped+report.Empty, err.Error()); ferr != nil {
			b.log.Error(component, ferr, map[string]interface{}{"run_id": runID.String()})
		}
		return report, err
	}
	if err := b.opts.Recorder.FinishRun(ctx, runID, report.Written, report.Skipped+report.Empty); err != nil {
		return report, fmt.Errorf("finish catalog run: %w", err)
	}
	return report, nil
}

func (b *Builder) run(ctx context.Context, runID uuid.UUID) (Report, error) {
	report := Report{Samples: b.src.Len()}

	b.log.Info(component, "building dataset", map[string]interface{}{
		"samples":        report.Samples,
		"bearing_radius": b.bearing,
		"target":         fmt.Sprintf("%dx%d", b.cfg.Dataset.Rows, b.cfg.Dataset.Cols),
		"interpolation":  b.method.String(),
	})

	bar := progressbar.NewOptions(report.Samples,
		progressbar.OptionSetDescription("🖐️  Building dataset"),
		progressbar.OptionSetWriter(b.opts.Progress),
		progressbar.OptionShowCount(),
	)

	var colors colorAccumulator
	for idx := 0; idx < report.Samples; idx++ {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("interrupted before sample %04d: %w", idx, err)
		}

		out, err := b.process(ctx, idx, runID, &colors)
		bar.Add(1)
		if err != nil {
			return report, fmt.Errorf("sample %04d: %w", idx, err)
		}

		switch out {
		case outcomeSkipped:
			report.Skipped++
		case outcomeEmpty:
			report.Empty++
		case outcomeWritten:
			report.Written++
			fallthrough
		case outcomeConverted:
			report.Converted++
			report.Indices = append(report.Indices, idx)
		}
	}
	bar.Finish()

	colorCSV, err := manifest.WriteColor(b.layout.ColorCSV, b.layout.ColorImages)
	if err != nil {
		return report, fmt.Errorf("color manifest: %w", err)
	}
	normalCSV, err := manifest.WriteNormal(b.layout.NormalCSV, b.layout.NormalImages)
	if err != nil {
		return report, fmt.Errorf("normal manifest: %w", err)
	}
	b.log.Info(component, "manifests written", map[string]interface{}{"color": colorCSV, "normal": normalCSV})

	report.Color = colors.result()
	return report, nil
}

// process runs read, mask, normals, resample and write for one index.
func (b *Builder) process(ctx context.Context, idx int, runID uuid.UUID, colors *colorAccumulator) (outcome, error) {
	s, err := b.src.Sample(idx)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	defer s.Close()

	annotated := b.cfg.Dataloader.AnnotFlag
	if annotated && len(s.Annotations) == 0 {
		b.log.Debug(component, "no annotation, skipping", map[string]interface{}{"index": idx})
		return outcomeSkipped, b.removeStale(idx)
	}

	var circle types.Circle
	if annotated {
		circle = s.Circle()
	}

	mask, err := geometry.Mask(s.Image.Rows(), s.Image.Cols(), circle)
	if err != nil {
		return 0, err
	}
	defer mask.Close()
	if geometry.MaskCount(mask) == 0 {
		b.log.Warning(component, "empty contact mask, skipping", map[string]interface{}{
			"index":  idx,
			"circle": fmt.Sprintf("%+v", circle),
		})
		return outcomeEmpty, b.removeStale(idx)
	}

	maskedMat, err := geometry.ApplyMask(s.Image, mask)
	if err != nil {
		return 0, err
	}
	defer maskedMat.Close()

	masked, err := raster.FromMat(maskedMat)
	if err != nil {
		return 0, fmt.Errorf("masked image: %w", err)
	}

	normals, err := geometry.SphereNormals(masked, float64(circle.CenterX), float64(circle.CenterY), b.bearing)
	if err != nil {
		return 0, fmt.Errorf("normals: %w", err)
	}

	rows, cols := b.cfg.Dataset.Rows, b.cfg.Dataset.Cols
	normalDS, err := resample.Resize(normals, rows, cols, b.method)
	if err != nil {
		return 0, fmt.Errorf("downsample normals: %w", err)
	}
	colorDS, err := resample.Resize(masked, rows, cols, b.method)
	if err != nil {
		return 0, fmt.Errorf("downsample color: %w", err)
	}
	colors.add(colorDS)

	if !b.cfg.Dataset.SaveDataset {
		return outcomeConverted, nil
	}

	name := types.ImageName(idx)
	colorPath := filepath.Join(b.layout.ColorImages, name)
	normalPath := filepath.Join(b.layout.NormalImages, name)
	if err := imageio.WriteColor(colorPath, colorDS); err != nil {
		return 0, err
	}
	if err := imageio.WriteNormal(normalPath, normalDS, b.cfg.Dataset.NormalBitDepth); err != nil {
		return 0, err
	}
	b.log.Info(component, "saved image", map[string]interface{}{"index": fmt.Sprintf("%04d", idx)})

	if b.opts.Recorder != nil {
		rec := types.SampleRecord{
			Index:      idx,
			SourcePath: s.Path,
			Circle:     circle,
			ColorPath:  colorPath,
			NormalPath: normalPath,
		}
		if s.Path != "" {
			if rec.SourceSHA, err = utils.HashFile(s.Path); err != nil {
				return 0, fmt.Errorf("hash source: %w", err)
			}
		}
		if err := b.opts.Recorder.RecordSample(ctx, runID, rec); err != nil {
			return 0, fmt.Errorf("record sample: %w", err)
		}
	}
	return outcomeWritten, nil
}

// removeStale deletes a pair left at idx by an earlier build, so skipped
// samples never reach the output directories or manifests.
func (b *Builder) removeStale(idx int) error {
	if !b.cfg.Dataset.SaveDataset {
		return nil
	}
	name := types.ImageName(idx)
	for _, dir := range []string{b.layout.ColorImages, b.layout.NormalImages} {
		path := filepath.Join(dir, name)
		err := os.Remove(path)
		switch {
		case err == nil:
			b.log.Debug(component, "removed stale output", map[string]interface{}{"path": path})
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("remove stale output: %w", err)
		}
	}
	return nil
}
