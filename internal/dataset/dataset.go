// Package dataset enumerates the raw sensor images of a build.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresmejia3/tactset/internal/imageio"
	"github.com/andresmejia3/tactset/internal/types"
)

// Source yields samples by index. Callers close each returned sample.
type Source interface {
	Len() int
	Sample(i int) (types.Sample, error)
}

// Options selects the images and annotations of a Directory.
type Options struct {
	ImagesDir      string
	ImgType        string // file extension without the dot
	AnnotFlag      bool
	AnnotationPath string
}

// Directory reads images from disk in lexical order.
type Directory struct {
	paths  []string
	annots Annotations
	flag   bool
}

// OpenDirectory lists the images and, with AnnotFlag, loads the annotation
// file. Images without annotation rows get an empty annotation set.
func OpenDirectory(opts Options) (*Directory, error) {
	ext := strings.TrimPrefix(opts.ImgType, ".")
	paths, err := filepath.Glob(filepath.Join(opts.ImagesDir, "*."+ext))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if _, err := os.Stat(opts.ImagesDir); err != nil {
		return nil, fmt.Errorf("images directory: %w", err)
	}
	sort.Strings(paths)

	d := &Directory{paths: paths, flag: opts.AnnotFlag}
	if opts.AnnotFlag {
		d.annots, err = LoadAnnotations(opts.AnnotationPath)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Directory) Len() int {
	return len(d.paths)
}

// Sample decodes image i.
func (d *Directory) Sample(i int) (types.Sample, error) {
	if i < 0 || i >= len(d.paths) {
		return types.Sample{}, fmt.Errorf("sample index %d out of range [0,%d)", i, len(d.paths))
	}
	path := d.paths[i]
	img, err := imageio.ReadColor(path)
	if err != nil {
		return types.Sample{}, err
	}
	s := types.Sample{Index: i, Path: path, Image: img}
	if d.flag {
		s.Annotations = d.annots[filepath.Base(path)]
	}
	return s, nil
}
