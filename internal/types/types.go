package types

import (
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Circle is a contact annotation in pixel coordinates.
// CenterX is the column, CenterY the row.
type Circle struct {
	CenterX int
	CenterY int
	Radius  int
}

// Sample is one entry of the source collection.
type Sample struct {
	Index       int
	Path        string
	Image       gocv.Mat // BGR, 8-bit, 3 channels
	Annotations []Circle // ordered as in the annotation file, may be empty
}

// Circle returns the first annotation, or the zero circle when there is none.
func (s Sample) Circle() Circle {
	if len(s.Annotations) == 0 {
		return Circle{}
	}
	return s.Annotations[0]
}

// Close releases the decoded image.
func (s *Sample) Close() {
	s.Image.Close()
}

// Layout is the output directory tree rooted at {base}/datasets.
type Layout struct {
	Root         string // {base}/datasets
	ColorImages  string // A/imgs
	NormalImages string // B/imgs
	ColorCSV     string // A/csv
	NormalCSV    string // B/csv
}

// NewLayout builds the dataset layout under basePath.
func NewLayout(basePath string) Layout {
	root := filepath.Join(basePath, "datasets")
	return Layout{
		Root:         root,
		ColorImages:  filepath.Join(root, "A", "imgs"),
		NormalImages: filepath.Join(root, "B", "imgs"),
		ColorCSV:     filepath.Join(root, "A", "csv"),
		NormalCSV:    filepath.Join(root, "B", "csv"),
	}
}

// Dirs lists every directory of the layout.
func (l Layout) Dirs() []string {
	return []string{l.ColorImages, l.NormalImages, l.ColorCSV, l.NormalCSV}
}

// ImageName is the zero-padded output file name for a sample index.
func ImageName(idx int) string {
	return fmt.Sprintf("%04d.png", idx)
}

// SampleRecord describes one written output pair for the run catalog.
type SampleRecord struct {
	Index      int
	SourcePath string
	SourceSHA  string
	Circle     Circle
	ColorPath  string
	NormalPath string
}
