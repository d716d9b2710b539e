package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresmejia3/tactset/internal/types"
)

// Annotation file columns. Extra columns are ignored.
const (
	colImage   = "img_names"
	colCenterX = "center_x"
	colCenterY = "center_y"
	colRadius  = "radius"
)

// Annotations maps an image base name to its circles in file order.
type Annotations map[string][]types.Circle

// LoadAnnotations reads an annotation CSV file.
func LoadAnnotations(path string) (Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()

	annots, err := ParseAnnotations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return annots, nil
}

// ParseAnnotations reads annotation rows from r. The first row is the header.
func ParseAnnotations(r io.Reader) (Annotations, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("annotation file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{colImage, colCenterX, colCenterY, colRadius} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("annotation header missing column %q", name)
		}
	}

	annots := Annotations{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		name := filepath.Base(strings.TrimSpace(rec[cols[colImage]]))
		var vals [3]int
		for i, col := range []string{colCenterX, colCenterY, colRadius} {
			v, err := parsePixel(rec[cols[col]])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
			}
			vals[i] = v
		}
		annots[name] = append(annots[name], types.Circle{CenterX: vals[0], CenterY: vals[1], Radius: vals[2]})
	}
	return annots, nil
}

// parsePixel accepts integer or float pixel values and rounds to the
// nearest pixel.
func parsePixel(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return int(math.Round(f)), nil
}
