package builder

import (
	"math"

	"github.com/andresmejia3/tactset/internal/raster"
	"gonum.org/v1/gonum/stat"
)

// Report summarizes a build.
type Report struct {
	Samples   int   // samples in the source
	Converted int   // samples that produced an output pair
	Written   int   // pairs written to disk
	Skipped   int   // samples without annotations
	Empty     int   // samples whose mask had no pixels
	Indices   []int // indices of converted samples, ascending
	Color     ColorStats
}

// ColorStats holds per-channel (R, G, B) population statistics of the
// downsampled color images, pooled over all converted samples.
type ColorStats struct {
	Mean [3]float64
	Std  [3]float64
}

// colorAccumulator keeps per-image channel moments. All images share one
// size, so pooling is the mean of the means plus the variance between them.
type colorAccumulator struct {
	means [3][]float64
	vars  [3][]float64
}

func (a *colorAccumulator) add(r raster.Raster) {
	n := r.Rows * r.Cols
	ch := make([]float64, n)
	for c := 0; c < 3; c++ {
		for i := 0; i < n; i++ {
			ch[i] = float64(r.Pix[i*r.Channels+c])
		}
		m, v := stat.PopMeanVariance(ch, nil)
		a.means[c] = append(a.means[c], m)
		a.vars[c] = append(a.vars[c], v)
	}
}

func (a *colorAccumulator) result() ColorStats {
	var s ColorStats
	if len(a.means[0]) == 0 {
		return s
	}
	for c := 0; c < 3; c++ {
		mean, between := stat.PopMeanVariance(a.means[c], nil)
		within := stat.Mean(a.vars[c], nil)
		s.Mean[c] = mean
		s.Std[c] = sqrt(within + between)
	}
	return s
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
