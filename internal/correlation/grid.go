package correlation

import (
	"math"

	"github.com/sapcc/alertmagnet/internal/compactor"
)

// BuildGrid samples ranges onto the binary presence grid
// start, start+gap, start+2*gap, ... up to but not past end. A range
// (s, d) occupies ticks s, s+gap, ..., s+n*gap where n is the number
// of grid gaps the range spans; the compactor persists d as an
// elapsed-time delta, so n is recovered by dividing by gap.
func BuildGrid(ranges []compactor.Range, start, end, gap float64) []float64 {
	n := int(math.Floor((end-start)/gap)) + 1
	if n < 0 {
		n = 0
	}
	grid := make([]float64, n)

	for _, r := range ranges {
		gapCount := int(math.Round(r.Duration / gap))
		for k := 0; k <= gapCount; k++ {
			tick := r.Start + float64(k)*gap
			idx := int(math.Round((tick - start) / gap))
			if idx < 0 || idx >= n {
				continue
			}
			grid[idx] = 1
		}
	}

	return grid
}
