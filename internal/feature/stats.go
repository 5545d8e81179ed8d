package feature

import (
	"math"
	"sort"
)

// median returns the median of the non-NaN values, or NaN if none exist.
func median(vals []float64) float64 {
	return quantile(vals, 0.5)
}

// quantile returns the q-th quantile of the non-NaN values using linear
// interpolation between order statistics, matching the convention the
// stored training statistics were originally computed with. Returns NaN for
// an all-missing column.
func quantile(vals []float64, q float64) float64 {
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)

	if q <= 0 {
		return clean[0]
	}
	if q >= 1 {
		return clean[len(clean)-1]
	}

	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return clean[lo]
	}
	frac := pos - float64(lo)
	return clean[lo]*(1-frac) + clean[hi]*frac
}

// clip bounds v to [lo, hi]. NaN passes through.
func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if !math.IsNaN(lo) && v < lo {
		return lo
	}
	if !math.IsNaN(hi) && v > hi {
		return hi
	}
	return v
}

// log1p is math.Log1p lifted over a column.
func log1pCol(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Log1p(v)
	}
	return out
}
