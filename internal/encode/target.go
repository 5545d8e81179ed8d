// Package encode provides the leakage-safe categorical encoders used inside
// each cross-validation fold.
package encode

// TargetEncoding maps categorical values to smoothed label means. It is
// fit on one fold's training rows only and discarded after the fold;
// applying it never requires labels, so the API cannot leak them.
type TargetEncoding struct {
	Global float64            `json:"global"`
	Means  map[string]float64 `json:"means"`
}

// FitTarget computes per-category smoothed means:
//
//	mean = (sum_of_labels + smoothing*global_mean) / (count + smoothing)
//
// Smoothing pulls small-count categories toward the global mean so they
// cannot produce unstable encodings.
func FitTarget(values []string, labels []int, smoothing float64) TargetEncoding {
	global := 0.0
	if len(labels) > 0 {
		sum := 0
		for _, y := range labels {
			sum += y
		}
		global = float64(sum) / float64(len(labels))
	}

	type agg struct {
		sum   float64
		count float64
	}
	byCat := make(map[string]*agg)
	for i, v := range values {
		a, ok := byCat[v]
		if !ok {
			a = &agg{}
			byCat[v] = a
		}
		a.sum += float64(labels[i])
		a.count++
	}

	means := make(map[string]float64, len(byCat))
	for v, a := range byCat {
		means[v] = (a.sum + smoothing*global) / (a.count + smoothing)
	}
	return TargetEncoding{Global: global, Means: means}
}

// Apply encodes values; categories unseen during fitting map to exactly the
// global training mean.
func (te TargetEncoding) Apply(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if m, ok := te.Means[v]; ok {
			out[i] = m
		} else {
			out[i] = te.Global
		}
	}
	return out
}
