package encode

import "sort"

// LabelEncoding assigns dense integer codes to categorical values. It is
// fit over the union of every partition's categories so encoding can never
// hit an unseen value — an availability concern, distinct from the
// target-encoding leakage rules (no labels are involved here).
type LabelEncoding map[string]float64

// FitLabels builds a LabelEncoding from the union of the given partitions.
// Codes follow sorted category order so the encoding is deterministic.
func FitLabels(partitions ...[]string) LabelEncoding {
	set := make(map[string]bool)
	for _, part := range partitions {
		for _, v := range part {
			set[v] = true
		}
	}
	cats := make([]string, 0, len(set))
	for v := range set {
		cats = append(cats, v)
	}
	sort.Strings(cats)

	enc := make(LabelEncoding, len(cats))
	for i, v := range cats {
		enc[v] = float64(i)
	}
	return enc
}

// Apply encodes values. Values outside the fitted union code to -1; with
// the union fit this only happens on caller error.
func (le LabelEncoding) Apply(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if code, ok := le[v]; ok {
			out[i] = code
		} else {
			out[i] = -1
		}
	}
	return out
}
