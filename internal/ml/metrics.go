// Package ml provides the classification metrics and threshold scanning
// shared by training, tuning, and blending.
package ml

import (
	"math"
	"sort"
)

// ThresholdGrid is the inclusive decision-threshold scan range.
type ThresholdGrid struct {
	Min   float64
	Max   float64
	Steps int
}

// Values returns the grid points, both ends inclusive.
func (g ThresholdGrid) Values() []float64 {
	if g.Steps <= 1 {
		return []float64{g.Min}
	}
	out := make([]float64, g.Steps)
	step := (g.Max - g.Min) / float64(g.Steps-1)
	for i := range out {
		out[i] = g.Min + float64(i)*step
	}
	return out
}

// F1 computes the F1 score of probs thresholded at thr against binary
// labels. Degenerate cases (no predicted or no actual positives) score 0.
func F1(y []int, probs []float64, thr float64) float64 {
	var tp, fp, fn float64
	for i, p := range probs {
		pred := p >= thr
		actual := y[i] == 1
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && actual:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	return 2 * precision * recall / (precision + recall)
}

// BestF1 scans the grid and returns the best F1 and the threshold that
// achieved it. Equal scores keep the first (lowest) threshold encountered.
func BestF1(y []int, probs []float64, grid ThresholdGrid) (bestF1, bestThr float64) {
	values := grid.Values()
	bestThr = values[0]
	for _, thr := range values {
		if f1 := F1(y, probs, thr); f1 > bestF1 {
			bestF1 = f1
			bestThr = thr
		}
	}
	return bestF1, bestThr
}

// AUC computes the area under the ROC curve via the rank statistic, with
// average ranks for tied probabilities. Returns 0.5 when a class is absent.
func AUC(y []int, probs []float64) float64 {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// average rank for the tie group [i, j)
		avg := (float64(i+1) + float64(j)) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var pos, rankSum float64
	for i, label := range y {
		if label == 1 {
			pos++
			rankSum += ranks[i]
		}
	}
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

// LogLoss computes mean binary cross-entropy with probability clamping.
func LogLoss(y []int, probs []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	const eps = 1e-15
	sum := 0.0
	for i, p := range probs {
		p = math.Min(math.Max(p, eps), 1-eps)
		if y[i] == 1 {
			sum += -math.Log(p)
		} else {
			sum += -math.Log(1 - p)
		}
	}
	return sum / float64(len(y))
}
