// Package resample balances a training fold's class distribution with
// synthetic minority oversampling. It is applied to fold-training data
// only; resampling validation or test rows would inflate every downstream
// metric.
package resample

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// SMOTE oversamples the minority class to the target minority:majority
// ratio by interpolating between each sampled minority row and one of its k
// nearest minority neighbors. The input matrix and labels are not mutated;
// synthetic rows are appended after the originals. Deterministic for a
// given seed.
func SMOTE(x [][]float64, y []int, ratio float64, k int, seed int64) ([][]float64, []int, error) {
	if len(x) != len(y) {
		return nil, nil, eris.Errorf("resample: %d rows but %d labels", len(x), len(y))
	}
	if ratio <= 0 || ratio > 1 {
		return nil, nil, eris.Errorf("resample: ratio %v out of (0,1]", ratio)
	}

	var minorityIdx, majorityIdx []int
	for i, label := range y {
		if label == 1 {
			minorityIdx = append(minorityIdx, i)
		} else {
			majorityIdx = append(majorityIdx, i)
		}
	}
	// The positive class is the minority in this problem; flip if the data
	// says otherwise.
	minorityLabel := 1
	if len(minorityIdx) > len(majorityIdx) {
		minorityIdx, majorityIdx = majorityIdx, minorityIdx
		minorityLabel = 0
	}
	if len(minorityIdx) == 0 || len(majorityIdx) == 0 {
		return nil, nil, eris.New("resample: training fold has fewer than two classes")
	}

	target := int(math.Floor(ratio * float64(len(majorityIdx))))
	need := target - len(minorityIdx)
	if need <= 0 {
		return x, y, nil
	}
	if len(minorityIdx) < 2 {
		return nil, nil, eris.New("resample: need at least two minority rows to synthesize")
	}
	if k >= len(minorityIdx) {
		k = len(minorityIdx) - 1
	}

	neighbors := minorityNeighbors(x, minorityIdx, k)
	rng := rand.New(rand.NewSource(seed))

	outX := make([][]float64, len(x), len(x)+need)
	copy(outX, x)
	outY := make([]int, len(y), len(y)+need)
	copy(outY, y)

	dims := len(x[minorityIdx[0]])
	for s := 0; s < need; s++ {
		i := rng.Intn(len(minorityIdx))
		base := x[minorityIdx[i]]
		nb := x[neighbors[i][rng.Intn(len(neighbors[i]))]]

		gap := rng.Float64()
		synth := make([]float64, dims)
		for d := 0; d < dims; d++ {
			synth[d] = base[d] + gap*(nb[d]-base[d])
		}
		outX = append(outX, synth)
		outY = append(outY, minorityLabel)
	}
	return outX, outY, nil
}

// minorityNeighbors returns, for each minority row, the global indexes of
// its k nearest minority neighbors by Euclidean distance.
func minorityNeighbors(x [][]float64, minorityIdx []int, k int) [][]int {
	type cand struct {
		idx  int
		dist float64
	}

	out := make([][]int, len(minorityIdx))
	for i, gi := range minorityIdx {
		cands := make([]cand, 0, len(minorityIdx)-1)
		for j, gj := range minorityIdx {
			if i == j {
				continue
			}
			cands = append(cands, cand{idx: gj, dist: sqDist(x[gi], x[gj])})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		nn := make([]int, 0, k)
		for _, c := range cands[:k] {
			nn = append(nn, c.idx)
		}
		out[i] = nn
	}
	return out
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}
