package ml

import (
	"math/rand"

	"github.com/rotisserie/eris"
)

// StratifiedKFold partitions row indexes into k validation folds with the
// class proportions of y approximately preserved in each. The shuffle is
// deterministic for a given seed. Every row lands in exactly one fold.
func StratifiedKFold(y []int, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, eris.Errorf("ml: fold count %d must be at least 2", k)
	}
	if len(y) < k {
		return nil, eris.Errorf("ml: %d rows cannot fill %d folds", len(y), k)
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	if len(byClass) < 2 {
		return nil, eris.New("ml: labels contain fewer than two classes")
	}

	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)

	// Deterministic class order: iterate 0 then 1 (binary labels).
	for _, label := range []int{0, 1} {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for i, row := range idx {
			f := i % k
			folds[f] = append(folds[f], row)
		}
	}

	for f := range folds {
		if len(folds[f]) == 0 {
			return nil, eris.Errorf("ml: fold %d has an empty validation split", f)
		}
	}
	return folds, nil
}

// TrainIndexes returns all indexes not in the given validation fold.
func TrainIndexes(n int, valFold []int) []int {
	inVal := make([]bool, n)
	for _, i := range valFold {
		inVal[i] = true
	}
	train := make([]int, 0, n-len(valFold))
	for i := 0; i < n; i++ {
		if !inVal[i] {
			train = append(train, i)
		}
	}
	return train
}
