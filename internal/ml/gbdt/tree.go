package gbdt

import (
	"math"
	"sort"
)

// node is one tree node in the flattened node array. Leaves carry the
// shrunken weight in Value; internal nodes route rows by Feature/Threshold.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// predict returns the tree's contribution for one row.
func (t *tree) predict(row []float64) float64 {
	i := 0
	for {
		nd := &t.Nodes[i]
		if nd.Leaf {
			return nd.Value
		}
		if row[nd.Feature] < nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

// treeBuilder grows one regression tree on the gradient/hessian statistics
// of the current boosting round.
type treeBuilder struct {
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int // column subsample for this tree
	params   Params

	nodes []node
}

func (b *treeBuilder) build(rows []int) *tree {
	b.grow(rows, 0)
	return &tree{Nodes: b.nodes}
}

// grow adds the subtree for rows at the given depth and returns its node
// index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	if depth >= b.params.MaxDepth || len(rows) < 2*b.params.MinChildSamples {
		return b.leaf(rows)
	}

	feature, threshold, gain, left, right := b.bestSplit(rows)
	if gain <= 0 {
		return b.leaf(rows)
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: feature, Threshold: threshold})
	leftIdx := b.grow(left, depth+1)
	rightIdx := b.grow(right, depth+1)
	b.nodes[idx].Left = leftIdx
	b.nodes[idx].Right = rightIdx
	return idx
}

func (b *treeBuilder) leaf(rows []int) int {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{
		Leaf:  true,
		Value: b.params.LearningRate * leafWeight(g, h, b.params),
	})
	return idx
}

// leafWeight is the regularized Newton step: soft-thresholded by RegAlpha,
// damped by RegLambda.
func leafWeight(g, h float64, p Params) float64 {
	th := math.Max(math.Abs(g)-p.RegAlpha, 0)
	if th == 0 {
		return 0
	}
	w := -math.Copysign(th, g) / (h + p.RegLambda)
	return w
}

// splitScore is the structure score term G²-with-L1 / (H+λ).
func splitScore(g, h float64, p Params) float64 {
	th := math.Max(math.Abs(g)-p.RegAlpha, 0)
	return th * th / (h + p.RegLambda)
}

// bestSplit scans every sampled feature for the highest-gain split
// honoring MinChildSamples. Ties keep the first candidate found.
func (b *treeBuilder) bestSplit(rows []int) (feature int, threshold, gain float64, left, right []int) {
	var gTotal, hTotal float64
	for _, r := range rows {
		gTotal += b.grad[r]
		hTotal += b.hess[r]
	}
	parentScore := splitScore(gTotal, hTotal, b.params)

	type entry struct {
		val float64
		row int
	}
	sorted := make([]entry, len(rows))
	bestGain := 0.0
	bestFeature, bestPos := -1, -1
	bestThreshold := 0.0
	var bestOrder []int

	for _, f := range b.features {
		for i, r := range rows {
			sorted[i] = entry{val: b.x[r][f], row: r}
		}
		sort.Slice(sorted, func(a, c int) bool { return sorted[a].val < sorted[c].val })

		var gLeft, hLeft float64
		for i := 0; i < len(sorted)-1; i++ {
			gLeft += b.grad[sorted[i].row]
			hLeft += b.hess[sorted[i].row]

			if sorted[i].val == sorted[i+1].val {
				continue
			}
			nLeft, nRight := i+1, len(sorted)-i-1
			if nLeft < b.params.MinChildSamples || nRight < b.params.MinChildSamples {
				continue
			}

			g := splitScore(gLeft, hLeft, b.params) +
				splitScore(gTotal-gLeft, hTotal-hLeft, b.params) -
				parentScore
			if g > bestGain {
				bestGain = g
				bestFeature = f
				bestPos = i
				bestThreshold = (sorted[i].val + sorted[i+1].val) / 2
				order := make([]int, len(sorted))
				for j, e := range sorted {
					order[j] = e.row
				}
				bestOrder = order
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0, nil, nil
	}
	left = append([]int(nil), bestOrder[:bestPos+1]...)
	right = append([]int(nil), bestOrder[bestPos+1:]...)
	return bestFeature, bestThreshold, bestGain, left, right
}
