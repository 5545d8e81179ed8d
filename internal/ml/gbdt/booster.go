package gbdt

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
)

// Booster is a trained gradient-boosted ensemble. It serializes to JSON in
// full, so a model bundle can reproduce inference without retraining.
type Booster struct {
	Params     Params  `json:"params"`
	Trees      []tree  `json:"trees"`
	BaseScore  float64 `json:"base_score"` // initial log-odds
	BestRounds int     `json:"best_rounds"`
}

// Train fits a booster on x/y. When evalX is non-empty, validation logloss
// is tracked every round and training stops after Patience rounds without
// improvement; the returned booster is truncated to its best round. The
// round budget is always bounded by MaxRounds.
func Train(x [][]float64, y []int, evalX [][]float64, evalY []int, p Params) (*Booster, error) {
	p = p.withDefaults()

	if len(x) == 0 {
		return nil, eris.New("gbdt: empty training set")
	}
	if len(x) != len(y) {
		return nil, eris.Errorf("gbdt: %d rows but %d labels", len(x), len(y))
	}
	pos := 0
	for _, label := range y {
		pos += label
	}
	if pos == 0 || pos == len(y) {
		return nil, eris.New("gbdt: training labels contain a single class")
	}

	base := math.Log(float64(pos) / float64(len(y)-pos))
	b := &Booster{Params: p, BaseScore: base}

	rng := rand.New(rand.NewSource(p.Seed))
	n := len(x)
	nFeatures := len(x[0])

	trainScore := make([]float64, n)
	for i := range trainScore {
		trainScore[i] = base
	}
	evalScore := make([]float64, len(evalX))
	for i := range evalScore {
		evalScore[i] = base
	}

	grad := make([]float64, n)
	hess := make([]float64, n)

	bestLoss := math.Inf(1)
	bestRound := 0
	sinceBest := 0

	for round := 0; round < p.MaxRounds; round++ {
		for i := 0; i < n; i++ {
			pr := sigmoid(trainScore[i])
			grad[i] = pr - float64(y[i])
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}

		rows := sampleRows(n, p.Subsample, rng)
		features := sampleFeatures(nFeatures, p.ColsampleByTree, rng)

		tb := &treeBuilder{x: x, grad: grad, hess: hess, features: features, params: p}
		tr := tb.build(rows)
		b.Trees = append(b.Trees, *tr)

		for i := 0; i < n; i++ {
			trainScore[i] += tr.predict(x[i])
		}

		if len(evalX) == 0 {
			bestRound = round + 1
			continue
		}

		for i := range evalX {
			evalScore[i] += tr.predict(evalX[i])
		}
		loss := evalLogLoss(evalScore, evalY)
		if loss < bestLoss {
			bestLoss = loss
			bestRound = round + 1
			sinceBest = 0
		} else {
			sinceBest++
			if sinceBest >= p.Patience {
				break
			}
		}
	}

	b.Trees = b.Trees[:bestRound]
	b.BestRounds = bestRound
	return b, nil
}

// Predict returns the positive-class probability for each row.
func (b *Booster) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = sigmoid(b.predictRaw(row))
	}
	return out
}

func (b *Booster) predictRaw(row []float64) float64 {
	score := b.BaseScore
	for t := range b.Trees {
		score += b.Trees[t].predict(row)
	}
	return score
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func evalLogLoss(scores []float64, y []int) float64 {
	const eps = 1e-15
	sum := 0.0
	for i, s := range scores {
		p := math.Min(math.Max(sigmoid(s), eps), 1-eps)
		if y[i] == 1 {
			sum += -math.Log(p)
		} else {
			sum += -math.Log(1 - p)
		}
	}
	return sum / float64(len(scores))
}

// sampleRows draws a subsample of row indexes without replacement, at least
// MinChildSamples*2 rows.
func sampleRows(n int, frac float64, rng *rand.Rand) []int {
	if frac >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(math.Max(2, math.Round(frac*float64(n))))
	perm := rng.Perm(n)
	rows := append([]int(nil), perm[:k]...)
	return rows
}

func sampleFeatures(n int, frac float64, rng *rand.Rand) []int {
	if frac >= 1 {
		features := make([]int, n)
		for i := range features {
			features[i] = i
		}
		return features
	}
	k := int(math.Max(1, math.Round(frac*float64(n))))
	perm := rng.Perm(n)
	features := append([]int(nil), perm[:k]...)
	return features
}
