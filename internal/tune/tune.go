// Package tune is the hyperparameter-optimization collaborator. Only its
// contract is load-bearing: given features, labels, a search space, and a
// trial budget it returns a flat record of named hyperparameters. The
// search policy behind that contract (random search here) is swappable.
package tune

import (
	"context"
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/ml"
	"github.com/triguard/subro-cli/internal/ml/gbdt"
)

// Space bounds the sampled hyperparameters.
type Space struct {
	LearningRateMin float64 // sampled log-uniform
	LearningRateMax float64
	DepthMin        int
	DepthMax        int
	RegLambdaMin    float64
	RegLambdaMax    float64
	SubsampleMin    float64
	SubsampleMax    float64
	ColsampleMin    float64
	ColsampleMax    float64
	MinChildMin     int
	MinChildMax     int
}

// DefaultSpace mirrors the documented search ranges.
func DefaultSpace() Space {
	return Space{
		LearningRateMin: 0.01,
		LearningRateMax: 0.05,
		DepthMin:        3,
		DepthMax:        8,
		RegLambdaMin:    1.0,
		RegLambdaMax:    10.0,
		SubsampleMin:    0.6,
		SubsampleMax:    1.0,
		ColsampleMin:    0.5,
		ColsampleMax:    1.0,
		MinChildMin:     10,
		MinChildMax:     50,
	}
}

// trial budgets: short boosters are enough to rank parameter sets.
const (
	trialMaxRounds = 300
	trialPatience  = 50
)

// trialGrid is the F1 threshold scan used to score each trial.
var trialGrid = ml.ThresholdGrid{Min: 0.20, Max: 0.40, Steps: 21}

// Optimize runs a random search and returns the best-scoring parameter
// record. Each trial is scored by mean best-threshold F1 across a
// stratified cross-validation. Deterministic for a given seed.
func Optimize(ctx context.Context, x [][]float64, y []int, space Space, trials, folds int, seed int64) (gbdt.Params, error) {
	if trials <= 0 {
		return gbdt.Params{}, eris.Errorf("tune: trial count %d must be positive", trials)
	}

	valFolds, err := ml.StratifiedKFold(y, folds, seed)
	if err != nil {
		return gbdt.Params{}, eris.Wrap(err, "tune: split folds")
	}

	rng := rand.New(rand.NewSource(seed))
	var best gbdt.Params
	bestScore := -1.0

	for trial := 0; trial < trials; trial++ {
		if err := ctx.Err(); err != nil {
			return gbdt.Params{}, eris.Wrap(err, "tune: cancelled")
		}

		params := sample(space, rng, seed+int64(trial))
		score, err := score(x, y, valFolds, params)
		if err != nil {
			return gbdt.Params{}, eris.Wrapf(err, "tune: trial %d", trial)
		}

		zap.L().Debug("tune trial",
			zap.Int("trial", trial),
			zap.Float64("score", score),
			zap.Float64("learning_rate", params.LearningRate),
			zap.Int("depth", params.MaxDepth),
		)

		if score > bestScore {
			bestScore = score
			best = params
		}
	}

	zap.L().Info("tune complete", zap.Float64("best_f1", bestScore), zap.Int("trials", trials))
	return best, nil
}

func sample(s Space, rng *rand.Rand, seed int64) gbdt.Params {
	logLo := math.Log(s.LearningRateMin)
	logHi := math.Log(s.LearningRateMax)
	return gbdt.Params{
		LearningRate:    math.Exp(logLo + rng.Float64()*(logHi-logLo)),
		MaxDepth:        s.DepthMin + rng.Intn(s.DepthMax-s.DepthMin+1),
		MinChildSamples: s.MinChildMin + rng.Intn(s.MinChildMax-s.MinChildMin+1),
		Subsample:       s.SubsampleMin + rng.Float64()*(s.SubsampleMax-s.SubsampleMin),
		ColsampleByTree: s.ColsampleMin + rng.Float64()*(s.ColsampleMax-s.ColsampleMin),
		RegLambda:       s.RegLambdaMin + rng.Float64()*(s.RegLambdaMax-s.RegLambdaMin),
		MaxRounds:       trialMaxRounds,
		Patience:        trialPatience,
		Seed:            seed,
	}
}

func score(x [][]float64, y []int, valFolds [][]int, params gbdt.Params) (float64, error) {
	total := 0.0
	for _, val := range valFolds {
		trainIdx := ml.TrainIndexes(len(x), val)

		trX, trY := gather(x, y, trainIdx)
		vaX, vaY := gather(x, y, val)

		booster, err := gbdt.Train(trX, trY, vaX, vaY, params)
		if err != nil {
			return 0, err
		}
		f1, _ := ml.BestF1(vaY, booster.Predict(vaX), trialGrid)
		total += f1
	}
	return total / float64(len(valFolds)), nil
}

func gather(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	gx := make([][]float64, len(idx))
	gy := make([]int, len(idx))
	for i, r := range idx {
		gx[i] = x[r]
		gy[i] = y[r]
	}
	return gx, gy
}
