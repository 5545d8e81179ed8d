// Package gbdt implements a gradient-boosted decision tree classifier for
// binary targets: second-order greedy splits, L1/L2 regularization, row and
// column subsampling, and bounded training rounds with patience-based early
// stopping on a validation set.
package gbdt

// Params are the training hyperparameters of one booster. Zero values fall
// back to usable defaults via withDefaults.
type Params struct {
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinChildSamples int     `json:"min_child_samples"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	RegAlpha        float64 `json:"reg_alpha"`
	RegLambda       float64 `json:"reg_lambda"`
	MaxRounds       int     `json:"max_rounds"`
	Patience        int     `json:"patience"`
	Seed            int64   `json:"seed"`
}

func (p Params) withDefaults() Params {
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.MinChildSamples <= 0 {
		p.MinChildSamples = 1
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		p.ColsampleByTree = 1
	}
	if p.RegLambda < 0 {
		p.RegLambda = 0
	}
	if p.RegAlpha < 0 {
		p.RegAlpha = 0
	}
	if p.MaxRounds <= 0 {
		p.MaxRounds = 100
	}
	if p.Patience <= 0 {
		p.Patience = p.MaxRounds
	}
	return p
}
