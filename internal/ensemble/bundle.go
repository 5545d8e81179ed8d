package ensemble

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/triguard/subro-cli/internal/feature"
)

// Bundle is the persisted form of a trained ensemble: everything needed
// to score unseen rows without retraining.
type Bundle struct {
	Features  []string           `json:"features"`
	Profiles  []Profile          `json:"profiles"`
	Folds     []FoldModel        `json:"folds"`
	Weights   map[string]float64 `json:"weights"`
	Threshold float64            `json:"threshold"`
}

// NewBundle assembles the persisted bundle from a training result and
// its blend.
func NewBundle(profiles []Profile, res *Result, b *Blend) *Bundle {
	return &Bundle{
		Features:  ModelFeatures(),
		Profiles:  profiles,
		Folds:     res.Folds,
		Weights:   b.Weights,
		Threshold: b.Threshold,
	}
}

// Score produces blended probabilities and thresholded labels for a
// transformed frame.
func (b *Bundle) Score(frame *feature.Frame) ([]float64, []int, error) {
	probs, err := Predict(b.Folds, b.Weights, frame)
	if err != nil {
		return nil, nil, err
	}
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= b.Threshold {
			labels[i] = 1
		}
	}
	return probs, labels, nil
}

// Marshal serializes the bundle for storage.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: marshal bundle")
	}
	return data, nil
}

// UnmarshalBundle restores a stored bundle.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "ensemble: unmarshal bundle")
	}
	return &b, nil
}
