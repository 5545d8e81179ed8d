package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triguard/subro-cli/internal/ml"
	"github.com/triguard/subro-cli/internal/ml/gbdt"
)

var testGrid = ml.ThresholdGrid{Min: 0.20, Max: 0.40, Steps: 41}

func profilesTestParams() gbdt.Params {
	return gbdt.Params{
		LearningRate:    0.03,
		MaxDepth:        4,
		MinChildSamples: 20,
		Subsample:       0.9,
		ColsampleByTree: 0.8,
		RegLambda:       2,
	}
}

func TestBlendResult_WeightsProportionalToF1(t *testing.T) {
	y := []int{1, 0, 1, 0, 1, 0, 1, 0}

	perfect := []float64{0.9, 0.1, 0.9, 0.1, 0.9, 0.1, 0.9, 0.1}
	flat := []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3}

	res := &Result{
		Models: []string{"a", "b"},
		OOF:    map[string][]float64{"a": perfect, "b": flat},
		Test:   map[string][]float64{"a": {0.9, 0.1}, "b": {0.3, 0.3}},
	}

	b, err := BlendResult(res, y, testGrid)
	require.NoError(t, err)

	// a scores F1=1; b predicts everything positive below 0.3, so
	// precision=0.5, recall=1, F1=2/3. weights: 1/(5/3)=0.6, (2/3)/(5/3)=0.4
	assert.InDelta(t, 1.0, b.BestF1["a"], 1e-12)
	assert.InDelta(t, 2.0/3.0, b.BestF1["b"], 1e-12)
	assert.InDelta(t, 0.6, b.Weights["a"], 1e-12)
	assert.InDelta(t, 0.4, b.Weights["b"], 1e-12)
	assert.InDelta(t, 1.0, b.Weights["a"]+b.Weights["b"], 1e-12)

	// blended vectors are the weighted sums
	assert.InDelta(t, 0.6*0.9+0.4*0.3, b.OOF[0], 1e-12)
	assert.InDelta(t, 0.6*0.1+0.4*0.3, b.OOF[1], 1e-12)
	assert.InDelta(t, 0.6*0.9+0.4*0.3, b.Test[0], 1e-12)

	// blended OOF separates perfectly: positives at 0.66, negatives at 0.18
	assert.InDelta(t, 1.0, b.OOFF1, 1e-12)
	assert.Equal(t, 1.0, b.OOFAUC)
}

func TestBlendResult_Errors(t *testing.T) {
	_, err := BlendResult(&Result{}, nil, testGrid)
	assert.Error(t, err)

	// every model scoring zero F1 cannot be weighted
	res := &Result{
		Models: []string{"a"},
		OOF:    map[string][]float64{"a": {0.0, 0.0}},
		Test:   map[string][]float64{"a": {}},
	}
	_, err = BlendResult(res, []int{1, 0}, testGrid)
	assert.Error(t, err)
}

func TestDefaultProfiles(t *testing.T) {
	tuned := profilesTestParams()
	profiles := DefaultProfiles(tuned, 2000, 150, 42)

	require.Len(t, profiles, 3)
	assert.Equal(t, "fine", profiles[0].Name)
	assert.Equal(t, "deep", profiles[1].Name)
	assert.Equal(t, "tuned", profiles[2].Name)

	for _, p := range profiles {
		assert.Equal(t, 2000, p.Params.MaxRounds, p.Name)
		assert.Equal(t, 150, p.Params.Patience, p.Name)
	}
	// the deep profile trades depth for a stricter leaf budget
	assert.Greater(t, profiles[1].Params.MaxDepth, profiles[0].Params.MaxDepth)
	// the tuned profile keeps its searched learning rate
	assert.Equal(t, tuned.LearningRate, profiles[2].Params.LearningRate)
	// distinct base seeds per profile
	assert.NotEqual(t, profiles[0].Params.Seed, profiles[1].Params.Seed)
}
