package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdGridValues(t *testing.T) {
	grid := ThresholdGrid{Min: 0.20, Max: 0.40, Steps: 41}
	values := grid.Values()

	require.Len(t, values, 41)
	assert.Equal(t, 0.20, values[0])
	assert.InDelta(t, 0.40, values[40], 1e-12)
	assert.InDelta(t, 0.005, values[1]-values[0], 1e-12) // (0.40-0.20)/40

	assert.Equal(t, []float64{0.3}, ThresholdGrid{Min: 0.3, Max: 0.5, Steps: 1}.Values())
}

func TestF1(t *testing.T) {
	y := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.3, 0.8, 0.1}

	// at 0.5: tp=1, fp=1, fn=1 → precision=0.5, recall=0.5, F1=0.5
	assert.InDelta(t, 0.5, F1(y, probs, 0.5), 1e-12)
	// at 0.2: tp=2, fp=1, fn=0 → precision=2/3, recall=1, F1=0.8
	assert.InDelta(t, 0.8, F1(y, probs, 0.2), 1e-12)
	// no predicted positives
	assert.Equal(t, 0.0, F1(y, probs, 0.95))
	// no actual positives
	assert.Equal(t, 0.0, F1([]int{0, 0}, []float64{0.9, 0.9}, 0.5))
}

func TestBestF1(t *testing.T) {
	y := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.3, 0.8, 0.1}

	best, thr := BestF1(y, probs, ThresholdGrid{Min: 0.20, Max: 0.40, Steps: 41})
	assert.InDelta(t, 0.8, best, 1e-12)
	// every threshold in (0.1, 0.3] scores 0.8; ties keep the lowest
	assert.Equal(t, 0.20, thr)
}

func TestAUC(t *testing.T) {
	// perfect ranking
	assert.Equal(t, 1.0, AUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}))
	// perfectly inverted
	assert.Equal(t, 0.0, AUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}))
	// single class is undefined, reported as chance
	assert.Equal(t, 0.5, AUC([]int{1, 1}, []float64{0.2, 0.9}))
	// all probabilities tied → chance
	assert.InDelta(t, 0.5, AUC([]int{0, 1, 0, 1}, []float64{0.4, 0.4, 0.4, 0.4}), 1e-12)
}

func TestLogLoss(t *testing.T) {
	// confident and correct → small; confident and wrong → large
	good := LogLoss([]int{1, 0}, []float64{0.99, 0.01})
	bad := LogLoss([]int{1, 0}, []float64{0.01, 0.99})
	assert.Less(t, good, 0.02)
	assert.Greater(t, bad, 4.0)
	// clamping keeps hard 0/1 probabilities finite
	assert.False(t, LogLoss([]int{1}, []float64{0}) > 1e30)
}
