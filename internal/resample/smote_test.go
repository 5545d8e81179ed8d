package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		x = append(x, []float64{float64(i), 100})
		y = append(y, 0)
	}
	for i := 0; i < 4; i++ {
		x = append(x, []float64{float64(i), 0})
		y = append(y, 1)
	}
	return x, y
}

func TestSMOTE_ReachesTargetRatio(t *testing.T) {
	x, y := imbalanced()

	outX, outY, err := SMOTE(x, y, 0.5, 5, 42)
	require.NoError(t, err)

	// target = floor(0.5*20) = 10 positives, so 6 synthetic rows
	require.Len(t, outX, 30)
	require.Len(t, outY, 30)

	pos := 0
	for _, label := range outY {
		pos += label
	}
	assert.Equal(t, 10, pos)

	// originals are untouched and come first
	assert.Equal(t, x[0], outX[0])
	assert.Equal(t, x[23], outX[23])
}

func TestSMOTE_SyntheticRowsInterpolateMinority(t *testing.T) {
	x, y := imbalanced()

	outX, outY, err := SMOTE(x, y, 0.5, 5, 42)
	require.NoError(t, err)

	// minority rows live in {x0 in [0,3], x1 = 0}; interpolation stays inside
	// that hull
	for i := len(x); i < len(outX); i++ {
		assert.Equal(t, 1, outY[i])
		assert.GreaterOrEqual(t, outX[i][0], 0.0)
		assert.LessOrEqual(t, outX[i][0], 3.0)
		assert.Equal(t, 0.0, outX[i][1])
	}
}

func TestSMOTE_Deterministic(t *testing.T) {
	x, y := imbalanced()

	a, _, err := SMOTE(x, y, 0.5, 5, 7)
	require.NoError(t, err)
	b, _, err := SMOTE(x, y, 0.5, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, _, err := SMOTE(x, y, 0.5, 5, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSMOTE_AlreadyBalanced(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []int{0, 0, 1, 1}

	outX, outY, err := SMOTE(x, y, 0.5, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, x, outX)
	assert.Equal(t, y, outY)
}

func TestSMOTE_Errors(t *testing.T) {
	x, y := imbalanced()

	_, _, err := SMOTE(x, y[:len(y)-1], 0.5, 5, 42)
	assert.Error(t, err)

	_, _, err = SMOTE(x, y, 0, 5, 42)
	assert.Error(t, err)
	_, _, err = SMOTE(x, y, 1.5, 5, 42)
	assert.Error(t, err)

	allZero := make([]int, len(y))
	_, _, err = SMOTE(x, allZero, 0.5, 5, 42)
	assert.Error(t, err)

	// one minority row cannot be interpolated
	oneX := [][]float64{{1}, {2}, {3}, {4}, {5}}
	oneY := []int{0, 0, 0, 0, 1}
	_, _, err = SMOTE(oneX, oneY, 0.5, 5, 42)
	assert.Error(t, err)
}
