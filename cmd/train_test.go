package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triguard/subro-cli/internal/model"
)

func TestWritePredictionsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	preds := []model.Prediction{
		{ClaimNumber: "1001", Probability: 0.8125, Label: 1},
		{ClaimNumber: "1002", Probability: 0.05, Label: 0},
	}

	require.NoError(t, writePredictionsCSV(path, preds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"claim_number,probability,label\n1001,0.812500,1\n1002,0.050000,0\n",
		string(data),
	)
}

func TestWritePredictionsCSV_EmptyStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, writePredictionsCSV(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claim_number,probability,label\n", string(data))
}

func TestWritePredictionsCSV_BadPath(t *testing.T) {
	err := writePredictionsCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), nil)
	assert.Error(t, err)
}
