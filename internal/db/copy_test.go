package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triguard/subro-cli/internal/model"
)

func TestUploadPredictions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	preds := []model.Prediction{
		{ClaimNumber: "1001", Probability: 0.81, Label: 1},
		{ClaimNumber: "1002", Probability: 0.12, Label: 0},
	}

	mock.ExpectCopyFrom(pgx.Identifier{"analytics", "predictions"}, predictionColumns).
		WillReturnResult(2)

	n, err := UploadPredictions(context.Background(), mock, "analytics", "run-1", preds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPredictions_EmptySkipsCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := UploadPredictions(context.Background(), mock, "analytics", "run-1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPredictions_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"analytics", "predictions"}, predictionColumns).
		WillReturnError(eris.New("permission denied"))

	_, err = UploadPredictions(context.Background(), mock, "analytics", "run-1",
		[]model.Prediction{{ClaimNumber: "1001", Probability: 0.5, Label: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO analytics.predictions")
}
