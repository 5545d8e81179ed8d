package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/triguard/subro-cli/internal/model"
)

// predictionColumns is the column order of the warehouse predictions table.
var predictionColumns = []string{"run_id", "claim_number", "probability", "label"}

// UploadPredictions bulk-copies scored claims into <schema>.predictions
// using the PostgreSQL COPY protocol, tagged with the run they came from.
func UploadPredictions(ctx context.Context, pool Pool, schema, runID string, preds []model.Prediction) (int64, error) {
	if len(preds) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(preds))
	for i, p := range preds {
		rows[i] = []any{runID, p.ClaimNumber, p.Probability, p.Label}
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, "predictions"}, predictionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.predictions", schema)
	}
	return n, nil
}
