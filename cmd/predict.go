package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/db"
	"github.com/triguard/subro-cli/internal/ensemble"
	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/model"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score claims with a completed run",
	Long:  "Loads the artifacts and model bundle of a completed run, applies the frozen feature transform to the configured source tables, and writes blended, thresholded predictions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, _ := cmd.Flags().GetString("run")
		var run *model.Run
		if runID == "" {
			run, err = st.LatestCompleteRun(ctx)
			if err != nil {
				return eris.Wrap(err, "predict: no completed runs")
			}
		} else {
			run, err = st.GetRun(ctx, runID)
			if err != nil {
				return eris.Wrap(err, "predict: load run")
			}
		}
		if run.Status != model.RunStatusComplete {
			return eris.Errorf("predict: run %s is %s, only complete runs can score", run.ID, run.Status)
		}

		arts, err := st.GetArtifacts(ctx, run.ID)
		if err != nil {
			return err
		}
		data, err := st.GetBundle(ctx, run.ID)
		if err != nil {
			return err
		}
		bundle, err := ensemble.UnmarshalBundle(data)
		if err != nil {
			return err
		}

		merged, err := loadMerged(ctx)
		if err != nil {
			return err
		}
		frame, err := feature.NewEngine().Apply(merged, arts)
		if err != nil {
			return eris.Wrap(err, "predict: apply transform")
		}
		probs, labels, err := bundle.Score(frame)
		if err != nil {
			return err
		}

		claims, err := merged.Column(claimColumn)
		if err != nil {
			return eris.Wrap(err, "predict: claim numbers")
		}
		preds := make([]model.Prediction, len(claims))
		for i, claim := range claims {
			preds[i] = model.Prediction{ClaimNumber: claim, Probability: probs[i], Label: labels[i]}
		}
		if err := st.SavePredictions(ctx, run.ID, preds); err != nil {
			return err
		}
		zap.L().Info("claims scored",
			zap.String("run_id", run.ID),
			zap.Int("rows", len(preds)),
			zap.Float64("threshold", bundle.Threshold),
		)

		outPath, _ := cmd.Flags().GetString("out")
		if outPath != "" {
			if err := writePredictionsCSV(outPath, preds); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %d predictions to %s\n", len(preds), outPath)
		}

		if upload, _ := cmd.Flags().GetBool("upload"); upload {
			if err := uploadPredictions(cmd, run.ID, preds); err != nil {
				return err
			}
		}
		return nil
	},
}

// uploadPredictions bulk-copies scored rows back into the warehouse
// schema the source tables came from.
func uploadPredictions(cmd *cobra.Command, runID string, preds []model.Prediction) error {
	if cfg.Data.DatabaseURL == "" {
		return eris.New("predict: --upload requires data.database_url")
	}
	ctx := cmd.Context()

	pool, err := db.NewPool(ctx, cfg.Data.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := db.UploadPredictions(ctx, pool, cfg.Data.Schema, runID, preds)
	if err != nil {
		return err
	}
	zap.L().Info("predictions uploaded", zap.Int64("rows", n), zap.String("schema", cfg.Data.Schema))
	return nil
}

func init() {
	predictCmd.Flags().String("run", "", "run ID to score with (default: latest completed run)")
	predictCmd.Flags().String("out", "predictions.csv", "output CSV path")
	predictCmd.Flags().Bool("upload", false, "bulk-copy predictions into the warehouse predictions table")
	rootCmd.AddCommand(predictCmd)
}
