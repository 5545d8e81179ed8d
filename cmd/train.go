package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/dataset"
	"github.com/triguard/subro-cli/internal/ensemble"
	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/ml"
	"github.com/triguard/subro-cli/internal/model"
	"github.com/triguard/subro-cli/internal/store"
	"github.com/triguard/subro-cli/internal/tune"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the subrogation ensemble",
	Long:  "Loads the five source tables, fits the feature transform on the training partition, runs hyperparameter search and cross-validated training, and persists the run with its artifacts, model bundle, and holdout predictions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		configJSON, err := json.Marshal(cfg.Train)
		if err != nil {
			return eris.Wrap(err, "train: marshal config")
		}
		run, err := st.CreateRun(ctx, string(configJSON))
		if err != nil {
			return err
		}
		zap.L().Info("run started", zap.String("run_id", run.ID))

		outPath, _ := cmd.Flags().GetString("out")
		preds, metrics, err := runTraining(ctx, st, run.ID)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID, err); failErr != nil {
				zap.L().Error("mark run failed", zap.Error(failErr))
			}
			return err
		}

		if err := st.CompleteRun(ctx, run.ID, metrics); err != nil {
			return err
		}
		zap.L().Info("run complete",
			zap.String("run_id", run.ID),
			zap.Float64("oof_f1", metrics.OOFF1),
			zap.Float64("oof_auc", metrics.OOFAUC),
			zap.Float64("threshold", metrics.Threshold),
		)

		if outPath != "" {
			if err := writePredictionsCSV(outPath, preds); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %d predictions to %s\n", len(preds), outPath)
		}
		fmt.Fprintf(os.Stdout, "run %s: oof_f1=%.4f threshold=%.3f\n", run.ID, metrics.OOFF1, metrics.Threshold)
		return nil
	},
}

func runTraining(ctx context.Context, st store.Store, runID string) ([]model.Prediction, *model.RunMetrics, error) {
	merged, err := loadMerged(ctx)
	if err != nil {
		return nil, nil, err
	}

	trainTable, testTable, err := dataset.SplitHoldout(merged, cfg.Data.HoldoutYear, cfg.Data.HoldoutMonth)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: split holdout")
	}
	labeled, y, err := dataset.FilterLabeled(trainTable, labelColumn)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: filter labels")
	}
	zap.L().Info("partitions ready",
		zap.Int("train_rows", labeled.NumRows()),
		zap.Int("test_rows", testTable.NumRows()),
	)

	engine := feature.NewEngine()
	trainFrame, arts, err := engine.Fit(labeled)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: fit transform")
	}
	testFrame, err := engine.Apply(testTable, arts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: apply transform")
	}
	if err := st.SaveArtifacts(ctx, runID, arts); err != nil {
		return nil, nil, err
	}

	tuneX, err := trainFrame.Matrix(feature.SelectedFeatures)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: tuning matrix")
	}
	tuned, err := tune.Optimize(ctx, tuneX, y, tune.DefaultSpace(), cfg.Tune.Trials, cfg.Tune.Folds, cfg.Tune.Seed)
	if err != nil {
		return nil, nil, err
	}

	profiles := ensemble.DefaultProfiles(tuned, cfg.Train.MaxRounds, cfg.Train.Patience, cfg.Train.Seed)
	res, err := ensemble.Train(ensemble.Config{
		Folds:      cfg.Train.Folds,
		Seed:       cfg.Train.Seed,
		Smoothing:  cfg.Train.Smoothing,
		SMOTERatio: cfg.Train.SMOTERatio,
		Parallel:   cfg.Train.ParallelFolds,
	}, profiles, trainFrame, y, testFrame)
	if err != nil {
		return nil, nil, err
	}

	grid := ml.ThresholdGrid{
		Min:   cfg.Train.ThresholdMin,
		Max:   cfg.Train.ThresholdMax,
		Steps: cfg.Train.ThresholdSteps,
	}
	blend, err := ensemble.BlendResult(res, y, grid)
	if err != nil {
		return nil, nil, err
	}

	bundle := ensemble.NewBundle(profiles, res, blend)
	data, err := bundle.Marshal()
	if err != nil {
		return nil, nil, err
	}
	if err := st.SaveBundle(ctx, runID, data); err != nil {
		return nil, nil, err
	}

	claims, err := testTable.Column(claimColumn)
	if err != nil {
		return nil, nil, eris.Wrap(err, "train: claim numbers")
	}
	preds := make([]model.Prediction, len(claims))
	for i, claim := range claims {
		label := 0
		if blend.Test[i] >= blend.Threshold {
			label = 1
		}
		preds[i] = model.Prediction{ClaimNumber: claim, Probability: blend.Test[i], Label: label}
	}
	if err := st.SavePredictions(ctx, runID, preds); err != nil {
		return nil, nil, err
	}

	positives := 0
	for _, label := range y {
		positives += label
	}
	metrics := &model.RunMetrics{
		OOFF1:        blend.OOFF1,
		OOFAUC:       blend.OOFAUC,
		Threshold:    blend.Threshold,
		Weights:      blend.Weights,
		TrainRows:    labeled.NumRows(),
		TestRows:     testTable.NumRows(),
		PositiveRate: float64(positives) / float64(len(y)),
	}
	return preds, metrics, nil
}

func writePredictionsCSV(path string, preds []model.Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"claim_number", "probability", "label"}); err != nil {
		return eris.Wrap(err, "write header")
	}
	for _, p := range preds {
		rec := []string{
			p.ClaimNumber,
			strconv.FormatFloat(p.Probability, 'f', 6, 64),
			strconv.Itoa(p.Label),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "write prediction %s", p.ClaimNumber)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush predictions")
}

func init() {
	trainCmd.Flags().String("out", "", "write holdout predictions to this CSV file")
	rootCmd.AddCommand(trainCmd)
}
