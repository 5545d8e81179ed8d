// Package ensemble trains the three-booster blend with stratified
// cross-validation, fold-local target encoding, and minority
// oversampling confined to each fold's training slice.
package ensemble

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triguard/subro-cli/internal/encode"
	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/ml"
	"github.com/triguard/subro-cli/internal/ml/gbdt"
	"github.com/triguard/subro-cli/internal/resample"
)

const smoteNeighbors = 5

// Profile is one base model of the ensemble: a name and its
// hyperparameter record.
type Profile struct {
	Name   string      `json:"name"`
	Params gbdt.Params `json:"params"`
}

// DefaultProfiles returns the two fixed base models plus the tuned one.
// The "fine" profile is the shallow, heavily regularized configuration;
// "deep" trades depth for a stricter leaf budget.
func DefaultProfiles(tuned gbdt.Params, maxRounds, patience int, seed int64) []Profile {
	fine := gbdt.Params{
		LearningRate:    0.0227,
		MaxDepth:        3,
		MinChildSamples: 32,
		Subsample:       0.7545,
		ColsampleByTree: 0.5992,
		RegAlpha:        4.786,
		RegLambda:       3.818,
		MaxRounds:       maxRounds,
		Patience:        patience,
		Seed:            seed,
	}
	deep := fine
	deep.MaxDepth = 6
	deep.MinChildSamples = 48
	deep.Seed = seed + 1

	tuned.MaxRounds = maxRounds
	tuned.Patience = patience
	tuned.Seed = seed + 2

	return []Profile{
		{Name: "fine", Params: fine},
		{Name: "deep", Params: deep},
		{Name: "tuned", Params: tuned},
	}
}

// Config carries the cross-validation settings.
type Config struct {
	Folds      int
	Seed       int64
	Smoothing  float64
	SMOTERatio float64
	Parallel   bool
}

// FoldModel is everything one fold needs to score unseen rows: its
// target and label encodings and the boosters trained inside it.
type FoldModel struct {
	Target   map[string]encode.TargetEncoding `json:"target"`
	Labels   map[string]encode.LabelEncoding  `json:"labels"`
	Boosters map[string]*gbdt.Booster         `json:"boosters"`
}

// Result holds the per-model out-of-fold and test probability vectors
// plus the fold models needed to reproduce inference.
type Result struct {
	Models []string
	OOF    map[string][]float64
	Test   map[string][]float64
	Folds  []FoldModel
}

// ModelFeatures is the final column order fed to the boosters: the
// engineered numerics, the label-encoded categoricals, and the
// target-encoded columns.
func ModelFeatures() []string {
	cols := make([]string, 0, len(feature.SelectedFeatures)+len(feature.CategoricalFeatures)+len(feature.TargetEncodeFeatures))
	cols = append(cols, feature.SelectedFeatures...)
	cols = append(cols, feature.CategoricalFeatures...)
	for _, c := range feature.TargetEncodeFeatures {
		cols = append(cols, c+"_te")
	}
	return cols
}

// Train runs the stratified cross-validation. train carries the labeled
// rows, y their binary labels, test the unlabeled scoring partition.
func Train(cfg Config, profiles []Profile, train *feature.Frame, y []int, test *feature.Frame) (*Result, error) {
	if train.NumRows() != len(y) {
		return nil, eris.Errorf("ensemble: %d rows but %d labels", train.NumRows(), len(y))
	}
	if len(profiles) == 0 {
		return nil, eris.New("ensemble: no model profiles")
	}

	valFolds, err := ml.StratifiedKFold(y, cfg.Folds, cfg.Seed)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: split folds")
	}

	baseTrain, err := train.Matrix(feature.SelectedFeatures)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: train matrix")
	}
	baseTest, err := test.Matrix(feature.SelectedFeatures)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: test matrix")
	}

	trainStr, err := stringColumns(train)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: train categoricals")
	}
	testStr, err := stringColumns(test)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: test categoricals")
	}

	res := &Result{
		Models: make([]string, 0, len(profiles)),
		OOF:    make(map[string][]float64, len(profiles)),
		Test:   make(map[string][]float64, len(profiles)),
		Folds:  make([]FoldModel, cfg.Folds),
	}
	for _, p := range profiles {
		res.Models = append(res.Models, p.Name)
		res.OOF[p.Name] = make([]float64, len(y))
		res.Test[p.Name] = make([]float64, test.NumRows())
	}

	var mu sync.Mutex
	var g errgroup.Group
	if !cfg.Parallel {
		g.SetLimit(1)
	}

	for fold := range valFolds {
		fold := fold
		g.Go(func() error {
			fm, oof, testPred, err := trainFold(cfg, profiles, fold, valFolds[fold],
				baseTrain, baseTest, trainStr, testStr, y)
			if err != nil {
				return eris.Wrapf(err, "ensemble: fold %d", fold)
			}

			mu.Lock()
			defer mu.Unlock()
			res.Folds[fold] = fm
			scale := 1.0 / float64(cfg.Folds)
			for name, preds := range oof {
				dst := res.OOF[name]
				for i, idx := range valFolds[fold] {
					dst[idx] = preds[i]
				}
				acc := res.Test[name]
				for i, p := range testPred[name] {
					acc[i] += p * scale
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// trainFold builds the fold's encodings, oversamples its training
// slice, and trains every profile against the fold's validation slice.
func trainFold(cfg Config, profiles []Profile, fold int, valIdx []int,
	baseTrain, baseTest [][]float64, trainStr, testStr map[string][]string, y []int,
) (FoldModel, map[string][]float64, map[string][]float64, error) {
	trainIdx := ml.TrainIndexes(len(y), valIdx)

	fm := FoldModel{
		Target:   make(map[string]encode.TargetEncoding, len(feature.TargetEncodeFeatures)),
		Labels:   make(map[string]encode.LabelEncoding, len(feature.CategoricalFeatures)),
		Boosters: make(map[string]*gbdt.Booster, len(profiles)),
	}

	foldY := gatherInts(y, trainIdx)
	valY := gatherInts(y, valIdx)

	// Fit encodings on the fold's training rows only, then extend
	// every partition with the encoded columns.
	trX := gatherRows(baseTrain, trainIdx)
	vaX := gatherRows(baseTrain, valIdx)
	teX := copyRows(baseTest)

	for _, col := range feature.CategoricalFeatures {
		foldVals := gatherStrings(trainStr[col], trainIdx)
		valVals := gatherStrings(trainStr[col], valIdx)
		enc := encode.FitLabels(foldVals, valVals, testStr[col])
		fm.Labels[col] = enc
		appendColumn(trX, enc.Apply(foldVals))
		appendColumn(vaX, enc.Apply(valVals))
		appendColumn(teX, enc.Apply(testStr[col]))
	}
	for _, col := range feature.TargetEncodeFeatures {
		foldVals := gatherStrings(trainStr[col], trainIdx)
		enc := encode.FitTarget(foldVals, foldY, cfg.Smoothing)
		fm.Target[col] = enc
		appendColumn(trX, enc.Apply(foldVals))
		appendColumn(vaX, enc.Apply(gatherStrings(trainStr[col], valIdx)))
		appendColumn(teX, enc.Apply(testStr[col]))
	}

	foldSeed := cfg.Seed + int64(fold)
	trX, foldY, err := resample.SMOTE(trX, foldY, cfg.SMOTERatio, smoteNeighbors, foldSeed)
	if err != nil {
		return FoldModel{}, nil, nil, eris.Wrap(err, "oversample")
	}

	oof := make(map[string][]float64, len(profiles))
	testPred := make(map[string][]float64, len(profiles))
	for _, p := range profiles {
		params := p.Params
		params.Seed += foldSeed

		booster, err := gbdt.Train(trX, foldY, vaX, valY, params)
		if err != nil {
			return FoldModel{}, nil, nil, eris.Wrapf(err, "train %s", p.Name)
		}
		fm.Boosters[p.Name] = booster

		valProbs := booster.Predict(vaX)
		oof[p.Name] = valProbs
		testPred[p.Name] = booster.Predict(teX)

		f1, _ := ml.BestF1(valY, valProbs, ml.ThresholdGrid{Min: 0.20, Max: 0.40, Steps: 21})
		zap.L().Debug("fold model trained",
			zap.Int("fold", fold),
			zap.String("model", p.Name),
			zap.Int("rounds", booster.BestRounds),
			zap.Float64("val_f1", f1),
		)
	}
	return fm, oof, testPred, nil
}

// Predict scores unseen rows with a trained result: each fold's
// boosters see the rows through that fold's own encodings, and the fold
// scores are averaged.
func Predict(folds []FoldModel, weights map[string]float64, frame *feature.Frame) ([]float64, error) {
	base, err := frame.Matrix(feature.SelectedFeatures)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: predict matrix")
	}
	str, err := stringColumns(frame)
	if err != nil {
		return nil, eris.Wrap(err, "ensemble: predict categoricals")
	}
	if len(folds) == 0 {
		return nil, eris.New("ensemble: no fold models")
	}

	out := make([]float64, frame.NumRows())
	scale := 1.0 / float64(len(folds))
	for _, fm := range folds {
		x := copyRows(base)
		for _, col := range feature.CategoricalFeatures {
			enc, ok := fm.Labels[col]
			if !ok {
				return nil, eris.Errorf("ensemble: fold model missing label encoding %q", col)
			}
			appendColumn(x, enc.Apply(str[col]))
		}
		for _, col := range feature.TargetEncodeFeatures {
			enc, ok := fm.Target[col]
			if !ok {
				return nil, eris.Errorf("ensemble: fold model missing target encoding %q", col)
			}
			appendColumn(x, enc.Apply(str[col]))
		}

		for name, w := range weights {
			booster, ok := fm.Boosters[name]
			if !ok {
				return nil, eris.Errorf("ensemble: fold model missing booster %q", name)
			}
			for i, p := range booster.Predict(x) {
				out[i] += w * p * scale
			}
		}
	}
	return out, nil
}

func stringColumns(f *feature.Frame) (map[string][]string, error) {
	cols := make(map[string][]string)
	for _, c := range feature.CategoricalFeatures {
		v, err := f.Str(c)
		if err != nil {
			return nil, err
		}
		cols[c] = v
	}
	for _, c := range feature.TargetEncodeFeatures {
		v, err := f.Str(c)
		if err != nil {
			return nil, err
		}
		cols[c] = v
	}
	return cols, nil
}

func gatherRows(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, r := range idx {
		row := make([]float64, len(x[r]), len(x[r])+len(feature.CategoricalFeatures)+len(feature.TargetEncodeFeatures))
		copy(row, x[r])
		out[i] = row
	}
	return out
}

func copyRows(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, r := range x {
		row := make([]float64, len(r), len(r)+len(feature.CategoricalFeatures)+len(feature.TargetEncodeFeatures))
		copy(row, r)
		out[i] = row
	}
	return out
}

func gatherInts(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}

func gatherStrings(v []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, r := range idx {
		out[i] = v[r]
	}
	return out
}

func appendColumn(x [][]float64, col []float64) {
	for i := range x {
		x[i] = append(x[i], col[i])
	}
}
