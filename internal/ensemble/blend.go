package ensemble

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/ml"
)

// Blend combines the per-model probability vectors. Each model's weight
// is its best out-of-fold F1 normalized so the weights sum to one; the
// decision threshold is then re-scanned on the blended out-of-fold
// vector.
type Blend struct {
	Weights   map[string]float64 `json:"weights"`
	BestF1    map[string]float64 `json:"best_f1"`
	Threshold float64            `json:"threshold"`
	OOFF1     float64            `json:"oof_f1"`
	OOFAUC    float64            `json:"oof_auc"`
	OOF       []float64          `json:"-"`
	Test      []float64          `json:"-"`
}

// BlendResult weights and blends a cross-validation result against the
// true labels.
func BlendResult(res *Result, y []int, grid ml.ThresholdGrid) (*Blend, error) {
	if len(res.Models) == 0 {
		return nil, eris.New("ensemble: nothing to blend")
	}

	b := &Blend{
		Weights: make(map[string]float64, len(res.Models)),
		BestF1:  make(map[string]float64, len(res.Models)),
	}

	total := 0.0
	for _, name := range res.Models {
		f1, thr := ml.BestF1(y, res.OOF[name], grid)
		b.BestF1[name] = f1
		total += f1
		zap.L().Info("base model scored",
			zap.String("model", name),
			zap.Float64("oof_f1", f1),
			zap.Float64("threshold", thr),
			zap.Float64("oof_auc", ml.AUC(y, res.OOF[name])),
		)
	}
	if total <= 0 {
		return nil, eris.New("ensemble: every base model scored zero F1")
	}
	for name, f1 := range b.BestF1 {
		b.Weights[name] = f1 / total
	}

	b.OOF = weighted(res.OOF, b.Weights, res.Models, len(y))
	if n := len(res.Test[res.Models[0]]); n > 0 {
		b.Test = weighted(res.Test, b.Weights, res.Models, n)
	} else {
		b.Test = []float64{}
	}

	b.OOFF1, b.Threshold = ml.BestF1(y, b.OOF, grid)
	b.OOFAUC = ml.AUC(y, b.OOF)

	zap.L().Info("ensemble blended",
		zap.Float64("oof_f1", b.OOFF1),
		zap.Float64("oof_auc", b.OOFAUC),
		zap.Float64("threshold", b.Threshold),
		zap.Any("weights", b.Weights),
	)
	return b, nil
}

func weighted(vectors map[string][]float64, weights map[string]float64, models []string, n int) []float64 {
	out := make([]float64, n)
	for _, name := range models {
		w := weights[name]
		for i, p := range vectors[name] {
			out[i] += w * p
		}
	}
	return out
}
