package ensemble

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triguard/subro-cli/internal/dataset"
	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/ml/gbdt"
)

var claimColumns = []string{
	"claim_date", "liab_prct", "claim_est_payout", "witness_present_ind",
	"policy_report_filed_ind", "in_network_bodyshop", "zip_code", "channel",
	"accident_site", "accident_type", "annual_income", "high_education_ind",
	"address_change_ind", "past_num_of_claims", "gender", "year_of_born",
	"age_of_DL", "safety_rating", "vehicle_category", "vehicle_price",
	"vehicle_weight", "vehicle_mileage",
}

// syntheticClaims builds n rows where recovery tracks liability: positives
// sit in the 75-80% band, negatives in the 5-10% band.
func syntheticClaims(n int, positiveEvery int) (*dataset.Table, []int) {
	t := dataset.New("merged", claimColumns)
	y := make([]int, 0, n)

	sites := []string{"Highway", "Parking Area", "Local"}
	types := []string{"Multi vehicle unclear", "Single car", "Rear end"}

	for i := 0; i < n; i++ {
		label := 0
		liab := 5 + i%5
		if i%10 < positiveEvery {
			label = 1
			liab = 75 + i%5
		}
		y = append(y, label)

		row := map[string]string{
			"claim_date":              fmt.Sprintf("2016-03-%02d 10:00:00", 1+i%28),
			"liab_prct":               fmt.Sprintf("%d", liab),
			"claim_est_payout":        fmt.Sprintf("%d", 2000+i*13%8000),
			"witness_present_ind":     []string{"Y", "N"}[i%2],
			"policy_report_filed_ind": []string{"1", "0"}[i%3%2],
			"in_network_bodyshop":     "yes",
			"zip_code":                fmt.Sprintf("9021%d", i%4),
			"channel":                 []string{"Broker", "Online"}[i%2],
			"accident_site":           sites[i%len(sites)],
			"accident_type":           types[i%len(types)],
			"annual_income":           fmt.Sprintf("%d", 30000+i*211%40000),
			"high_education_ind":      "1",
			"address_change_ind":      "0",
			"past_num_of_claims":      fmt.Sprintf("%d", i%4),
			"gender":                  []string{"F", "M"}[i%2],
			"year_of_born":            fmt.Sprintf("%d", 1960+i%40),
			"age_of_DL":               "18",
			"safety_rating":           fmt.Sprintf("%d", 30+i%60),
			"vehicle_category":        []string{"Compact", "Large"}[i%2],
			"vehicle_price":           fmt.Sprintf("%d", 10000+i*97%30000),
			"vehicle_weight":          "3000",
			"vehicle_mileage":         fmt.Sprintf("%d", 20000+i*503%80000),
		}
		rec := make([]string, len(claimColumns))
		for j, c := range claimColumns {
			rec[j] = row[c]
		}
		t.Append(rec)
	}
	return t, y
}

func smallProfiles() []Profile {
	a := gbdt.Params{LearningRate: 0.2, MaxDepth: 3, MaxRounds: 40, Seed: 1}
	b := a
	b.MaxDepth = 4
	b.Seed = 2
	return []Profile{{Name: "a", Params: a}, {Name: "b", Params: b}}
}

func TestTrain_EndToEnd(t *testing.T) {
	trainTbl, y := syntheticClaims(120, 3)
	testTbl, _ := syntheticClaims(12, 3)

	e := feature.NewEngine()
	trainFrame, arts, err := e.Fit(trainTbl)
	require.NoError(t, err)
	testFrame, err := e.Apply(testTbl, arts)
	require.NoError(t, err)

	cfg := Config{Folds: 3, Seed: 42, Smoothing: 30, SMOTERatio: 0.5}
	res, err := Train(cfg, smallProfiles(), trainFrame, y, testFrame)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b"}, res.Models)
	require.Len(t, res.Folds, 3)
	for _, fm := range res.Folds {
		assert.Len(t, fm.Target, len(feature.TargetEncodeFeatures))
		assert.Len(t, fm.Labels, len(feature.CategoricalFeatures))
		assert.Len(t, fm.Boosters, 2)
	}

	blend, err := BlendResult(res, y, testGrid)
	require.NoError(t, err)

	// liability bands fully determine the label, so out-of-fold F1 is high
	assert.Greater(t, blend.OOFF1, 0.9)
	assert.Greater(t, blend.OOFAUC, 0.95)
	require.Len(t, blend.Test, 12)

	bundle := NewBundle(smallProfiles(), res, blend)
	data, err := bundle.Marshal()
	require.NoError(t, err)
	restored, err := UnmarshalBundle(data)
	require.NoError(t, err)

	probs, labels, err := restored.Score(testFrame)
	require.NoError(t, err)
	require.Len(t, probs, 12)
	require.Len(t, labels, 12)

	// bundle inference reproduces the fold-averaged blend exactly
	for i := range probs {
		assert.InDelta(t, blend.Test[i], probs[i], 1e-9, "row %d", i)
		want := 0
		if blend.Test[i] >= blend.Threshold {
			want = 1
		}
		assert.Equal(t, want, labels[i], "row %d", i)
	}
}

func TestTrain_ParallelMatchesSequential(t *testing.T) {
	trainTbl, y := syntheticClaims(90, 3)

	e := feature.NewEngine()
	frame, arts, err := e.Fit(trainTbl)
	require.NoError(t, err)
	testFrame, err := e.Apply(trainTbl, arts)
	require.NoError(t, err)

	seq, err := Train(Config{Folds: 3, Seed: 42, Smoothing: 30, SMOTERatio: 0.5}, smallProfiles(), frame, y, testFrame)
	require.NoError(t, err)
	par, err := Train(Config{Folds: 3, Seed: 42, Smoothing: 30, SMOTERatio: 0.5, Parallel: true}, smallProfiles(), frame, y, testFrame)
	require.NoError(t, err)

	// fold work is independent, so scheduling must not change the numbers
	assert.Equal(t, seq.OOF, par.OOF)
	for _, name := range seq.Models {
		for i := range seq.Test[name] {
			assert.InDelta(t, seq.Test[name][i], par.Test[name][i], 1e-12)
		}
	}
}

func TestTrain_InputValidation(t *testing.T) {
	frame := feature.NewFrame(2)
	_, err := Train(Config{Folds: 2}, smallProfiles(), frame, []int{1}, frame)
	assert.Error(t, err)

	_, err = Train(Config{Folds: 2}, nil, frame, []int{1, 0}, frame)
	assert.Error(t, err)
}

func TestModelFeatures(t *testing.T) {
	cols := ModelFeatures()
	// engineered numerics + 3 label-encoded + 4 target-encoded columns
	assert.Len(t, cols, len(feature.SelectedFeatures)+3+4)
	assert.Equal(t, "accident_combo_te", cols[len(cols)-1])
}
