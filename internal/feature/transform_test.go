package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triguard/subro-cli/internal/dataset"
)

func baseRow() map[string]string {
	return map[string]string{
		"claim_date":              "2016-03-15 08:30:00", // a Tuesday
		"liab_prct":               "25",
		"claim_est_payout":        "5000",
		"witness_present_ind":     "Y",
		"policy_report_filed_ind": "1",
		"in_network_bodyshop":     "yes",
		"zip_code":                "90210",
		"channel":                 "Broker",
		"accident_site":           "Highway",
		"accident_type":           "Multi vehicle unclear fault",
		"annual_income":           "42000",
		"high_education_ind":      "1",
		"address_change_ind":      "0",
		"past_num_of_claims":      "2",
		"gender":                  "F",
		"year_of_born":            "1986",
		"age_of_DL":               "18",
		"safety_rating":           "75",
		"vehicle_category":        "Compact",
		"vehicle_price":           "18000",
		"vehicle_weight":          "3000",
		"vehicle_mileage":         "60000",
	}
}

func claimTable(rows ...map[string]string) *dataset.Table {
	t := dataset.New("merged", requiredColumns)
	for _, m := range rows {
		rec := make([]string, len(requiredColumns))
		for i, c := range requiredColumns {
			rec[i] = m[c]
		}
		t.Append(rec)
	}
	return t
}

func with(overrides map[string]string) map[string]string {
	row := baseRow()
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func mustFloat(t *testing.T, f *Frame, col string) []float64 {
	t.Helper()
	v, err := f.Float(col)
	require.NoError(t, err)
	return v
}

func TestFit_ProducesAllModelColumns(t *testing.T) {
	f, arts, err := NewEngine().Fit(claimTable(baseRow()))
	require.NoError(t, err)

	for _, col := range SelectedFeatures {
		_, err := f.Float(col)
		assert.NoError(t, err, "missing %s", col)
	}
	for _, col := range CategoricalFeatures {
		_, err := f.Str(col)
		assert.NoError(t, err, "missing %s", col)
	}
	for _, col := range TargetEncodeFeatures {
		_, err := f.Str(col)
		assert.NoError(t, err, "missing %s", col)
	}

	// mileage_median + vehicle_mileage_p75 + 4 financial cols x {med,p99,p01,p75}
	assert.Len(t, arts, 18)
}

func TestFitThenApplySameRowsIsIdentical(t *testing.T) {
	tbl := claimTable(
		baseRow(),
		with(map[string]string{"liab_prct": "75", "claim_date": "2016-03-19 23:00:00"}),
		with(map[string]string{"vehicle_mileage": "", "claim_date": "garbage"}),
	)
	e := NewEngine()

	fitted, arts, err := e.Fit(tbl)
	require.NoError(t, err)
	applied, err := e.Apply(tbl, arts)
	require.NoError(t, err)

	require.Equal(t, fitted.Columns(), applied.Columns())
	for _, col := range fitted.Columns() {
		if fv, err := fitted.Float(col); err == nil {
			av := mustFloat(t, applied, col)
			for r := range fv {
				if math.IsNaN(fv[r]) {
					assert.True(t, math.IsNaN(av[r]), "%s row %d", col, r)
				} else {
					assert.Equal(t, fv[r], av[r], "%s row %d", col, r)
				}
			}
			continue
		}
		fs, err := fitted.Str(col)
		require.NoError(t, err)
		as, err := applied.Str(col)
		require.NoError(t, err)
		assert.Equal(t, fs, as, col)
	}
}

func TestApply_RequiresArtifacts(t *testing.T) {
	_, err := NewEngine().Apply(claimTable(baseRow()), Artifacts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact")
}

func TestApply_ReplaysTrainingStatistics(t *testing.T) {
	e := NewEngine()
	fitTbl := claimTable(
		with(map[string]string{"vehicle_mileage": "10"}),
		with(map[string]string{"vehicle_mileage": "20"}),
		with(map[string]string{"vehicle_mileage": "30"}),
		with(map[string]string{"vehicle_mileage": "40"}),
	)
	_, arts, err := e.Fit(fitTbl)
	require.NoError(t, err)

	// median of {10,20,30,40} = 25, p75 = 30 + 0.25*10 = 32.5
	assert.Equal(t, 25.0, arts["mileage_median"])
	assert.Equal(t, 32.5, arts["vehicle_mileage_p75"])

	applyTbl := claimTable(
		with(map[string]string{"vehicle_mileage": "33"}),
		with(map[string]string{"vehicle_mileage": "32"}),
		with(map[string]string{"vehicle_mileage": ""}),
	)
	f, err := e.Apply(applyTbl, arts)
	require.NoError(t, err)

	high := mustFloat(t, f, "is_high_mileage")
	assert.Equal(t, []float64{1, 0, 0}, high) // cutoffs come from the fit rows, not these
	mileage := mustFloat(t, f, "vehicle_mileage")
	assert.Equal(t, 25.0, mileage[2]) // missing value imputed with the training median
}

func TestTemporalFeatures(t *testing.T) {
	tbl := claimTable(
		baseRow(), // Tuesday 08:30
		with(map[string]string{"claim_date": "2016-03-19 23:00:00"}), // Saturday night
		with(map[string]string{"claim_date": "not a date"}),
	)
	f, _, err := NewEngine().Fit(tbl)
	require.NoError(t, err)

	dow := mustFloat(t, f, "claim_dow")
	assert.Equal(t, 1.0, dow[0]) // Monday=0, so Tuesday=1
	assert.Equal(t, 5.0, dow[1])
	assert.True(t, math.IsNaN(dow[2]))

	assert.Equal(t, []float64{0, 1, 0}, mustFloat(t, f, "is_weekend"))
	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "is_rush_hour"))
	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "is_morning"))
	assert.Equal(t, []float64{0, 1, 0}, mustFloat(t, f, "is_night"))
	assert.True(t, math.IsNaN(mustFloat(t, f, "claim_year")[2]))
}

func TestDemographics(t *testing.T) {
	tbl := claimTable(
		baseRow(), // born 1986, claim 2016, licensed at 18
		with(map[string]string{"year_of_born": "", "age_of_DL": ""}),
		with(map[string]string{"year_of_born": "2014"}),
	)
	f, _, err := NewEngine().Fit(tbl)
	require.NoError(t, err)

	age := mustFloat(t, f, "age_at_claim")
	assert.Equal(t, 30.0, age[0])
	assert.Equal(t, 36.0, age[1]) // defaults: born 1980
	assert.Equal(t, 16.0, age[2]) // 2016-2014=2 clipped to the plausible floor

	period := mustFloat(t, f, "period_of_driving")
	assert.Equal(t, 12.0, period[0]) // 30 - 18
	assert.Equal(t, 11.0, period[1]) // 36 - default DL age 25
	assert.Equal(t, 0.0, period[2])  // floored at zero

	assert.Equal(t, []float64{0, 0, 1}, mustFloat(t, f, "is_young_driver"))
	assert.Equal(t, []float64{1, 1, 0}, mustFloat(t, f, "is_experienced"))

	// claims_per_year = past / (period + 1) = 2/13
	perYear := mustFloat(t, f, "claims_per_year")
	assert.InDelta(t, 2.0/13.0, perYear[0], 1e-12)
}

func TestLiabilityFeatures(t *testing.T) {
	tbl := claimTable(
		baseRow(),                                   // 25
		with(map[string]string{"liab_prct": "75"}),  //
		with(map[string]string{"liab_prct": ""}),    // defaults to 0
		with(map[string]string{"liab_prct": "150"}), // clipped to 100
	)
	f, _, err := NewEngine().Fit(tbl)
	require.NoError(t, err)

	assert.Equal(t, []float64{25, 75, 0, 100}, mustFloat(t, f, "liab_prct"))
	assert.Equal(t, []float64{1, 0, 0, 0}, mustFloat(t, f, "liab_20_30"))
	assert.Equal(t, []float64{0, 1, 0, 1}, mustFloat(t, f, "liab_40_plus"))
	assert.Equal(t, []float64{0, 0, 1, 0}, mustFloat(t, f, "liab_0_10"))
	assert.Equal(t, []float64{1, 0, 0, 0}, mustFloat(t, f, "liab_20_25")) // (20,25] band
	assert.Equal(t, []float64{1, 0, 0, 0}, mustFloat(t, f, "liab_exactly_25"))
	assert.Equal(t, []float64{0, 0, 1, 0}, mustFloat(t, f, "liab_zero"))
	assert.Equal(t, []float64{0, 0, 0, 1}, mustFloat(t, f, "liab_full"))
	assert.Equal(t, []float64{75, 25, 100, 0}, mustFloat(t, f, "liab_inverse"))
	assert.Equal(t, []float64{625, 5625, 0, 10000}, mustFloat(t, f, "liab_squared"))
}

func TestEvidenceAndProfileFeatures(t *testing.T) {
	tbl := claimTable(
		baseRow(), // witness Y, police 1
		with(map[string]string{"witness_present_ind": "n", "policy_report_filed_ind": "0", "safety_rating": "20"}),
		with(map[string]string{"witness_present_ind": "", "policy_report_filed_ind": "", "in_network_bodyshop": "no"}),
	)
	f, _, err := NewEngine().Fit(tbl)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "has_witness"))
	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "has_police"))
	assert.Equal(t, []float64{2, 0, 0}, mustFloat(t, f, "evidence_count"))
	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "has_full_evidence"))
	assert.Equal(t, []float64{0, 1, 1}, mustFloat(t, f, "has_no_evidence"))
	assert.Equal(t, []float64{1, 1, 0}, mustFloat(t, f, "in_network"))

	assert.Equal(t, []float64{1, 0, 0}, mustFloat(t, f, "safety_high")) // >= 70
	assert.Equal(t, []float64{0, 1, 0}, mustFloat(t, f, "safety_low"))  // <= 30
	assert.Equal(t, []float64{1, 1, 1}, mustFloat(t, f, "high_education"))
}

func TestInteractionFeatures(t *testing.T) {
	// liab 25 in (20,30], multi-unclear accident on a highway with full
	// evidence: the golden combination fires.
	f, _, err := NewEngine().Fit(claimTable(baseRow()))
	require.NoError(t, err)

	assert.Equal(t, []float64{1}, mustFloat(t, f, "liab_20_30_x_multi_unclear"))
	assert.Equal(t, []float64{1}, mustFloat(t, f, "liab_20_30_x_multi_x_evidence"))
	assert.Equal(t, []float64{1}, mustFloat(t, f, "golden_combo"))
	assert.Equal(t, []float64{25}, mustFloat(t, f, "liab_x_witness"))   // 25 * 1
	assert.Equal(t, []float64{50}, mustFloat(t, f, "liab_x_evidence_count")) // 25 * 2
	assert.Equal(t, []float64{25}, mustFloat(t, f, "liab_x_highway"))
	assert.Equal(t, []float64{0}, mustFloat(t, f, "high_liab_x_single"))
}

func TestFinancialFeatures(t *testing.T) {
	f, _, err := NewEngine().Fit(claimTable(baseRow()))
	require.NoError(t, err)

	// single row: median == p01 == p99 == value, so capping is identity
	assert.Equal(t, []float64{5000}, mustFloat(t, f, "claim_est_payout_capped"))
	assert.InDelta(t, math.Log1p(5000), mustFloat(t, f, "claim_est_payout_log")[0], 1e-12)
	// payout/(income+1) = 5000/42001
	assert.InDelta(t, 5000.0/42001.0, mustFloat(t, f, "payout_to_income")[0], 1e-12)
	assert.InDelta(t, 5000.0/18001.0, mustFloat(t, f, "payout_to_price")[0], 1e-12)
}

func TestCategoricalColumns(t *testing.T) {
	tbl := claimTable(
		baseRow(),
		with(map[string]string{"zip_code": "1234", "channel": "", "accident_site": "", "accident_type": ""}),
		with(map[string]string{"zip_code": "bogus"}),
	)
	f, _, err := NewEngine().Fit(tbl)
	require.NoError(t, err)

	zip3, err := f.Str("zip3")
	require.NoError(t, err)
	assert.Equal(t, []string{"902", "012", "unknown"}, zip3) // "1234" pads to "01234"

	channel, err := f.Str("channel")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", channel[1])

	combo, err := f.Str("accident_combo")
	require.NoError(t, err)
	assert.Equal(t, "Highway_Multi vehicle unclear fault", combo[0])
	assert.Equal(t, "Unknown_Unknown", combo[1])
}

func TestMissingColumnFailsFast(t *testing.T) {
	cols := make([]string, 0, len(requiredColumns)-1)
	for _, c := range requiredColumns {
		if c != "liab_prct" {
			cols = append(cols, c)
		}
	}
	_, _, err := NewEngine().Fit(dataset.New("merged", cols))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "liab_prct")
}
