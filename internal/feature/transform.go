package feature

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/dataset"
)

// requiredColumns must all exist in the merged table schema. A missing
// column is a configuration error and fails the transform immediately;
// malformed *values* never do.
var requiredColumns = []string{
	"claim_date",
	"liab_prct",
	"claim_est_payout",
	"witness_present_ind",
	"policy_report_filed_ind",
	"in_network_bodyshop",
	"zip_code",
	"channel",
	"accident_site",
	"accident_type",
	"annual_income",
	"high_education_ind",
	"address_change_ind",
	"past_num_of_claims",
	"gender",
	"year_of_born",
	"age_of_DL",
	"safety_rating",
	"vehicle_category",
	"vehicle_price",
	"vehicle_weight",
	"vehicle_mileage",
}

// financialColumns all follow the same impute/cap/log policy.
var financialColumns = []string{"annual_income", "vehicle_price", "vehicle_weight", "claim_est_payout"}

// exactLiabilityValues are plausible regulatory liability split points that
// get exact-match indicator columns.
var exactLiabilityValues = []int{15, 18, 20, 22, 25, 27, 30, 32, 35, 37, 40, 45, 50}

var (
	multiUnclearRe = regexp.MustCompile(`(?i)multi.*unclear`)
	multiClearRe   = regexp.MustCompile(`(?i)multi.*clear`)
)

// Engine derives the engineered feature frame from a merged claim table.
// One Engine is safe for concurrent use; it carries no state between calls.
type Engine struct{}

// NewEngine returns a transform engine.
func NewEngine() *Engine { return &Engine{} }

// Fit runs the transform in training mode: cross-row statistics (medians,
// percentile bounds) are computed from these rows and returned as the
// artifact store for later inference calls.
func (e *Engine) Fit(t *dataset.Table) (*Frame, Artifacts, error) {
	return e.transform(t, make(Artifacts), true)
}

// Apply runs the transform in inference mode. Every cross-row statistic is
// read from the supplied artifacts; nothing is recomputed from these rows.
// An empty artifact store is rejected up front — calling inference without
// trained statistics is a programming error, not a data condition.
func (e *Engine) Apply(t *dataset.Table, arts Artifacts) (*Frame, error) {
	if len(arts) == 0 {
		return nil, eris.New("feature: inference transform requires a populated artifact store")
	}
	f, _, err := e.transform(t, arts, false)
	return f, err
}

// transform is the single code path shared by both modes. fitting controls
// only whether artifact-producing steps write; every derivation below runs
// identically either way.
func (e *Engine) transform(t *dataset.Table, arts Artifacts, fitting bool) (*Frame, Artifacts, error) {
	if err := checkSchema(t); err != nil {
		return nil, nil, err
	}

	n := t.NumRows()
	f := NewFrame(n)
	q := newQualityReport()

	// TEMPORAL
	claimYear := nanCol(n)
	claimMonth := nanCol(n)
	claimDOW := nanCol(n)
	claimHour := nanCol(n)
	claimDay := nanCol(n)
	quarter := nanCol(n)
	weekend := zeroCol(n)
	weekday := zeroCol(n)
	morning := zeroCol(n)
	afternoon := zeroCol(n)
	evening := zeroCol(n)
	night := zeroCol(n)
	rushHour := zeroCol(n)
	winter := zeroCol(n)
	summer := zeroCol(n)

	for r := 0; r < n; r++ {
		raw := t.Cell(r, "claim_date")
		ts, ok := dataset.ParseTimestamp(raw)
		if !ok {
			if raw != "" {
				q.add("claim_date")
			}
			continue // NaN year..day, zero flags
		}
		month := int(ts.Month())
		hour := ts.Hour()
		dow := (int(ts.Weekday()) + 6) % 7 // Monday=0..Sunday=6

		claimYear[r] = float64(ts.Year())
		claimMonth[r] = float64(month)
		claimDOW[r] = float64(dow)
		claimHour[r] = float64(hour)
		claimDay[r] = float64(ts.Day())
		quarter[r] = float64((month-1)/3 + 1)
		weekend[r] = b2f(dow >= 5)
		weekday[r] = b2f(dow < 5)
		morning[r] = b2f(hour >= 6 && hour < 12)
		afternoon[r] = b2f(hour >= 12 && hour < 18)
		evening[r] = b2f(hour >= 18 && hour < 22)
		night[r] = b2f(hour >= 22 || hour < 6)
		rushHour[r] = b2f((hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19))
		winter[r] = b2f(month == 12 || month == 1 || month == 2)
		summer[r] = b2f(month >= 6 && month <= 8)
	}

	f.SetFloat("claim_year", claimYear)
	f.SetFloat("claim_month", claimMonth)
	f.SetFloat("claim_dow", claimDOW)
	f.SetFloat("claim_hour", claimHour)
	f.SetFloat("claim_day", claimDay)
	f.SetFloat("is_weekend", weekend)
	f.SetFloat("is_weekday", weekday)
	f.SetFloat("is_morning", morning)
	f.SetFloat("is_afternoon", afternoon)
	f.SetFloat("is_evening", evening)
	f.SetFloat("is_night", night)
	f.SetFloat("is_rush_hour", rushHour)
	f.SetFloat("claim_quarter", quarter)
	f.SetFloat("is_winter", winter)
	f.SetFloat("is_summer", summer)

	// DEMOGRAPHICS
	yearOfBorn := e.numericDefault(t, "year_of_born", 1980, q)
	ageOfDL := e.numericDefault(t, "age_of_DL", 25, q)

	ageAtClaim := make([]float64, n)
	period := make([]float64, n)
	for r := 0; r < n; r++ {
		ageAtClaim[r] = clip(claimYear[r]-yearOfBorn[r], 16, 100)
		p := ageAtClaim[r] - ageOfDL[r]
		if p < 0 {
			p = 0
		}
		period[r] = p // NaN when the claim date was unparseable
	}
	f.SetFloat("age_at_claim", ageAtClaim)
	f.SetFloat("period_of_driving", period)
	f.SetFloat("is_young_driver", flagLT(ageAtClaim, 25))
	f.SetFloat("is_senior_driver", flagGE(ageAtClaim, 65))
	f.SetFloat("is_mid_age_driver", flagBetween(ageAtClaim, 25, 65))
	f.SetFloat("is_new_driver", flagLT(period, 3))
	f.SetFloat("is_experienced", flagGE(period, 10))

	// CLAIMS HISTORY
	pastClaims := e.numericDefault(t, "past_num_of_claims", 0, q)
	claimsPerYear := make([]float64, n)
	for r := 0; r < n; r++ {
		claimsPerYear[r] = pastClaims[r] / (period[r] + 1)
	}
	f.SetFloat("past_num_of_claims", pastClaims)
	f.SetFloat("claims_per_year", claimsPerYear)
	hasPastClaims := flagGT(pastClaims, 0)
	f.SetFloat("has_past_claims", hasPastClaims)
	f.SetFloat("has_multiple_claims", flagGE(pastClaims, 2))

	// MILEAGE
	mileage := e.numeric(t, "vehicle_mileage", q)
	if fitting {
		arts["mileage_median"] = median(mileage)
	}
	mileageMed, err := arts.Require("mileage_median")
	if err != nil {
		return nil, nil, err
	}
	fillNaN(mileage, mileageMed)
	if fitting {
		arts["vehicle_mileage_p75"] = quantile(mileage, 0.75)
	}
	mileageP75, err := arts.Require("vehicle_mileage_p75")
	if err != nil {
		return nil, nil, err
	}

	mileagePerYear := make([]float64, n)
	for r := 0; r < n; r++ {
		mileagePerYear[r] = mileage[r] / (period[r] + 1)
	}
	f.SetFloat("vehicle_mileage", mileage)
	f.SetFloat("mileage_per_year", mileagePerYear)
	f.SetFloat("mileage_log", log1pCol(mileage))
	f.SetFloat("is_high_mileage", flagGT(mileage, mileageP75))

	// FINANCIAL
	capped := make(map[string][]float64, len(financialColumns))
	for _, col := range financialColumns {
		val := e.numeric(t, col, q)
		if fitting {
			arts[col+"_med"] = median(val)
			arts[col+"_p99"] = quantile(val, 0.99)
			arts[col+"_p01"] = quantile(val, 0.01)
		}
		med, err := arts.Require(col + "_med")
		if err != nil {
			return nil, nil, err
		}
		p99, err := arts.Require(col + "_p99")
		if err != nil {
			return nil, nil, err
		}
		p01, err := arts.Require(col + "_p01")
		if err != nil {
			return nil, nil, err
		}

		fillNaN(val, med)
		for r := range val {
			val[r] = clip(val[r], p01, p99)
		}
		if fitting {
			arts[col+"_p75"] = quantile(val, 0.75)
		}

		capped[col] = val
		f.SetFloat(col+"_capped", val)
		f.SetFloat(col+"_log", log1pCol(val))
	}

	income := capped["annual_income"]
	price := capped["vehicle_price"]
	payout := capped["claim_est_payout"]

	payoutToIncome := ratioCol(payout, income)
	f.SetFloat("payout_to_income", payoutToIncome)
	f.SetFloat("payout_to_price", ratioCol(payout, price))
	f.SetFloat("income_to_price", ratioCol(income, price))

	incomeP75, err := arts.Require("annual_income_p75")
	if err != nil {
		return nil, nil, err
	}
	priceP75, err := arts.Require("vehicle_price_p75")
	if err != nil {
		return nil, nil, err
	}
	payoutP75, err := arts.Require("claim_est_payout_p75")
	if err != nil {
		return nil, nil, err
	}
	highIncome := flagGT(income, incomeP75)
	f.SetFloat("is_high_income", highIncome)
	f.SetFloat("is_expensive_car", flagGT(price, priceP75))
	f.SetFloat("is_large_payout", flagGT(payout, payoutP75))

	// LIABILITY
	liab := e.numericDefault(t, "liab_prct", 0, q)
	for r := range liab {
		liab[r] = clip(liab[r], 0, 100)
	}
	f.SetFloat("liab_prct", liab)

	f.SetFloat("liab_0_10", flagLE(liab, 10))
	f.SetFloat("liab_10_20", flagBand(liab, 10, 20))
	liab2030 := flagBand(liab, 20, 30)
	f.SetFloat("liab_20_30", liab2030)
	f.SetFloat("liab_30_40", flagBand(liab, 30, 40))
	f.SetFloat("liab_40_plus", flagGT(liab, 40))

	for i := 0; i < 100; i += 5 {
		f.SetFloat(fmt.Sprintf("liab_%d_%d", i, i+5), flagBand(liab, float64(i), float64(i+5)))
	}
	for _, v := range exactLiabilityValues {
		f.SetFloat(fmt.Sprintf("liab_exactly_%d", v), flagEQ(liab, float64(v)))
	}

	liabInverse := make([]float64, n)
	liabSquared := make([]float64, n)
	liabCubed := make([]float64, n)
	liabSqrt := make([]float64, n)
	liabInverseSq := make([]float64, n)
	for r, v := range liab {
		liabSquared[r] = v * v
		liabCubed[r] = v * v * v
		liabSqrt[r] = math.Sqrt(v)
		liabInverse[r] = 100 - v
		liabInverseSq[r] = (100 - v) * (100 - v)
	}
	f.SetFloat("liab_squared", liabSquared)
	f.SetFloat("liab_cubed", liabCubed)
	f.SetFloat("liab_sqrt", liabSqrt)
	f.SetFloat("liab_inverse", liabInverse)
	f.SetFloat("liab_inverse_sq", liabInverseSq)
	f.SetFloat("liab_log", log1pCol(liab))
	f.SetFloat("liab_zero", flagEQ(liab, 0))
	f.SetFloat("liab_full", flagEQ(liab, 100))
	f.SetFloat("liab_half", flagEQ(liab, 50))

	// EVIDENCE
	hasWitness := make([]float64, n)
	inNetwork := make([]float64, n)
	for r := 0; r < n; r++ {
		w := strings.ToUpper(t.Cell(r, "witness_present_ind"))
		hasWitness[r] = b2f(w == "Y" || w == "YES" || w == "1" || w == "TRUE")

		b := strings.ToLower(t.Cell(r, "in_network_bodyshop"))
		inNetwork[r] = b2f(b == "yes" || b == "y" || b == "1")
	}
	police := e.numericDefault(t, "policy_report_filed_ind", 0, q)
	hasPolice := flagNonzero(police)

	evidenceCount := make([]float64, n)
	for r := 0; r < n; r++ {
		evidenceCount[r] = hasWitness[r] + hasPolice[r]
	}
	f.SetFloat("has_witness", hasWitness)
	f.SetFloat("has_police", hasPolice)
	f.SetFloat("evidence_count", evidenceCount)
	fullEvidence := flagEQ(evidenceCount, 2)
	noEvidence := flagEQ(evidenceCount, 0)
	f.SetFloat("has_full_evidence", fullEvidence)
	f.SetFloat("has_no_evidence", noEvidence)
	f.SetFloat("in_network", inNetwork)

	// PROFILE
	f.SetFloat("high_education", flagNonzero(e.numericDefault(t, "high_education_ind", 0, q)))
	f.SetFloat("address_change", flagNonzero(e.numericDefault(t, "address_change_ind", 0, q)))
	safety := e.numericDefault(t, "safety_rating", 50, q)
	f.SetFloat("safety_rating", safety)
	f.SetFloat("safety_high", flagGE(safety, 70))
	f.SetFloat("safety_low", flagLE(safety, 30))

	// ACCIDENT CONTEXT
	accType := e.strDefault(t, "accident_type", "Unknown")
	accSite := e.strDefault(t, "accident_site", "Unknown")
	singleCar := make([]float64, n)
	multiUnclear := make([]float64, n)
	multiClear := make([]float64, n)
	highway := make([]float64, n)
	intersection := make([]float64, n)
	parking := make([]float64, n)
	for r := 0; r < n; r++ {
		typLower := strings.ToLower(accType[r])
		siteLower := strings.ToLower(accSite[r])
		singleCar[r] = b2f(strings.Contains(typLower, "single"))
		multiUnclear[r] = b2f(multiUnclearRe.MatchString(accType[r]))
		multiClear[r] = b2f(multiClearRe.MatchString(accType[r]))
		highway[r] = b2f(strings.Contains(siteLower, "highway"))
		intersection[r] = b2f(strings.Contains(siteLower, "intersection"))
		parking[r] = b2f(strings.Contains(siteLower, "parking"))
	}
	f.SetStr("accident_type", accType)
	f.SetStr("accident_site", accSite)
	f.SetFloat("is_single_car", singleCar)
	f.SetFloat("is_multi_unclear", multiUnclear)
	f.SetFloat("is_multi_clear", multiClear)
	f.SetFloat("is_highway", highway)
	f.SetFloat("is_intersection", intersection)
	f.SetFloat("is_parking", parking)

	// INTERACTIONS
	f.SetFloat("liab_x_witness", mul(liab, hasWitness))
	f.SetFloat("liab_x_police", mul(liab, hasPolice))
	f.SetFloat("liab_x_evidence_count", mul(liab, evidenceCount))
	f.SetFloat("liab_inverse_x_evidence", mul(liabInverse, evidenceCount))
	f.SetFloat("liab_20_30_x_multi_unclear", mul(liab2030, multiUnclear))
	f.SetFloat("liab_20_30_x_single", mul(liab2030, singleCar))
	f.SetFloat("low_liab_x_multi", mul(flagLT(liab, 30), complement(singleCar)))
	f.SetFloat("high_liab_x_single", mul(flagGT(liab, 50), singleCar))
	f.SetFloat("liab_x_highway", mul(liab, highway))
	f.SetFloat("liab_x_intersection", mul(liab, intersection))
	f.SetFloat("liab_x_weekend", mul(liab, weekend))
	f.SetFloat("liab_x_rush_hour", mul(liab, rushHour))
	f.SetFloat("liab_x_night", mul(liab, night))
	f.SetFloat("liab_x_young_driver", mul(liab, flagLT(ageAtClaim, 25)))
	f.SetFloat("liab_x_new_driver", mul(liab, flagLT(period, 3)))
	f.SetFloat("liab_inverse_x_experienced", mul(liabInverse, flagGE(period, 10)))
	f.SetFloat("liab_x_past_claims", mul(liab, hasPastClaims))
	f.SetFloat("liab_inverse_x_no_claims", mul(liabInverse, complement(hasPastClaims)))
	f.SetFloat("liab_x_payout_ratio", mul(liab, payoutToIncome))
	f.SetFloat("liab_inverse_x_high_income", mul(liabInverse, highIncome))
	f.SetFloat("liab_20_30_x_multi_x_evidence", mul3(liab2030, multiUnclear, flagGT(evidenceCount, 0)))
	f.SetFloat("low_liab_x_single_x_no_evidence", mul3(flagLT(liab, 25), singleCar, noEvidence))
	f.SetFloat("high_liab_x_weekend_x_night", mul3(flagGT(liab, 60), weekend, night))
	f.SetFloat("golden_combo", mul(mul3(liab2030, multiUnclear, flagGT(evidenceCount, 0)), highway))

	// CATEGORICALS
	for _, col := range CategoricalFeatures {
		f.SetStr(col, e.strDefault(t, col, "Unknown"))
	}

	combo := make([]string, n)
	for r := 0; r < n; r++ {
		combo[r] = accSite[r] + "_" + accType[r]
	}
	f.SetStr("accident_combo", combo)

	zip := make([]string, n)
	zip3 := make([]string, n)
	for r := 0; r < n; r++ {
		raw := t.Cell(r, "zip_code")
		z := 0
		if raw != "" {
			parsed, perr := strconv.ParseFloat(raw, 64)
			if perr != nil {
				q.add("zip_code")
			} else {
				z = int(parsed)
			}
		}
		zip[r] = fmt.Sprintf("%05d", z)
		prefix := zip[r][:3]
		if prefix == "000" {
			prefix = "unknown"
		}
		zip3[r] = prefix
	}
	f.SetStr("zip_code", zip)
	f.SetStr("zip3", zip3)

	q.Log()
	zap.L().Debug("transform complete",
		zap.Int("rows", n),
		zap.Int("columns", len(f.Columns())),
		zap.Bool("fitting", fitting),
	)
	return f, arts, nil
}

func checkSchema(t *dataset.Table) error {
	for _, col := range requiredColumns {
		if !t.HasColumn(col) {
			return eris.Errorf("feature: input schema is missing required column %q", col)
		}
	}
	return nil
}

// numeric parses a raw column: empty cells and malformed values become NaN,
// malformed values are counted.
func (e *Engine) numeric(t *dataset.Table, col string, q *QualityReport) []float64 {
	out := make([]float64, t.NumRows())
	for r := range out {
		raw := t.Cell(r, col)
		if raw == "" {
			out[r] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			q.add(col)
			out[r] = math.NaN()
			continue
		}
		out[r] = v
	}
	return out
}

// numericDefault parses a raw column with a fixed fallback for missing or
// malformed cells.
func (e *Engine) numericDefault(t *dataset.Table, col string, def float64, q *QualityReport) []float64 {
	out := e.numeric(t, col, q)
	fillNaN(out, def)
	return out
}

// strDefault reads a string column replacing empty cells with def.
func (e *Engine) strDefault(t *dataset.Table, col, def string) []string {
	out := make([]string, t.NumRows())
	for r := range out {
		v := t.Cell(r, col)
		if v == "" {
			v = def
		}
		out[r] = v
	}
	return out
}

func fillNaN(vals []float64, def float64) {
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = def
		}
	}
}

func nanCol(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func zeroCol(n int) []float64 { return make([]float64, n) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Flag builders: NaN inputs compare false, so flags stay strictly {0,1}.

func flagLT(vals []float64, x float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v < x)
	}
	return out
}

func flagLE(vals []float64, x float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v <= x)
	}
	return out
}

func flagGT(vals []float64, x float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v > x)
	}
	return out
}

func flagGE(vals []float64, x float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v >= x)
	}
	return out
}

func flagEQ(vals []float64, x float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v == x)
	}
	return out
}

func flagBetween(vals []float64, lo, hi float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v >= lo && v < hi)
	}
	return out
}

// flagBand is the half-open (lo, hi] bucket used by the liability bands.
func flagBand(vals []float64, lo, hi float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v > lo && v <= hi)
	}
	return out
}

func flagNonzero(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = b2f(v != 0 && !math.IsNaN(v))
	}
	return out
}

func complement(flags []float64) []float64 {
	out := make([]float64, len(flags))
	for i, v := range flags {
		out[i] = 1 - v
	}
	return out
}

func mul(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func mul3(a, b, c []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i] * c[i]
	}
	return out
}

func ratioCol(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		out[i] = num[i] / (den[i] + 1)
	}
	return out
}
