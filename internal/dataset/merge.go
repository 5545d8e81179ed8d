package dataset

import (
	"github.com/rotisserie/eris"
)

// dimension join specs, applied in order: claim FK column → dimension table
// key column. Order matches the original staging pipeline.
type dimSpec struct {
	fk  string
	get func(*Tables) *Table
}

var dimSpecs = []dimSpec{
	{"accident_key", func(ts *Tables) *Table { return ts.Accident }},
	{"policyholder_key", func(ts *Tables) *Table { return ts.Policyholder }},
	{"vehicle_key", func(ts *Tables) *Table { return ts.Vehicle }},
	{"driver_key", func(ts *Tables) *Table { return ts.Driver }},
}

// Merge left-joins the claim table outward to each dimension, producing one
// row per claim. Claim-side foreign keys coerce to int64 with sentinel 0
// (matches nothing), so a claim is never dropped for a missing dimension:
// unmatched dimensions contribute empty cells. Source tables are not
// mutated.
func Merge(ts *Tables) (*Table, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	claim := ts.Claim

	// Result schema: claim columns, then each dimension's non-key columns
	// that the claim does not already carry.
	columns := append([]string(nil), claim.Columns...)
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}

	type joined struct {
		fkIdx   int
		byKey   map[int64]int // dimension key → row index
		dim     *Table
		colIdxs []int // dimension column indexes appended to the result
	}
	joins := make([]joined, 0, len(dimSpecs))

	for _, spec := range dimSpecs {
		dim := spec.get(ts)
		fkIdx := claim.Col(spec.fk)
		if fkIdx < 0 {
			return nil, eris.Errorf("dataset: claim table has no foreign key column %q", spec.fk)
		}
		keyIdx := dim.Col(spec.fk)
		if keyIdx < 0 {
			return nil, eris.Errorf("dataset: table %s has no key column %q", dim.Name, spec.fk)
		}

		byKey := make(map[int64]int, dim.NumRows())
		for r := range dim.Rows {
			k := CoerceKey(dim.Rows[r][keyIdx])
			if k == 0 {
				continue
			}
			if _, dup := byKey[k]; !dup {
				byKey[k] = r
			}
		}

		var colIdxs []int
		for i, c := range dim.Columns {
			if i == keyIdx || seen[c] {
				continue
			}
			seen[c] = true
			columns = append(columns, c)
			colIdxs = append(colIdxs, i)
		}

		joins = append(joins, joined{fkIdx: fkIdx, byKey: byKey, dim: dim, colIdxs: colIdxs})
	}

	out := New("merged", columns)
	for _, crow := range claim.Rows {
		row := make([]string, 0, len(columns))
		row = append(row, crow...)

		for _, j := range joins {
			key := CoerceKey(crow[j.fkIdx])
			dimRow, matched := lookup(j.byKey, key)
			for _, ci := range j.colIdxs {
				if matched {
					row = append(row, j.dim.Rows[dimRow][ci])
				} else {
					row = append(row, "")
				}
			}
		}
		out.Append(row)
	}

	return out, nil
}

func lookup(byKey map[int64]int, key int64) (int, bool) {
	if key == 0 {
		return -1, false
	}
	r, ok := byKey[key]
	return r, ok
}
