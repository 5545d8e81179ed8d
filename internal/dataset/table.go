// Package dataset loads the five source tables, merges them into one
// row-per-claim table, and cuts the holdout partition. Values stay untyped
// strings end to end: the source data is dirty and all coercion policy
// belongs to the feature engine.
package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Table is a named column-oriented view over untyped string rows.
// An empty cell means the value is missing.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given column set.
func New(name string, columns []string) *Table {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Table{Name: name, Columns: columns, index: idx}
}

// Append adds a row, padding or truncating to the column count.
func (t *Table) Append(row []string) {
	if len(row) < len(t.Columns) {
		padded := make([]string, len(t.Columns))
		copy(padded, row)
		row = padded
	} else if len(row) > len(t.Columns) {
		row = row[:len(t.Columns)]
	}
	t.Rows = append(t.Rows, row)
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// Col returns the index of a column, or -1 if absent.
func (t *Table) Col(name string) int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	i, ok := t.index[name]
	if !ok {
		return -1
	}
	return i
}

// HasColumn reports whether the column exists in the schema.
func (t *Table) HasColumn(name string) bool { return t.Col(name) >= 0 }

// Cell returns the trimmed value at (row, column), or "" when the column is
// absent.
func (t *Table) Cell(row int, name string) string {
	i := t.Col(name)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// Column returns all values of one column. The column must exist.
func (t *Table) Column(name string) ([]string, error) {
	i := t.Col(name)
	if i < 0 {
		return nil, eris.Errorf("dataset: table %s has no column %q", t.Name, name)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = strings.TrimSpace(row[i])
	}
	return out, nil
}

// Tables bundles the five source tables.
type Tables struct {
	Claim        *Table
	Accident     *Table
	Policyholder *Table
	Vehicle      *Table
	Driver       *Table
}

// TableNames lists the canonical source table names in load order.
var TableNames = []string{"Claim", "Accident", "Policyholder", "Vehicle", "Driver"}

// byName returns the destination slot for a canonical table name.
func (ts *Tables) byName(name string) **Table {
	switch name {
	case "Claim":
		return &ts.Claim
	case "Accident":
		return &ts.Accident
	case "Policyholder":
		return &ts.Policyholder
	case "Vehicle":
		return &ts.Vehicle
	case "Driver":
		return &ts.Driver
	}
	return nil
}

// Validate checks that all five tables are present and non-degenerate.
func (ts *Tables) Validate() error {
	for _, name := range TableNames {
		slot := ts.byName(name)
		if *slot == nil {
			return eris.Errorf("dataset: missing table %s", name)
		}
		if len((*slot).Columns) == 0 {
			return eris.Errorf("dataset: table %s has no columns", name)
		}
	}
	return nil
}

// timestampLayouts are tried in order when parsing claim_date.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp parses a raw claim_date value. The zero time and false are
// returned for anything unparseable; malformed dates are a data-quality
// issue, never an error.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// CoerceKey parses a foreign-key cell to int64. Missing or malformed keys
// collapse to the 0 sentinel, which matches no dimension row.
func CoerceKey(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	// Keys sometimes arrive as floats ("3.0") from upstream exports.
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}
