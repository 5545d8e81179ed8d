package dataset

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// SplitHoldout cuts the merged table into a training partition and a
// holdout (test) partition: every claim dated in the holdout year/month goes
// to test, everything else — including rows with an unparseable claim_date —
// stays in train.
func SplitHoldout(t *Table, year, month int) (train, test *Table, err error) {
	dateIdx := t.Col("claim_date")
	if dateIdx < 0 {
		return nil, nil, eris.New("dataset: merged table has no claim_date column")
	}

	train = New("train", t.Columns)
	test = New("test", t.Columns)

	for _, row := range t.Rows {
		ts, ok := ParseTimestamp(row[dateIdx])
		if ok && ts.Year() == year && int(ts.Month()) == month {
			test.Append(row)
		} else {
			train.Append(row)
		}
	}
	return train, test, nil
}

// FilterLabeled drops rows whose label cell is null and returns the kept
// rows with their parsed binary labels. Applied to the training partition
// only — the inference path keeps every claim regardless of label.
func FilterLabeled(t *Table, labelCol string) (*Table, []int, error) {
	idx := t.Col(labelCol)
	if idx < 0 {
		return nil, nil, eris.Errorf("dataset: table has no label column %q", labelCol)
	}

	kept := New(t.Name, t.Columns)
	var labels []int
	for _, row := range t.Rows {
		raw := strings.TrimSpace(row[idx])
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue // malformed label cells are treated as null
		}
		label := 0
		if f != 0 {
			label = 1
		}
		kept.Append(row)
		labels = append(labels, label)
	}
	return kept, labels, nil
}
