package feature

import (
	"sort"

	"go.uber.org/zap"
)

// QualityReport counts malformed raw values per column. Malformed values
// are resolved by the documented default/imputation policy and surfaced only
// here, as aggregate counts — never as per-row errors.
type QualityReport struct {
	counts map[string]int
}

func newQualityReport() *QualityReport {
	return &QualityReport{counts: make(map[string]int)}
}

func (q *QualityReport) add(column string) {
	q.counts[column]++
}

// Total returns the total malformed-value count.
func (q *QualityReport) Total() int {
	total := 0
	for _, n := range q.counts {
		total += n
	}
	return total
}

// Count returns the malformed-value count for one column.
func (q *QualityReport) Count(column string) int {
	return q.counts[column]
}

// Log emits one aggregate warning when anything was malformed.
func (q *QualityReport) Log() {
	if q.Total() == 0 {
		return
	}
	fields := make([]zap.Field, 0, len(q.counts)+1)
	fields = append(fields, zap.Int("total", q.Total()))

	cols := make([]string, 0, len(q.counts))
	for c := range q.counts {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		fields = append(fields, zap.Int(c, q.counts[c]))
	}
	zap.L().Warn("transform: malformed values defaulted", fields...)
}
