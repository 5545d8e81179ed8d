package feature

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Artifacts maps statistic names to scalar values computed exclusively from
// the training partition. Written once at the end of a training-mode
// transform and replayed read-only by every inference-mode call; inference
// never recomputes a statistic from its own rows.
type Artifacts map[string]float64

// Require returns the named statistic or an error identifying the missing
// key — an absent artifact at inference time is a contract violation, not a
// data problem.
func (a Artifacts) Require(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, eris.Errorf("feature: artifact store has no statistic %q", key)
	}
	return v, nil
}

// Keys returns the statistic names in sorted order.
func (a Artifacts) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (a Artifacts) Clone() Artifacts {
	out := make(Artifacts, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
