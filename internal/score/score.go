// Package score implements the per-variant scorer (C4): the
// dosage-distance vector between a deep-read sample locus and a
// deep-read reference locus. Grounded on original_source/src/qgs.cc's
// score_variant() and the teacher's (arvados-lightning) preference for
// gonum over hand-rolled numeric reductions.
package score

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/machine2learn/qgs/internal/variant"
)

// Score computes score[i] = sum_j |sample.Data[i] - reference.Data[j]|
// over reference subjects j with non-missing dosage, for every sample
// subject i. A missing sample dosage propagates as NaN without
// touching the reference pass. Distinct sample dosages are memoised
// within this call since real cohorts draw from a tiny alphabet
// ({0,1,2} or a small probability grid).
func Score(sample, reference *variant.Locus) []float64 {
	out := make([]float64, len(sample.Data))
	cache := make(map[float64]float64, 4)
	diffs := make([]float64, 0, len(reference.Data))

	for i, d := range sample.Data {
		if math.IsNaN(d) {
			out[i] = math.NaN()
			continue
		}
		if s, ok := cache[d]; ok {
			out[i] = s
			continue
		}
		diffs = diffs[:0]
		for _, r := range reference.Data {
			if math.IsNaN(r) {
				continue
			}
			diffs = append(diffs, math.Abs(d-r))
		}
		s := floats.Sum(diffs)
		cache[d] = s
		out[i] = s
	}
	return out
}
