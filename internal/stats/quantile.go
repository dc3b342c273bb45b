// Package stats holds the order statistics and clustering routines the
// feature stages learn their frozen state with.
package stats

import (
	"math"
	"slices"
)

// Observed returns the non-NaN values of xs, sorted ascending.
func Observed(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// Quantile returns the q-th quantile (0 <= q <= 1) of an ascending slice,
// interpolating linearly between the two closest ranks. This is the
// definition used by numpy and pandas by default, so bounds learned here
// match the reference notebooks exactly.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median returns the median of the non-NaN values of xs. ok is false when
// xs has no observed value.
func Median(xs []float64) (median float64, ok bool) {
	obs := Observed(xs)
	if len(obs) == 0 {
		return math.NaN(), false
	}
	return Quantile(obs, 0.5), true
}
