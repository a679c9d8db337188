package pipeline

import (
	"math"
	"slices"
)

// descriptive holds the statistics computed over one numeric column.
type descriptive struct {
	mean, median, mode float64
	min, max           float64
	variance           float64
	// hasVariance is false for fewer than two values.
	hasVariance bool
}

// describe computes descriptive statistics. values must not be empty.
func describe(values []float64) descriptive {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	d := descriptive{
		mean:   mean(sorted),
		median: median(sorted),
		mode:   mode(sorted),
		min:    sorted[0],
		max:    sorted[len(sorted)-1],
	}
	d.variance, d.hasVariance = sampleVariance(sorted, d.mean)
	return d
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode expects sorted input; the lowest value wins ties.
func mode(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

// sampleVariance uses the N-1 denominator and is undefined below two values.
func sampleVariance(values []float64, m float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(values)-1), true
}

func sqrtPtr(v float64) *float64 {
	s := math.Sqrt(v)
	return &s
}
