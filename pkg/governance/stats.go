package governance

import "math"

// Statistical helpers shared by the aggregators and the normalizer.
//
// Std and Var are sample statistics (n-1 denominator). A sample of fewer than
// two values has no defined spread; these return 0 instead so degenerate
// inputs (quiet users, single events) never poison downstream scores.

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleVar returns the sample variance (n-1 denominator), or 0 when fewer
// than two values are present.
func SampleVar(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(values)-1)
}

// SampleStd returns the sample standard deviation, or 0 when fewer than two
// values are present.
func SampleStd(values []float64) float64 {
	return math.Sqrt(SampleVar(values))
}

// Diffs returns first differences between consecutive values.
func Diffs(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}
