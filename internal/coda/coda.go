// Package coda implements the compositional-data numeric primitives shared
// by the imputation engines: geometric means, the additive log-ratio (alr)
// transform and its inverse, covariance estimation over transformed rows,
// and the multivariate-normal conditional expectation used by the lrEM
// engine's M-step.
package coda

import (
	"errors"
	"fmt"
	"math"
)

// ErrDomain is returned when a logarithm is requested of a non-positive
// value. Compositional transforms are only defined on strictly positive
// parts.
var ErrDomain = errors.New("non-positive value in log domain")

// ErrSingular is returned when the observed-block covariance of a
// conditioning problem is not invertible. Callers decide the fallback.
var ErrSingular = errors.New("singular covariance matrix")

// GeometricMean returns exp(mean(log(values))) for strictly positive values.
func GeometricMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("geometric mean of empty slice")
	}
	sum := 0.0
	for _, v := range values {
		if v <= 0 || math.IsNaN(v) {
			return 0, fmt.Errorf("geometric mean of %v: %w", v, ErrDomain)
		}
		sum += math.Log(v)
	}
	return math.Exp(sum / float64(len(values))), nil
}

// ALR maps a D-part composition to (D-1) additive log-ratio coordinates
// log(x_i / x_ref) for every i != ref, in ascending index order.
func ALR(row []float64, ref int) ([]float64, error) {
	if ref < 0 || ref >= len(row) {
		return nil, fmt.Errorf("alr reference index %d out of range for %d parts", ref, len(row))
	}
	if len(row) < 2 {
		return nil, fmt.Errorf("alr requires at least 2 parts, got %d", len(row))
	}
	for i, v := range row {
		if v <= 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("alr part %d is %v: %w", i, v, ErrDomain)
		}
	}
	out := make([]float64, 0, len(row)-1)
	logRef := math.Log(row[ref])
	for i, v := range row {
		if i == ref {
			continue
		}
		out = append(out, math.Log(v)-logRef)
	}
	return out, nil
}

// ALRInverse reconstructs the D raw parts from (D-1) alr coordinates and the
// reference part's raw value. The composition is not re-closed to a fixed
// sum, so ALR followed by ALRInverse round-trips positive input exactly up
// to floating error.
func ALRInverse(logratios []float64, ref int, refValue float64) []float64 {
	d := len(logratios) + 1
	out := make([]float64, d)
	out[ref] = refValue
	k := 0
	for i := 0; i < d; i++ {
		if i == ref {
			continue
		}
		out[i] = refValue * math.Exp(logratios[k])
		k++
	}
	return out
}
