package coda

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MeanCovariance estimates the mean vector and sample covariance matrix of a
// set of equally sized rows. Every value must be finite; rows of censored or
// missing data are expected to have been filled before estimation.
func MeanCovariance(rows [][]float64) ([]float64, *mat.SymDense, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("covariance of zero rows")
	}
	d := len(rows[0])
	flat := make([]float64, 0, len(rows)*d)
	for i, r := range rows {
		if len(r) != d {
			return nil, nil, fmt.Errorf("row %d has %d coordinates, want %d", i, len(r), d)
		}
		for j, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("row %d coordinate %d is %v, covariance requires finite values", i, j, v)
			}
			flat = append(flat, v)
		}
	}
	x := mat.NewDense(len(rows), d, flat)

	mu := make([]float64, d)
	for j := 0; j < d; j++ {
		mu[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	sigma := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(sigma, x, nil)
	return mu, sigma, nil
}

// ConditionalNormal returns the conditional mean of the censored coordinate
// subset of a multivariate normal given the observed subset:
//
//	mu_c + Sigma_co · Sigma_oo⁻¹ · (observed − mu_o)
//
// Index sets partition the dimensions of mu/sigma. ErrSingular is returned
// when Sigma_oo cannot be inverted; the caller decides the fallback.
func ConditionalNormal(mu []float64, sigma *mat.SymDense, obsIdx, censIdx []int, observed []float64) ([]float64, error) {
	no, nc := len(obsIdx), len(censIdx)
	if no == 0 {
		return nil, fmt.Errorf("conditional normal requires at least one observed coordinate")
	}
	if nc == 0 {
		return nil, fmt.Errorf("conditional normal with empty censored set")
	}
	if len(observed) != no {
		return nil, fmt.Errorf("got %d observed values for %d observed indices", len(observed), no)
	}
	if d := sigma.SymmetricDim(); len(mu) != d {
		return nil, fmt.Errorf("mean length %d does not match covariance order %d", len(mu), d)
	}

	sigmaOO := mat.NewDense(no, no, nil)
	for i, oi := range obsIdx {
		for j, oj := range obsIdx {
			sigmaOO.Set(i, j, sigma.At(oi, oj))
		}
	}
	diff := mat.NewVecDense(no, nil)
	for i, oi := range obsIdx {
		diff.SetVec(i, observed[i]-mu[oi])
	}

	// Solve Sigma_oo · z = (observed − mu_o). Any solver failure, exact or
	// near singularity alike, is reported as ErrSingular.
	var z mat.VecDense
	if err := z.SolveVec(sigmaOO, diff); err != nil {
		return nil, fmt.Errorf("conditioning on %d observed coordinates: %w", no, ErrSingular)
	}

	cond := make([]float64, nc)
	for i, ci := range censIdx {
		acc := mu[ci]
		for j, oj := range obsIdx {
			acc += sigma.At(ci, oj) * z.AtVec(j)
		}
		if math.IsNaN(acc) || math.IsInf(acc, 0) {
			return nil, fmt.Errorf("conditional mean for coordinate %d is %v: %w", ci, acc, ErrSingular)
		}
		cond[i] = acc
	}
	return cond, nil
}
