package coda

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMeanCovariance(t *testing.T) {
	rows := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
	}
	mu, sigma, err := MeanCovariance(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(mu[0]-2) > 1e-12 || math.Abs(mu[1]-20) > 1e-12 {
		t.Errorf("mean = %v, want [2 20]", mu)
	}
	// Sample variance of {1,2,3} is 1; covariance with the scaled copy is 10.
	if got := sigma.At(0, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("var(x) = %v, want 1", got)
	}
	if got := sigma.At(0, 1); math.Abs(got-10) > 1e-12 {
		t.Errorf("cov(x,y) = %v, want 10", got)
	}
	if got := sigma.At(1, 1); math.Abs(got-100) > 1e-12 {
		t.Errorf("var(y) = %v, want 100", got)
	}
}

func TestMeanCovariance_RejectsNonFinite(t *testing.T) {
	if _, _, err := MeanCovariance([][]float64{{1, 2}, {math.NaN(), 3}}); err == nil {
		t.Error("expected error for NaN input")
	}
	if _, _, err := MeanCovariance([][]float64{{1, 2}, {math.Inf(1), 3}}); err == nil {
		t.Error("expected error for Inf input")
	}
	if _, _, err := MeanCovariance(nil); err == nil {
		t.Error("expected error for zero rows")
	}
}

func TestConditionalNormal_Bivariate(t *testing.T) {
	// For a standard bivariate normal with correlation rho, the conditional
	// mean of x2 given x1 = v is rho * v.
	rho := 0.8
	sigma := mat.NewSymDense(2, []float64{1, rho, rho, 1})
	mu := []float64{0, 0}

	got, err := ConditionalNormal(mu, sigma, []int{0}, []int{1}, []float64{2.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got[0]-rho*2.5) > 1e-12 {
		t.Errorf("conditional mean = %v, want %v", got[0], rho*2.5)
	}
}

func TestConditionalNormal_ShiftedMeans(t *testing.T) {
	sigma := mat.NewSymDense(2, []float64{4, 1, 1, 9})
	mu := []float64{10, -5}

	// mu_c + Sigma_co/Sigma_oo * (obs - mu_o) = -5 + (1/4)*(12-10) = -4.5
	got, err := ConditionalNormal(mu, sigma, []int{0}, []int{1}, []float64{12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got[0]-(-4.5)) > 1e-12 {
		t.Errorf("conditional mean = %v, want -4.5", got[0])
	}
}

func TestConditionalNormal_Singular(t *testing.T) {
	// Two perfectly correlated observed coordinates make Sigma_oo singular.
	sigma := mat.NewSymDense(3, []float64{
		1, 1, 0.5,
		1, 1, 0.5,
		0.5, 0.5, 1,
	})
	mu := []float64{0, 0, 0}

	_, err := ConditionalNormal(mu, sigma, []int{0, 1}, []int{2}, []float64{1, 1})
	if !errors.Is(err, ErrSingular) {
		t.Errorf("error = %v, want ErrSingular", err)
	}
}

func TestConditionalNormal_ArgumentErrors(t *testing.T) {
	sigma := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	mu := []float64{0, 0}

	if _, err := ConditionalNormal(mu, sigma, nil, []int{1}, nil); err == nil {
		t.Error("expected error for empty observed set")
	}
	if _, err := ConditionalNormal(mu, sigma, []int{0}, nil, []float64{1}); err == nil {
		t.Error("expected error for empty censored set")
	}
	if _, err := ConditionalNormal(mu, sigma, []int{0}, []int{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched observed values")
	}
	if _, err := ConditionalNormal([]float64{0}, sigma, []int{0}, []int{1}, []float64{1}); err == nil {
		t.Error("expected error for mismatched mean length")
	}
}
