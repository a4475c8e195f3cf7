package impute

import (
	"fmt"
	"math"
	"strings"
)

// Method identifies one of the four imputation strategies.
type Method int

const (
	// MethodSimple is randomized constant-factor substitution (LOD/√2 or LOD/2).
	MethodSimple Method = iota
	// MethodBeta is β-substitution after Ganser & Hewett (2010).
	MethodBeta
	// MethodLrEM is iterative multivariate log-ratio EM imputation.
	MethodLrEM
	// MethodIDW is spatially weighted inverse-distance imputation.
	MethodIDW
)

// String returns the method's selector name as used by the CLI.
func (m Method) String() string {
	switch m {
	case MethodSimple:
		return "simple"
	case MethodBeta:
		return "beta"
	case MethodLrEM:
		return "lrem"
	case MethodIDW:
		return "idw"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps a selector name to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return MethodSimple, nil
	case "beta":
		return MethodBeta, nil
	case "lrem":
		return MethodLrEM, nil
	case "idw":
		return MethodIDW, nil
	}
	return 0, fmt.Errorf("unknown method %q (want simple, beta, lrem, or idw)", s)
}

// FactorBasis selects the constant divisor applied to a detection limit.
type FactorBasis string

const (
	// FactorSqrt2 centres substituted values at LOD/√2.
	FactorSqrt2 FactorBasis = "sqrt2"
	// FactorDiv2 centres substituted values at LOD/2.
	FactorDiv2 FactorBasis = "div2"
)

// Divisor returns the numeric divisor for the basis.
func (b FactorBasis) Divisor() (float64, error) {
	switch b {
	case FactorSqrt2:
		return math.Sqrt2, nil
	case FactorDiv2:
		return 2, nil
	}
	return 0, fmt.Errorf("unknown factor basis %q (want sqrt2 or div2)", string(b))
}

// Params is the closed set of per-method parameter variants accepted by Run.
// Exactly one concrete type exists per method.
type Params interface {
	Method() Method
	Validate() error
}

// SimpleParams configures the simple substitution engine.
type SimpleParams struct {
	// Basis selects the LOD divisor: sqrt2 or div2.
	Basis FactorBasis `json:"factor_basis"`
	// Seed drives the multiplicative perturbation so runs are reproducible.
	Seed int64 `json:"seed"`
}

// DefaultSimpleParams returns the documented defaults.
func DefaultSimpleParams() SimpleParams {
	return SimpleParams{Basis: FactorSqrt2, Seed: 42}
}

// Method implements Params.
func (SimpleParams) Method() Method { return MethodSimple }

// Validate implements Params.
func (p SimpleParams) Validate() error {
	_, err := p.Basis.Divisor()
	return err
}

// BetaParams configures the β-substitution engine, which is fully
// deterministic and carries no tunables.
type BetaParams struct{}

// DefaultBetaParams returns the (empty) defaults.
func DefaultBetaParams() BetaParams { return BetaParams{} }

// Method implements Params.
func (BetaParams) Method() Method { return MethodBeta }

// Validate implements Params.
func (BetaParams) Validate() error { return nil }

// InitMethod selects how the lrEM engine builds its starting table.
type InitMethod string

const (
	// InitMultiplicative fills censored cells with frac × LOD before the
	// first E-step.
	InitMultiplicative InitMethod = "multiplicative"
	// InitCompleteObs estimates the first iteration's mean and covariance
	// from fully observed rows only. Censored cells are still seeded with
	// frac × LOD so every row can be back-transformed.
	InitCompleteObs InitMethod = "complete_observations"
)

// LrEMParams configures the log-ratio EM engine.
type LrEMParams struct {
	// Tolerance is the relative-change convergence threshold.
	Tolerance float64 `json:"tolerance"`
	// MaxIter bounds the EM loop; reaching it is reported, not fatal.
	MaxIter int `json:"max_iter"`
	// Frac is the fraction of the LOD used for initialization and for
	// per-row fallbacks.
	Frac float64 `json:"frac"`
	// Init selects the initialization strategy.
	Init InitMethod `json:"init_method"`
	// Seed drives the initialization jitter.
	Seed int64 `json:"seed"`
}

// DefaultLrEMParams returns the documented defaults.
func DefaultLrEMParams() LrEMParams {
	return LrEMParams{Tolerance: 1e-4, MaxIter: 50, Frac: 0.65, Init: InitMultiplicative, Seed: 42}
}

// Method implements Params.
func (LrEMParams) Method() Method { return MethodLrEM }

// Validate implements Params.
func (p LrEMParams) Validate() error {
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", p.Tolerance)
	}
	if p.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1, got %d", p.MaxIter)
	}
	if p.Frac <= 0 || p.Frac >= 1 {
		return fmt.Errorf("frac must be in (0, 1), got %v", p.Frac)
	}
	if p.Init != InitMultiplicative && p.Init != InitCompleteObs {
		return fmt.Errorf("unknown init_method %q (want multiplicative or complete_observations)", string(p.Init))
	}
	return nil
}

// CapRule selects the replacement used when a spatial estimate exceeds the
// cell's own detection limit.
type CapRule string

const (
	// CapDiv2 replaces over-limit estimates with LOD/2.
	CapDiv2 CapRule = "div2"
	// CapSqrt2 replaces over-limit estimates with LOD/√2.
	CapSqrt2 CapRule = "sqrt2"
)

// CentralValue returns the capped replacement for a detection limit.
func (c CapRule) CentralValue(limit float64) (float64, error) {
	switch c {
	case CapDiv2:
		return limit / 2, nil
	case CapSqrt2:
		return limit / math.Sqrt2, nil
	}
	return 0, fmt.Errorf("unknown method_c %q (want div2 or sqrt2)", string(c))
}

// IDWFallback selects how cells without enough neighbors are resolved.
type IDWFallback string

const (
	// FallbackSimple substitutes the method_c central value.
	FallbackSimple IDWFallback = "simple"
	// FallbackBeta substitutes the column's β_MEAN × LOD; when the column
	// cannot support a β factor the central value is used instead.
	FallbackBeta IDWFallback = "beta"
)

// IDWParams configures the spatial inverse-distance engine.
type IDWParams struct {
	// Power is the distance exponent inside the decay curve
	// w = max(0, 1 − (d/dmax)^power)². Default 2 recovers the quadratic
	// decay; the outer square is fixed.
	Power float64 `json:"power"`
	// MaxDistance bounds the neighbor search radius; zero or negative
	// means unbounded.
	MaxDistance float64 `json:"max_distance"`
	// MinNeighbors is the minimum number of qualifying neighbors a cell
	// needs before falling back.
	MinNeighbors int `json:"min_neighbors"`
	// Cap is the over-limit replacement rule (method_c).
	Cap CapRule `json:"method_c"`
	// Fallback resolves cells with too few neighbors.
	Fallback IDWFallback `json:"fallback"`
}

// DefaultIDWParams returns the documented defaults.
func DefaultIDWParams() IDWParams {
	return IDWParams{Power: 2.0, MaxDistance: 0, MinNeighbors: 3, Cap: CapDiv2, Fallback: FallbackSimple}
}

// Method implements Params.
func (IDWParams) Method() Method { return MethodIDW }

// Validate implements Params.
func (p IDWParams) Validate() error {
	if p.Power <= 0 || math.IsNaN(p.Power) {
		return fmt.Errorf("power must be positive, got %v", p.Power)
	}
	if p.MinNeighbors < 1 {
		return fmt.Errorf("min_neighbors must be at least 1, got %d", p.MinNeighbors)
	}
	if _, err := p.Cap.CentralValue(1); err != nil {
		return err
	}
	if p.Fallback != FallbackSimple && p.Fallback != FallbackBeta {
		return fmt.Errorf("unknown fallback %q (want simple or beta)", string(p.Fallback))
	}
	return nil
}
