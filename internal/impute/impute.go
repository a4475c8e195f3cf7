// Package impute implements the censored-data imputation engines for
// geochemical tables: simple randomized substitution, β-substitution after
// Ganser & Hewett (2010), iterative multivariate log-ratio EM (lrEM) after
// Palarea-Albaladejo & Martín-Fernández (2015), and spatially weighted
// inverse-distance interpolation (IDW).
//
// All engines share the same contract: they read a Table plus detection
// limit Registry (plus Coordinates, for IDW), and return a new table of
// identical shape in which censored cells carry positive estimates,
// untouched cells pass through bit-identical, and unregistered NaN cells
// (true missingness) stay NaN. Per-column and per-cell failures are resolved
// by documented fallbacks and recorded in the Diagnostics; only whole-method
// preconditions abort a call.
//
// Engines are pure and synchronous: no I/O, no shared mutable state, safe to
// run concurrently against distinct inputs.
package impute

import (
	"fmt"
	"math"

	"github.com/eutectik/lodimpute/internal/table"
)

// engine is the common surface of the four method implementations.
type engine interface {
	impute(t *table.Table, reg *table.Registry, coords *table.Coordinates) (*table.Table, *Diagnostics, error)
}

// Run dispatches one imputation over a table. The method is selected by the
// concrete type of params; coords may be nil for every method except IDW.
// The inputs are never mutated; the returned table is independently owned.
func Run(t *table.Table, reg *table.Registry, coords *table.Coordinates, params Params) (*table.Table, *Diagnostics, error) {
	if t == nil || reg == nil {
		return nil, nil, fmt.Errorf("impute: table and registry are required")
	}
	if t.NumRows() == 0 {
		return nil, nil, fmt.Errorf("impute: table has no rows")
	}
	if err := reg.Validate(t); err != nil {
		return nil, nil, fmt.Errorf("impute: invalid registry: %w", err)
	}
	if params == nil {
		return nil, nil, fmt.Errorf("impute: params are required")
	}
	if err := params.Validate(); err != nil {
		return nil, nil, fmt.Errorf("impute: invalid %s params: %w", params.Method(), err)
	}

	var e engine
	switch p := params.(type) {
	case SimpleParams:
		e = &simpleEngine{params: p}
	case BetaParams:
		e = &betaEngine{params: p}
	case LrEMParams:
		e = &lremEngine{params: p}
	case IDWParams:
		e = &idwEngine{params: p}
	default:
		return nil, nil, fmt.Errorf("impute: unsupported params type %T", params)
	}
	return e.impute(t, reg, coords)
}

// observedColumn returns the finite, non-censored values of column c: the
// values the column actually measured above its detection limits.
func observedColumn(t *table.Table, reg *table.Registry, c int) []float64 {
	var out []float64
	for r := 0; r < t.NumRows(); r++ {
		v := t.At(r, c)
		if isFinite(v) && !reg.Censored(r, c) {
			out = append(out, v)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
