package impute

import (
	"math"
	"math/rand"
	"sort"

	"github.com/eutectik/lodimpute/internal/table"
)

// perturbationStd is the standard deviation of the per-cell perturbation,
// as a fraction of the cell's target value LOD/k.
const perturbationStd = 0.15

// simpleEngine replaces each censored cell with its detection limit divided
// by a constant factor (√2 or 2), perturbed per cell so no two imputed
// values in a column are identical, then corrected uniformly so the mean of
// the imputed cells equals the mean of the per-cell targets exactly.
type simpleEngine struct {
	params SimpleParams
}

func (e *simpleEngine) impute(t *table.Table, reg *table.Registry, _ *table.Coordinates) (*table.Table, *Diagnostics, error) {
	divisor, err := e.params.Basis.Divisor()
	if err != nil {
		return nil, nil, err
	}

	out := t.Clone()
	diag := newDiagnostics(MethodSimple)
	rng := rand.New(rand.NewSource(e.params.Seed))

	for c := 0; c < t.NumCols(); c++ {
		name := t.ColumnName(c)
		censRows := reg.CensoredRows(c)
		observed := observedColumn(t, reg, c)
		cd := diag.column(name, len(observed)+len(censRows), len(censRows), reg.Limits(name))
		if len(censRows) == 0 {
			// Nothing to substitute; the column passes through unchanged.
			continue
		}

		values := simpleColumnValues(rng, reg, c, censRows, divisor)
		for i, r := range censRows {
			out.Set(r, c, values[i])
		}

		target := 0.0
		for _, r := range censRows {
			target += reg.CellLimit(r, c) / divisor
		}
		cd.AddStat("target_mean", target/float64(len(censRows)))
		imputedSummary(cd, values)
	}
	return out, diag, nil
}

// simpleColumnValues produces the substituted values for one column's
// censored cells. Draws are normal around LOD/divisor (σ = 15% of the
// target), clipped to [0.001, 0.99·LOD], scaled uniformly to restore the
// exact target mean, then nudged apart if any pair collided.
func simpleColumnValues(rng *rand.Rand, reg *table.Registry, c int, censRows []int, divisor float64) []float64 {
	values := make([]float64, len(censRows))
	targetSum := 0.0
	for i, r := range censRows {
		limit := reg.CellLimit(r, c)
		target := limit / divisor
		targetSum += target
		v := target + rng.NormFloat64()*perturbationStd*target
		values[i] = clamp(v, 0.001, 0.99*limit)
	}

	// Uniform multiplicative correction: clipping biases the draw mean, the
	// correction restores the exact per-cell-target mean. Values are not
	// re-clipped afterwards: re-clipping would break the exact mean, and at
	// σ = 15% the correction factor stays too close to 1 to push a value
	// past its limit.
	drawSum := 0.0
	for _, v := range values {
		drawSum += v
	}
	if drawSum > 0 {
		factor := targetSum / drawSum
		for i := range values {
			values[i] *= factor
		}
	}

	dedupe(values)
	return values
}

// dedupe nudges exactly colliding values apart by one part in 10⁹ so a
// column never carries two bit-identical imputed values.
func dedupe(values []float64) {
	if len(values) < 2 {
		return
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	for k := 1; k < len(order); k++ {
		i, j := order[k-1], order[k]
		for values[j] <= values[i] {
			values[j] = math.Nextafter(values[i]*(1+1e-9), math.Inf(1))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
