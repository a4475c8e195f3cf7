package impute

import (
	"fmt"
	"math"

	"github.com/eutectik/lodimpute/internal/coda"
	"github.com/eutectik/lodimpute/internal/monitoring"
	"github.com/eutectik/lodimpute/internal/table"
)

// idwEngine imputes each censored cell from the observed values of the same
// variable at neighboring sample locations, weighted by a normalized
// distance decay curve:
//
//	w_i = max(0, 1 − (d_i/d_max)^power)²
//
// d_max is the distance to the farthest qualifying neighbor, or the search
// radius when one is configured. The power parameter generalises the inner
// quadratic term; the outer square is fixed, giving a single coherent decay
// curve. A spatial estimate never exceeds the cell's own detection limit:
// estimates above it are replaced by LOD/2 or LOD/√2 per the method_c rule.
// Cells with fewer than min_neighbors qualifying neighbors fall back to the
// configured substitution policy and are flagged in the diagnostics.
//
// Neighbor values are always taken from the original table, never from
// previously imputed cells, so cell order does not affect results.
type idwEngine struct {
	params IDWParams
}

func (e *idwEngine) impute(t *table.Table, reg *table.Registry, coords *table.Coordinates) (*table.Table, *Diagnostics, error) {
	p := e.params
	if coords == nil {
		return nil, nil, fmt.Errorf("idw: coordinates are required")
	}
	if coords.Len() != t.NumRows() {
		return nil, nil, fmt.Errorf("idw: %d coordinate rows for %d table rows", coords.Len(), t.NumRows())
	}

	out := t.Clone()
	diag := newDiagnostics(MethodIDW)

	for c := 0; c < t.NumCols(); c++ {
		name := t.ColumnName(c)
		censRows := reg.CensoredRows(c)
		observed := observedColumn(t, reg, c)
		cd := diag.column(name, len(observed)+len(censRows), len(censRows), reg.Limits(name))
		if len(censRows) == 0 {
			continue
		}

		// β fallback factor, computed once per column on demand.
		betaMean := math.NaN()
		if p.Fallback == FallbackBeta {
			betaMean = columnBetaMean(reg, c, censRows, observed, name)
		}

		// Observed sample rows for this variable.
		var obsRows []int
		var obsVals []float64
		for r := 0; r < t.NumRows(); r++ {
			v := t.At(r, c)
			if isFinite(v) && !reg.Censored(r, c) {
				obsRows = append(obsRows, r)
				obsVals = append(obsVals, v)
			}
		}

		var imputed []float64
		neighborTotal := 0
		estimated := 0
		capped := 0
		for _, r := range censRows {
			limit := reg.CellLimit(r, c)
			raw, neighbors, err := e.estimateCell(coords, r, obsRows, obsVals)
			if err != nil {
				monitoring.Warnf("idw: column %s row %d: %v; applying %s fallback", name, r, err, p.Fallback)
				v, ferr := e.fallbackValue(limit, betaMean)
				if ferr != nil {
					return nil, nil, ferr
				}
				cd.Fallbacks++
				out.Set(r, c, v)
				imputed = append(imputed, v)
				continue
			}
			neighborTotal += neighbors
			estimated++

			v := raw
			if v > limit {
				capValue, cerr := p.Cap.CentralValue(limit)
				if cerr != nil {
					return nil, nil, cerr
				}
				v = capValue
				capped++
			}
			out.Set(r, c, v)
			imputed = append(imputed, v)
		}

		if estimated > 0 {
			cd.AddStat("mean_neighbors", float64(neighborTotal)/float64(estimated))
		}
		if capped > 0 {
			cd.AddStat("capped_at_lod", float64(capped))
		}
		imputedSummary(cd, imputed)
	}
	return out, diag, nil
}

// estimateCell computes the raw weighted spatial estimate for one censored
// cell. ErrInsufficientNeighbors marks a cell the caller must resolve by the
// fallback policy.
func (e *idwEngine) estimateCell(coords *table.Coordinates, r int, obsRows []int, obsVals []float64) (float64, int, error) {
	p := e.params

	var dists, vals []float64
	for i, or := range obsRows {
		if or == r {
			continue
		}
		d := coords.Distance(r, or)
		if p.MaxDistance > 0 && d > p.MaxDistance {
			continue
		}
		dists = append(dists, d)
		vals = append(vals, obsVals[i])
	}
	if len(dists) < p.MinNeighbors {
		return 0, 0, fmt.Errorf("%d qualifying neighbors, need %d: %w", len(dists), p.MinNeighbors, ErrInsufficientNeighbors)
	}

	dMax := p.MaxDistance
	if dMax <= 0 {
		for _, d := range dists {
			if d > dMax {
				dMax = d
			}
		}
	}
	if dMax <= 0 {
		// All neighbors coincide with the target; average them.
		dMax = 1
	}

	weightSum := 0.0
	weighted := 0.0
	for i, d := range dists {
		u := math.Pow(d/dMax, p.Power)
		w := 1 - u
		if w < 0 {
			w = 0
		}
		w *= w
		weightSum += w
		weighted += w * vals[i]
	}
	if weightSum == 0 {
		// Degenerate layout (every neighbor at d_max): plain average.
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals)), len(vals), nil
	}
	return weighted / weightSum, len(dists), nil
}

// fallbackValue resolves a cell without enough neighbors. The simple policy
// substitutes the method_c central value; the beta policy substitutes
// β_MEAN × LOD when the column supports a factor and degrades to the central
// value otherwise.
func (e *idwEngine) fallbackValue(limit, betaMean float64) (float64, error) {
	if e.params.Fallback == FallbackBeta && !math.IsNaN(betaMean) {
		return betaMean * limit, nil
	}
	return e.params.Cap.CentralValue(limit)
}

// columnBetaMean computes the column's β_MEAN factor for the beta fallback
// policy, or NaN when the column cannot support one.
func columnBetaMean(reg *table.Registry, c int, censRows []int, observed []float64, name string) float64 {
	if len(observed) < 2 {
		return math.NaN()
	}
	limits := make([]float64, len(censRows))
	for i, r := range censRows {
		limits[i] = reg.CellLimit(r, c)
	}
	colLOD, err := coda.GeometricMean(limits)
	if err != nil {
		return math.NaN()
	}
	_, betaMean, err := ganserHewettFactors(observed, len(censRows), colLOD)
	if err != nil {
		monitoring.Warnf("idw: column %s: beta fallback unavailable: %v", name, err)
		return math.NaN()
	}
	return betaMean
}
