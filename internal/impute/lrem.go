package impute

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/eutectik/lodimpute/internal/coda"
	"github.com/eutectik/lodimpute/internal/monitoring"
	"github.com/eutectik/lodimpute/internal/table"
)

// logFloor guards the alr transform against zeros in observed data.
const logFloor = 1e-10

// changeEpsilon stabilises the relative-change denominator.
const changeEpsilon = 1e-10

// minCompleteRows is the smallest number of fully observed rows accepted by
// the complete-observations initialization.
const minCompleteRows = 3

// lremEngine implements the iterative multivariate log-ratio EM procedure
// (Palarea-Albaladejo & Martín-Fernández 2015). Censored cells are first
// filled with frac × LOD, every row is mapped to additive log-ratio
// coordinates against a reference column, and each iteration re-estimates
// the alr mean and covariance (E-step) then replaces each row's censored
// coordinates with their conditional expectation given the observed ones
// (M-step), back-transformed to positive raw values. Rows that cannot
// supply a conditioning set — reference cell censored, at most one observed
// component, true-missing values present, or a singular observed-block
// covariance — fall back to the multiplicative rule for that iteration and
// are counted in the diagnostics.
//
// Unlike the simple and spatial engines, lrEM estimates are not capped at
// the detection limit: the conditional expectation may exceed it.
type lremEngine struct {
	params LrEMParams
}

func (e *lremEngine) impute(t *table.Table, reg *table.Registry, _ *table.Coordinates) (*table.Table, *Diagnostics, error) {
	p := e.params
	nRows, nCols := t.NumRows(), t.NumCols()

	// Whole-method preconditions, fatal before any computation.
	if nCols < 2 {
		return nil, nil, fmt.Errorf("lrem: requires at least 2 variables, got %d: %w", nCols, ErrInsufficientData)
	}
	if nRows <= nCols {
		return nil, nil, fmt.Errorf("lrem: requires more samples (%d) than variables (%d): %w", nRows, nCols, ErrInsufficientData)
	}
	for c := 0; c < nCols; c++ {
		if len(observedColumn(t, reg, c)) == 0 {
			return nil, nil, fmt.Errorf("lrem: column %s has no observed values: %w", t.ColumnName(c), ErrInsufficientData)
		}
	}

	// Row classification against the original table.
	trueMissing := make([]bool, nRows) // NaN without a registry entry
	censoredIn := make([][]int, nRows) // censored column indices per row
	observedIn := make([]int, nRows)   // count of observed components per row
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			switch {
			case reg.Censored(r, c):
				censoredIn[r] = append(censoredIn[r], c)
			case math.IsNaN(t.At(r, c)):
				trueMissing[r] = true
			default:
				observedIn[r]++
			}
		}
	}

	ref := chooseReference(t, reg)

	var completeRows []int
	for r := 0; r < nRows; r++ {
		if len(censoredIn[r]) == 0 && !trueMissing[r] {
			completeRows = append(completeRows, r)
		}
	}
	if p.Init == InitCompleteObs && len(completeRows) < minCompleteRows {
		return nil, nil, fmt.Errorf("lrem: complete_observations initialization needs at least %d fully observed rows, got %d: %w",
			minCompleteRows, len(completeRows), ErrInsufficientData)
	}

	// Initialization: multiplicative fill with a small jitter so no two
	// starting values coincide. Both init methods seed censored cells this
	// way; they differ only in which rows feed the first E-step.
	work := t.Clone()
	rng := rand.New(rand.NewSource(p.Seed))
	for r := 0; r < nRows; r++ {
		for _, c := range censoredIn[r] {
			limit := reg.CellLimit(r, c)
			work.Set(r, c, p.Frac*limit*(0.95+0.1*rng.Float64()))
		}
	}

	prev := work.Clone()
	converged := false
	change := math.NaN()
	iterations := 0
	lastFallbacks := make([]int, nCols)

	for iter := 1; iter <= p.MaxIter; iter++ {
		iterations = iter

		// E-step: estimate alr mean and covariance over the usable rows.
		estRows := make([]int, 0, nRows)
		if iter == 1 && p.Init == InitCompleteObs {
			estRows = append(estRows, completeRows...)
		} else {
			for r := 0; r < nRows; r++ {
				if !trueMissing[r] {
					estRows = append(estRows, r)
				}
			}
		}
		if len(estRows) < 2 {
			return nil, nil, fmt.Errorf("lrem: only %d usable rows for covariance estimation: %w", len(estRows), ErrInsufficientData)
		}
		alrRows := make([][]float64, len(estRows))
		for i, r := range estRows {
			lr, err := coda.ALR(flooredRow(work, r), ref)
			if err != nil {
				return nil, nil, fmt.Errorf("lrem: row %d: %w", r, err)
			}
			alrRows[i] = lr
		}
		mu, sigma, err := coda.MeanCovariance(alrRows)
		if err != nil {
			return nil, nil, fmt.Errorf("lrem: iteration %d: %w", iter, err)
		}

		// M-step: conditional expectation per row with censored cells.
		fallbacks := make([]int, nCols)
		for r := 0; r < nRows; r++ {
			cens := censoredIn[r]
			if len(cens) == 0 {
				continue
			}
			if trueMissing[r] || reg.Censored(r, ref) || observedIn[r] <= 1 {
				multiplicativeFill(work, reg, r, cens, p.Frac, fallbacks)
				continue
			}

			lr, err := coda.ALR(flooredRow(work, r), ref)
			if err != nil {
				return nil, nil, fmt.Errorf("lrem: row %d: %w", r, err)
			}
			obsIdx, censIdx, yObs := partitionALR(lr, cens, ref, nCols)

			cond, err := coda.ConditionalNormal(mu, sigma, obsIdx, censIdx, yObs)
			if err != nil {
				if !errors.Is(err, coda.ErrSingular) {
					return nil, nil, fmt.Errorf("lrem: row %d: %w", r, err)
				}
				multiplicativeFill(work, reg, r, cens, p.Frac, fallbacks)
				continue
			}
			for i, ai := range censIdx {
				lr[ai] = cond[i]
			}
			full := coda.ALRInverse(lr, ref, work.At(r, ref))
			for _, c := range cens {
				work.Set(r, c, full[c])
			}
		}
		copy(lastFallbacks, fallbacks)

		// Convergence: relative change between successive iterates.
		change = relativeChange(work, prev)
		if change < p.Tolerance {
			converged = true
			break
		}
		prev = work.Clone()
	}

	if !converged {
		monitoring.Warnf("lrem: no convergence after %d iterations (relative change %.3g, tolerance %.3g); returning last iterate",
			iterations, change, p.Tolerance)
	}

	// Assemble output: only originally censored cells change.
	out := t.Clone()
	diag := newDiagnostics(MethodLrEM)
	diag.Converged = converged
	diag.Iterations = iterations
	diag.FinalChange = change
	for c := 0; c < nCols; c++ {
		name := t.ColumnName(c)
		censRows := reg.CensoredRows(c)
		observed := observedColumn(t, reg, c)
		cd := diag.column(name, len(observed)+len(censRows), len(censRows), reg.Limits(name))
		if c == ref {
			cd.AddStat("alr_reference", 1)
		}
		if len(censRows) == 0 {
			continue
		}
		cd.Fallbacks = lastFallbacks[c]
		imputed := make([]float64, len(censRows))
		for i, r := range censRows {
			imputed[i] = work.At(r, c)
			out.Set(r, c, imputed[i])
		}
		imputedSummary(cd, imputed)
	}
	return out, diag, nil
}

// chooseReference picks the alr reference column: the last fully observed
// column when one exists, otherwise the column with the fewest censored
// cells (later columns win ties, keeping the conventional last-column
// reference for clean data).
func chooseReference(t *table.Table, reg *table.Registry) int {
	best := -1
	for c := 0; c < t.NumCols(); c++ {
		if reg.CensoredCount(c) == 0 && !columnHasMissing(t, reg, c) {
			best = c
		}
	}
	if best >= 0 {
		return best
	}
	bestCount := math.MaxInt
	for c := 0; c < t.NumCols(); c++ {
		if n := reg.CensoredCount(c); n <= bestCount {
			bestCount = n
			best = c
		}
	}
	return best
}

func columnHasMissing(t *table.Table, reg *table.Registry, c int) bool {
	for r := 0; r < t.NumRows(); r++ {
		if math.IsNaN(t.At(r, c)) && !reg.Censored(r, c) {
			return true
		}
	}
	return false
}

// flooredRow returns row r with every value floored at logFloor, the form
// fed to the alr transform.
func flooredRow(t *table.Table, r int) []float64 {
	row := t.Row(r)
	for i, v := range row {
		if v < logFloor {
			row[i] = logFloor
		}
	}
	return row
}

// partitionALR splits the alr coordinate positions of one row into observed
// and censored index sets. A censored original column maps to the single alr
// coordinate built from it; the reference column has no coordinate of its
// own (rows with a censored reference never reach this point).
func partitionALR(lr []float64, censCols []int, ref, nCols int) (obsIdx, censIdx []int, yObs []float64) {
	isCensored := make(map[int]bool, len(censCols))
	for _, c := range censCols {
		isCensored[c] = true
	}
	for c := 0; c < nCols; c++ {
		if c == ref {
			continue
		}
		ai := c
		if c > ref {
			ai = c - 1
		}
		if isCensored[c] {
			censIdx = append(censIdx, ai)
		} else {
			obsIdx = append(obsIdx, ai)
			yObs = append(yObs, lr[ai])
		}
	}
	return obsIdx, censIdx, yObs
}

// multiplicativeFill applies the per-iteration fallback rule frac × LOD to
// a row's censored cells and counts them per column.
func multiplicativeFill(work *table.Table, reg *table.Registry, r int, cens []int, frac float64, fallbacks []int) {
	for _, c := range cens {
		work.Set(r, c, frac*reg.CellLimit(r, c))
		fallbacks[c]++
	}
}

// relativeChange is the convergence metric: the largest absolute cell delta
// between iterates, relative to the largest magnitude of the previous
// iterate. NaN cells (true missingness) are skipped.
func relativeChange(cur, prev *table.Table) float64 {
	maxDelta := 0.0
	maxPrev := 0.0
	for r := 0; r < cur.NumRows(); r++ {
		for c := 0; c < cur.NumCols(); c++ {
			a, b := cur.At(r, c), prev.At(r, c)
			if math.IsNaN(a) || math.IsNaN(b) {
				continue
			}
			if d := math.Abs(a - b); d > maxDelta {
				maxDelta = d
			}
			if m := math.Abs(b); m > maxPrev {
				maxPrev = m
			}
		}
	}
	return maxDelta / (maxPrev + changeEpsilon)
}
