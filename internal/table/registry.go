package table

import (
	"fmt"
	"math"
	"sort"
)

// Registry records, per column, the distinct detection limits seen for that
// column and, per censored cell, the specific limit that applies to it. A
// column may carry zero, one, or several distinct limits (different labs or
// campaigns reporting the same analyte against different thresholds).
//
// A cell with a registry entry is censored: its table value is NaN and the
// registry holds its threshold. A NaN cell without an entry is true
// missingness and is passed through untouched by every engine.
type Registry struct {
	cols   []string
	limits map[string][]float64 // distinct thresholds, ascending
	cell   [][]float64          // per-cell threshold; NaN where not censored
}

// NewRegistry creates an empty registry for a table shape.
func NewRegistry(numRows int, cols []string) *Registry {
	r := &Registry{
		cols:   append([]string(nil), cols...),
		limits: make(map[string][]float64),
		cell:   make([][]float64, numRows),
	}
	for i := range r.cell {
		row := make([]float64, len(cols))
		for j := range row {
			row[j] = math.NaN()
		}
		r.cell[i] = row
	}
	return r
}

// MarkCensored records that cell (row, col) was reported below limit.
func (g *Registry) MarkCensored(row, col int, limit float64) error {
	if limit <= 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return fmt.Errorf("detection limit for cell (%d,%d) must be a positive finite value, got %v", row, col, limit)
	}
	g.cell[row][col] = limit
	name := g.cols[col]
	for _, v := range g.limits[name] {
		if v == limit {
			return nil
		}
	}
	g.limits[name] = append(g.limits[name], limit)
	sort.Float64s(g.limits[name])
	return nil
}

// Censored reports whether cell (row, col) is below its detection limit.
func (g *Registry) Censored(row, col int) bool {
	return !math.IsNaN(g.cell[row][col])
}

// CellLimit returns the detection limit for a censored cell, or NaN when the
// cell is not censored.
func (g *Registry) CellLimit(row, col int) float64 {
	return g.cell[row][col]
}

// Limits returns the distinct detection limits recorded for a column, in
// ascending order. Nil when the column has no censored cells.
func (g *Registry) Limits(col string) []float64 {
	ls := g.limits[col]
	if ls == nil {
		return nil
	}
	return append([]float64(nil), ls...)
}

// CensoredCount returns the number of censored cells in column c.
func (g *Registry) CensoredCount(c int) int {
	n := 0
	for r := range g.cell {
		if !math.IsNaN(g.cell[r][c]) {
			n++
		}
	}
	return n
}

// TotalCensored returns the number of censored cells in the whole grid.
func (g *Registry) TotalCensored() int {
	n := 0
	for c := range g.cols {
		n += g.CensoredCount(c)
	}
	return n
}

// CensoredRows returns the row indices of censored cells in column c.
func (g *Registry) CensoredRows(c int) []int {
	var rows []int
	for r := range g.cell {
		if !math.IsNaN(g.cell[r][c]) {
			rows = append(rows, r)
		}
	}
	return rows
}

// Mask materialises the censoring mask as a boolean grid of the registry's
// shape: true where the original value was below its detection limit.
func (g *Registry) Mask() [][]bool {
	mask := make([][]bool, len(g.cell))
	for r := range g.cell {
		mask[r] = make([]bool, len(g.cols))
		for c := range g.cols {
			mask[r][c] = !math.IsNaN(g.cell[r][c])
		}
	}
	return mask
}

// Validate confirms the registry invariants against a table: matching shape,
// every censored cell holds NaN in the table (the mask is a subset of the
// NaN set), and every recorded limit is positive.
func (g *Registry) Validate(t *Table) error {
	if t.NumRows() != len(g.cell) || t.NumCols() != len(g.cols) {
		return fmt.Errorf("registry shape %dx%d does not match table %dx%d",
			len(g.cell), len(g.cols), t.NumRows(), t.NumCols())
	}
	for c, name := range g.cols {
		if got := t.ColumnName(c); got != name {
			return fmt.Errorf("registry column %d is %q, table has %q", c, name, got)
		}
	}
	for r := range g.cell {
		for c := range g.cols {
			lim := g.cell[r][c]
			if math.IsNaN(lim) {
				continue
			}
			if lim <= 0 {
				return fmt.Errorf("cell (%d,%d): non-positive detection limit %v", r, c, lim)
			}
			if !math.IsNaN(t.At(r, c)) {
				return fmt.Errorf("cell (%d,%d): censored but table value %v is not NaN", r, c, t.At(r, c))
			}
		}
	}
	return nil
}
