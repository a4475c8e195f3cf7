// Package table holds the in-memory data model shared by every imputation
// engine: the numeric sample grid, the per-column detection-limit registry
// with its censoring mask, and the optional planar coordinate set.
//
// Tables are samples-by-variables: rows are samples, columns are named
// variables. A cell is either a finite value, NaN (missing), or NaN with a
// registry entry (censored below a detection limit). Engines receive read
// access and return new tables; nothing in this package mutates shared state.
package table

import (
	"fmt"
	"math"
)

// Table is a rectangular numeric grid with named columns.
type Table struct {
	cols []string
	data [][]float64 // row-major; every row has len(cols) entries
}

// New builds a Table from column names and row data. Rows must all have
// exactly one value per column and column names must be unique.
func New(cols []string, rows [][]float64) (*Table, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("table requires at least one column")
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate column name %q", c)
		}
		seen[c] = true
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(cols))
		}
	}
	t := &Table{cols: append([]string(nil), cols...)}
	t.data = make([][]float64, len(rows))
	for i, r := range rows {
		t.data[i] = append([]float64(nil), r...)
	}
	return t, nil
}

// NumRows returns the number of samples.
func (t *Table) NumRows() int { return len(t.data) }

// NumCols returns the number of variables.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns a copy of the column names.
func (t *Table) Columns() []string { return append([]string(nil), t.cols...) }

// ColumnName returns the name of column c.
func (t *Table) ColumnName(c int) string { return t.cols[c] }

// ColumnIndex looks up a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.cols {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// At returns the value at row r, column c.
func (t *Table) At(r, c int) float64 { return t.data[r][c] }

// Set writes the value at row r, column c. Only output tables are written;
// input tables are never passed to Set by any engine.
func (t *Table) Set(r, c int, v float64) { t.data[r][c] = v }

// Row returns a copy of row r.
func (t *Table) Row(r int) []float64 { return append([]float64(nil), t.data[r]...) }

// Column returns a copy of column c.
func (t *Table) Column(c int) []float64 {
	out := make([]float64, len(t.data))
	for r := range t.data {
		out[r] = t.data[r][c]
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{cols: append([]string(nil), t.cols...)}
	out.data = make([][]float64, len(t.data))
	for i, r := range t.data {
		out.data[i] = append([]float64(nil), r...)
	}
	return out
}

// Coordinates is a per-row planar position set in a projected reference
// frame. Row i of the owning Table is located at (X[i], Y[i]). No
// reprojection is performed anywhere in this module.
type Coordinates struct {
	X []float64
	Y []float64
}

// NewCoordinates builds a Coordinates set, requiring equal-length axes.
func NewCoordinates(x, y []float64) (*Coordinates, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("coordinate axes differ in length: %d vs %d", len(x), len(y))
	}
	return &Coordinates{
		X: append([]float64(nil), x...),
		Y: append([]float64(nil), y...),
	}, nil
}

// Len returns the number of coordinate rows.
func (c *Coordinates) Len() int { return len(c.X) }

// Distance returns the Euclidean distance between rows i and j.
func (c *Coordinates) Distance(i, j int) float64 {
	dx := c.X[i] - c.X[j]
	dy := c.Y[i] - c.Y[j]
	return math.Hypot(dx, dy)
}
