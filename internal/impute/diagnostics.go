package impute

import (
	"math"

	"github.com/google/uuid"
)

// Diagnostics is the structured record returned alongside every imputed
// table. It is created fresh per invocation, never mutated after return, and
// holds no reference to the tables it describes.
type Diagnostics struct {
	// RunID uniquely identifies the invocation, for session logs.
	RunID string
	// Method is the engine that produced the record.
	Method Method

	// Converged, Iterations and FinalChange describe the lrEM loop. They
	// are zero-valued for the other methods.
	Converged   bool
	Iterations  int
	FinalChange float64

	// Columns holds one entry per table column, in column order.
	Columns []*ColumnDiagnostics
}

// ColumnDiagnostics aggregates the per-column statistics of one run.
type ColumnDiagnostics struct {
	Column          string
	N               int // observed + censored values (true missing excluded)
	NCensored       int
	PercentCensored float64
	Limits          []float64 // distinct detection limits for the column

	// Skipped marks a column the method could not process; SkipReason is a
	// short machine-greppable cause such as "insufficient-data".
	Skipped    bool
	SkipReason string

	// Fallbacks counts cells or row-iterations resolved by the documented
	// fallback rule instead of the primary estimator.
	Fallbacks int

	// Stats holds the method-specific named statistics in emission order
	// (β factors, imputed min/mean/max, neighbor counts, ...).
	Stats []Stat
}

// Stat is one named statistic of a column.
type Stat struct {
	Name  string
	Value float64
}

// AddStat appends a named statistic.
func (c *ColumnDiagnostics) AddStat(name string, value float64) {
	c.Stats = append(c.Stats, Stat{Name: name, Value: value})
}

// StatValue returns the named statistic and whether it was recorded.
func (c *ColumnDiagnostics) StatValue(name string) (float64, bool) {
	for _, s := range c.Stats {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// newDiagnostics creates an empty record for one invocation.
func newDiagnostics(m Method) *Diagnostics {
	return &Diagnostics{RunID: uuid.NewString(), Method: m}
}

// column appends and returns the diagnostics entry for a column.
func (d *Diagnostics) column(name string, n, nCensored int, limits []float64) *ColumnDiagnostics {
	c := &ColumnDiagnostics{
		Column:    name,
		N:         n,
		NCensored: nCensored,
		Limits:    limits,
	}
	if n > 0 {
		c.PercentCensored = 100 * float64(nCensored) / float64(n)
	}
	d.Columns = append(d.Columns, c)
	return c
}

// ColumnByName returns the entry for a column, or nil.
func (d *Diagnostics) ColumnByName(name string) *ColumnDiagnostics {
	for _, c := range d.Columns {
		if c.Column == name {
			return c
		}
	}
	return nil
}

// StatRow is one row of the flattened diagnostics table consumed by session
// logs and reporting tools: one row per (column, statistic), keyed by column
// name and method.
type StatRow struct {
	Column string
	Method string
	Stat   string
	Value  float64
}

// Rows flattens the record into the row-per-statistic form. Method-level
// statistics (convergence, iteration count) are emitted with an empty column
// key ahead of the per-column rows.
func (d *Diagnostics) Rows() []StatRow {
	var rows []StatRow
	if d.Method == MethodLrEM {
		converged := 0.0
		if d.Converged {
			converged = 1
		}
		rows = append(rows,
			StatRow{Method: d.Method.String(), Stat: "converged", Value: converged},
			StatRow{Method: d.Method.String(), Stat: "iterations", Value: float64(d.Iterations)},
			StatRow{Method: d.Method.String(), Stat: "final_relative_change", Value: d.FinalChange},
		)
	}
	for _, c := range d.Columns {
		base := StatRow{Column: c.Column, Method: d.Method.String()}
		emit := func(stat string, v float64) {
			r := base
			r.Stat = stat
			r.Value = v
			rows = append(rows, r)
		}
		emit("n", float64(c.N))
		emit("n_censored", float64(c.NCensored))
		emit("percent_censored", c.PercentCensored)
		if len(c.Limits) > 0 {
			emit("lod_max", maxOf(c.Limits))
		}
		if c.Skipped {
			emit("skipped", 1)
		}
		if c.Fallbacks > 0 {
			emit("fallbacks", float64(c.Fallbacks))
		}
		for _, s := range c.Stats {
			emit(s.Name, s.Value)
		}
	}
	return rows
}

func maxOf(vs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

// imputedSummary records mean/min/max/std statistics of a column's imputed
// values into its diagnostics entry. No-op for an empty slice.
func imputedSummary(c *ColumnDiagnostics, values []float64) {
	if len(values) == 0 {
		return
	}
	minV, maxV := values[0], values[0]
	sum := 0.0
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	mean := sum / float64(len(values))
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if len(values) > 1 {
		std = math.Sqrt(ss / float64(len(values)-1))
	}
	c.AddStat("mean_imputed", mean)
	c.AddStat("min_imputed", minV)
	c.AddStat("max_imputed", maxV)
	c.AddStat("std_imputed", std)
}
