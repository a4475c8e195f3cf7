package table

import (
	"math"
	"testing"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New([]string{"Cu", "Zn"}, [][]float64{
		{1, math.NaN()},
		{2, 3},
		{math.NaN(), 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tbl
}

func TestRegistry_MarkAndQuery(t *testing.T) {
	tbl := newTestTable(t)
	reg := NewRegistry(tbl.NumRows(), tbl.Columns())

	if err := reg.MarkCensored(0, 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.MarkCensored(2, 0, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reg.Censored(0, 1) || !reg.Censored(2, 0) {
		t.Error("marked cells not reported as censored")
	}
	if reg.Censored(1, 0) {
		t.Error("unmarked cell reported as censored")
	}
	if got := reg.CellLimit(0, 1); got != 5 {
		t.Errorf("CellLimit(0,1) = %v, want 5", got)
	}
	if !math.IsNaN(reg.CellLimit(1, 1)) {
		t.Error("CellLimit for uncensored cell should be NaN")
	}
	if got := reg.CensoredCount(1); got != 1 {
		t.Errorf("CensoredCount(Zn) = %d, want 1", got)
	}
	if got := reg.TotalCensored(); got != 2 {
		t.Errorf("TotalCensored = %d, want 2", got)
	}
	if rows := reg.CensoredRows(0); len(rows) != 1 || rows[0] != 2 {
		t.Errorf("CensoredRows(Cu) = %v, want [2]", rows)
	}
}

func TestRegistry_MultipleLimitsPerColumn(t *testing.T) {
	reg := NewRegistry(4, []string{"As"})
	for i, lim := range []float64{10, 5, 10, 2} {
		if err := reg.MarkCensored(i, 0, lim); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got := reg.Limits("As")
	want := []float64{2, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("Limits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Limits = %v, want %v", got, want)
		}
	}
	if reg.Limits("Sb") != nil {
		t.Error("Limits for unknown column should be nil")
	}
}

func TestRegistry_MarkCensoredRejectsBadLimit(t *testing.T) {
	reg := NewRegistry(1, []string{"Cu"})
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := reg.MarkCensored(0, 0, bad); err == nil {
			t.Errorf("expected error for limit %v", bad)
		}
	}
}

func TestRegistry_Mask(t *testing.T) {
	tbl := newTestTable(t)
	reg := NewRegistry(tbl.NumRows(), tbl.Columns())
	if err := reg.MarkCensored(0, 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mask := reg.Mask()
	if !mask[0][1] {
		t.Error("mask missing censored cell")
	}
	if mask[2][0] {
		t.Error("mask set for true-missing cell")
	}
}

func TestRegistry_Validate(t *testing.T) {
	tbl := newTestTable(t)

	reg := NewRegistry(tbl.NumRows(), tbl.Columns())
	if err := reg.MarkCensored(0, 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Validate(tbl); err != nil {
		t.Errorf("valid registry rejected: %v", err)
	}

	// Censored cell whose table value is not NaN violates the mask-subset
	// invariant.
	bad := NewRegistry(tbl.NumRows(), tbl.Columns())
	if err := bad.MarkCensored(1, 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bad.Validate(tbl); err == nil {
		t.Error("expected error for censored cell with a finite table value")
	}

	// Shape mismatch.
	other := NewRegistry(2, tbl.Columns())
	if err := other.Validate(tbl); err == nil {
		t.Error("expected error for shape mismatch")
	}
}
