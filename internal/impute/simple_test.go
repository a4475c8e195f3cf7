package impute

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eutectik/lodimpute/internal/table"
)

func simpleFixture(t *testing.T) (*table.Table, *table.Registry) {
	t.Helper()
	cols := []string{"Cu", "Zn"}
	tbl := mustTable(t, cols, [][]float64{
		{1.2, 45},
		{math.NaN(), 52},
		{0.9, 38},
		{math.NaN(), 61},
		{3.1, 47},
		{math.NaN(), 55},
		{2.2, 49},
		{1.8, 44},
	})
	reg := table.NewRegistry(tbl.NumRows(), cols)
	censor(t, reg, 1, 0, 0.5)
	censor(t, reg, 3, 0, 0.5)
	censor(t, reg, 5, 0, 0.8)
	return tbl, reg
}

func TestSimple_MeanMatchesTargets(t *testing.T) {
	tbl, reg := simpleFixture(t)

	for _, basis := range []FactorBasis{FactorSqrt2, FactorDiv2} {
		t.Run(string(basis), func(t *testing.T) {
			params := DefaultSimpleParams()
			params.Basis = basis
			divisor, err := basis.Divisor()
			if err != nil {
				t.Fatalf("divisor: %v", err)
			}

			out, diag, err := Run(tbl, reg, nil, params)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			censRows := reg.CensoredRows(0)
			wantMean := 0.0
			gotMean := 0.0
			for _, r := range censRows {
				wantMean += reg.CellLimit(r, 0) / divisor
				gotMean += out.At(r, 0)
			}
			wantMean /= float64(len(censRows))
			gotMean /= float64(len(censRows))
			if math.Abs(gotMean-wantMean) > 1e-6*wantMean {
				t.Errorf("imputed mean = %v, want %v", gotMean, wantMean)
			}

			cd := diag.ColumnByName("Cu")
			target, ok := cd.StatValue("target_mean")
			if !ok {
				t.Fatal("missing target_mean stat")
			}
			if math.Abs(target-wantMean) > 1e-12 {
				t.Errorf("target_mean stat = %v, want %v", target, wantMean)
			}
		})
	}
}

func TestSimple_ImputedValuesBelowLimit(t *testing.T) {
	tbl, reg := simpleFixture(t)
	out, _, err := Run(tbl, reg, nil, DefaultSimpleParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range reg.CensoredRows(0) {
		v := out.At(r, 0)
		limit := reg.CellLimit(r, 0)
		if !(v > 0 && v < limit) {
			t.Errorf("row %d: imputed %v outside (0, %v)", r, v, limit)
		}
	}
}

func TestSimple_NoDuplicateImputedValues(t *testing.T) {
	tbl, reg := simpleFixture(t)
	out, _, err := Run(tbl, reg, nil, DefaultSimpleParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := map[float64]bool{}
	for _, r := range reg.CensoredRows(0) {
		v := out.At(r, 0)
		if seen[v] {
			t.Errorf("duplicate imputed value %v", v)
		}
		seen[v] = true
	}
}

func TestSimple_DeterministicPerSeed(t *testing.T) {
	tbl, reg := simpleFixture(t)
	first, _, err := Run(tbl, reg, nil, DefaultSimpleParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, _, err := Run(tbl, reg, nil, DefaultSimpleParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(tableRows(first), tableRows(second)); diff != "" {
		t.Errorf("same seed produced different tables (-first +second):\n%s", diff)
	}
}

func TestSimple_UncensoredColumnUnchanged(t *testing.T) {
	tbl, reg := simpleFixture(t)
	out, diag, err := Run(tbl, reg, nil, DefaultSimpleParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for r := 0; r < tbl.NumRows(); r++ {
		if out.At(r, 1) != tbl.At(r, 1) {
			t.Errorf("row %d: untouched column changed: %v -> %v", r, tbl.At(r, 1), out.At(r, 1))
		}
	}
	cd := diag.ColumnByName("Zn")
	if cd == nil || cd.NCensored != 0 {
		t.Errorf("Zn diagnostics = %+v, want zero censored", cd)
	}
}

func TestDedupe(t *testing.T) {
	values := []float64{0.4, 0.4, 0.4}
	dedupe(values)
	seen := map[float64]bool{}
	for _, v := range values {
		if seen[v] {
			t.Errorf("dedupe left duplicate %v", v)
		}
		seen[v] = true
		if math.Abs(v-0.4) > 1e-6 {
			t.Errorf("dedupe moved %v too far from 0.4", v)
		}
	}
}
