package session

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eutectik/lodimpute/internal/impute"
	"github.com/eutectik/lodimpute/internal/table"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNew(t *testing.T) {
	base := t.TempDir()

	named, err := New(base, "run_a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run_a"), named.Dir)
	assert.NotEmpty(t, named.ID)

	info, err := os.Stat(filepath.Join(named.Dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	stamped, err := New(base, "")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}_\d{6}$`, filepath.Base(stamped.Dir))
}

func TestWriteResult(t *testing.T) {
	s, err := New(t.TempDir(), "run")
	require.NoError(t, err)

	tbl, err := table.New([]string{"Cu", "Zn"}, [][]float64{
		{1.25, 45},
		{math.NaN(), 0.5},
	})
	require.NoError(t, err)

	path, err := s.WriteResult("beta", tbl)
	require.NoError(t, err)
	assert.Equal(t, "result_beta.csv", filepath.Base(path))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Cu", "Zn"}, records[0])
	assert.Equal(t, []string{"1.25", "45"}, records[1])
	assert.Equal(t, []string{"", "0.5"}, records[2], "NaN should serialise as empty")
}

func TestWriteDiagnostics(t *testing.T) {
	s, err := New(t.TempDir(), "run")
	require.NoError(t, err)

	tbl, err := table.New([]string{"Cu", "Zn"}, [][]float64{
		{10, 45},
		{20, 52},
		{30, 38},
		{math.NaN(), 61},
		{math.NaN(), 47},
	})
	require.NoError(t, err)
	reg := table.NewRegistry(tbl.NumRows(), []string{"Cu", "Zn"})
	require.NoError(t, reg.MarkCensored(3, 0, 5))
	require.NoError(t, reg.MarkCensored(4, 0, 5))

	_, diag, err := impute.Run(tbl, reg, nil, impute.DefaultBetaParams())
	require.NoError(t, err)

	path, err := s.WriteDiagnostics("beta", diag)
	require.NoError(t, err)
	assert.Equal(t, "log_beta.csv", filepath.Base(path))
	assert.Equal(t, filepath.Join(s.Dir, "logs"), filepath.Dir(path))

	records := readCSV(t, path)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"run_id", "column", "method", "stat", "value"}, records[0])

	stats := map[string]bool{}
	for _, rec := range records[1:] {
		require.Len(t, rec, 5)
		assert.Equal(t, diag.RunID, rec[0])
		assert.Equal(t, "beta", rec[2])
		if rec[1] == "Cu" {
			stats[rec[3]] = true
		}
	}
	assert.True(t, stats["n_censored"], "missing n_censored row")
	assert.True(t, stats["beta_mean"], "missing beta_mean row")
}

func TestList(t *testing.T) {
	base := t.TempDir()

	names, err := List(filepath.Join(base, "absent"))
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, n := range []string{"20240101_080000", "20240301_120000", "20240201_100000"} {
		_, err := New(base, n)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(base, "stray.txt"), []byte("x"), 0o644))

	names, err = List(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240301_120000", "20240201_100000", "20240101_080000"}, names)
}
