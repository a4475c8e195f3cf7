// Package session organises the on-disk outputs of an imputation run: a
// timestamped directory per invocation holding one result CSV per method and
// a logs/ subdirectory with the flattened diagnostics of each method.
package session

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eutectik/lodimpute/internal/impute"
	"github.com/eutectik/lodimpute/internal/table"
)

// Session is one output directory under the base output path.
type Session struct {
	// ID uniquely identifies the run across sessions.
	ID string
	// Dir is the session directory, created on New.
	Dir string
}

// New creates a session directory under baseDir. An empty name uses the
// conventional YYYYMMDD_HHMMSS timestamp.
func New(baseDir, name string) (*Session, error) {
	if name == "" {
		name = time.Now().Format("20060102_150405")
	}
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Session{ID: uuid.NewString(), Dir: dir}, nil
}

// WriteResult writes an imputed table as result_<method>.csv in the session
// directory. NaN cells (true missingness) are written as empty cells.
func (s *Session) WriteResult(method string, t *table.Table) (string, error) {
	path := filepath.Join(s.Dir, fmt.Sprintf("result_%s.csv", method))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns()); err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	record := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := 0; c < t.NumCols(); c++ {
			v := t.At(r, c)
			if math.IsNaN(v) {
				record[c] = ""
			} else {
				record[c] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("session: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	return path, nil
}

// WriteDiagnostics writes a run's flattened diagnostics as
// logs/log_<method>.csv: one row per (column, statistic).
func (s *Session) WriteDiagnostics(method string, d *impute.Diagnostics) (string, error) {
	path := filepath.Join(s.Dir, "logs", fmt.Sprintf("log_%s.csv", method))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"run_id", "column", "method", "stat", "value"}); err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	for _, row := range d.Rows() {
		rec := []string{d.RunID, row.Column, row.Method, row.Stat, strconv.FormatFloat(row.Value, 'g', -1, 64)}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("session: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	return path, nil
}

// List returns the session directory names under baseDir, newest first by
// name (timestamped names sort chronologically).
func List(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
