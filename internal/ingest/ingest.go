// Package ingest turns raw geochemical CSV exports into the table model the
// imputation engines consume: it loads text cells, recognises the lab's
// "<value" below-detection notation to build the LOD registry and censoring
// mask, and splits planar coordinate columns (UTM/easting-northing naming)
// from the analyte columns.
package ingest

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/eutectik/lodimpute/internal/table"
)

// lodPattern matches a below-detection cell such as "<5" or "< 0.25".
var lodPattern = regexp.MustCompile(`^<\s*([0-9]+(?:\.[0-9]+)?)$`)

// missingTokens are the cell spellings treated as missing values.
var missingTokens = map[string]bool{
	"":     true,
	"null": true,
	"NULL": true,
	"NaN":  true,
	"nan":  true,
}

// RawTable is a loaded CSV before numeric interpretation: trimmed header
// names plus string cells.
type RawTable struct {
	Cols  []string
	Cells [][]string
}

// LoadCSV reads a CSV file with a header row. Column names are trimmed;
// cell whitespace is trimmed; rows must match the header width.
func LoadCSV(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: reading %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("ingest: %s has no header row", path)
	}

	cols := make([]string, len(records[0]))
	for i, c := range records[0] {
		cols[i] = strings.TrimSpace(c)
	}
	cells := make([][]string, len(records)-1)
	for i, rec := range records[1:] {
		row := make([]string, len(rec))
		for j, v := range rec {
			row[j] = strings.TrimSpace(v)
		}
		cells[i] = row
	}
	return &RawTable{Cols: cols, Cells: cells}, nil
}

// coordinateAxis classifies a column name as an X axis, Y axis, or neither.
func coordinateAxis(name string) (axis byte, ok bool) {
	switch strings.ToUpper(name) {
	case "UTM_E", "EASTING":
		return 'x', true
	case "UTM_N", "NORTHING":
		return 'y', true
	}
	return 0, false
}

// SplitCoordinates separates coordinate columns from the analyte columns.
// Recognised names (case-insensitive): UTM_E/EASTING for X, UTM_N/NORTHING
// for Y. When no coordinate columns exist the returned Coordinates is nil;
// when only one axis exists, or a coordinate cell is not numeric, an error
// is returned, since a partial coordinate set cannot feed the spatial
// engine.
func SplitCoordinates(raw *RawTable) (*RawTable, *table.Coordinates, error) {
	xCol, yCol := -1, -1
	var geoCols []int
	for i, name := range raw.Cols {
		axis, ok := coordinateAxis(name)
		switch {
		case ok && axis == 'x':
			xCol = i
		case ok && axis == 'y':
			yCol = i
		default:
			geoCols = append(geoCols, i)
		}
	}

	geo := &RawTable{}
	for _, i := range geoCols {
		geo.Cols = append(geo.Cols, raw.Cols[i])
	}
	geo.Cells = make([][]string, len(raw.Cells))
	for r, row := range raw.Cells {
		out := make([]string, 0, len(geoCols))
		for _, i := range geoCols {
			out = append(out, row[i])
		}
		geo.Cells[r] = out
	}

	if xCol < 0 && yCol < 0 {
		return geo, nil, nil
	}
	if xCol < 0 || yCol < 0 {
		return nil, nil, fmt.Errorf("ingest: found only one coordinate axis (need both easting and northing)")
	}

	x := make([]float64, len(raw.Cells))
	y := make([]float64, len(raw.Cells))
	for r, row := range raw.Cells {
		var err error
		if x[r], err = strconv.ParseFloat(row[xCol], 64); err != nil {
			return nil, nil, fmt.Errorf("ingest: row %d: coordinate %q is not numeric", r, row[xCol])
		}
		if y[r], err = strconv.ParseFloat(row[yCol], 64); err != nil {
			return nil, nil, fmt.Errorf("ingest: row %d: coordinate %q is not numeric", r, row[yCol])
		}
	}
	coords, err := table.NewCoordinates(x, y)
	if err != nil {
		return nil, nil, err
	}
	return geo, coords, nil
}

// DetectLOD interprets the raw cells: numeric cells become values, missing
// tokens become NaN, and "<value" cells become censored NaN cells with the
// value recorded as that cell's detection limit. Columns containing any
// other text are excluded from the numeric table and returned by name so
// callers can report them.
func DetectLOD(raw *RawTable) (*table.Table, *table.Registry, []string, error) {
	type cellKind int
	const (
		kindValue cellKind = iota
		kindMissing
		kindCensored
	)

	numeric := make([]bool, len(raw.Cols))
	for c := range raw.Cols {
		numeric[c] = true
		for _, row := range raw.Cells {
			s := row[c]
			if missingTokens[s] || lodPattern.MatchString(s) {
				continue
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				numeric[c] = false
				break
			}
		}
	}

	var cols []string
	var colIdx []int
	var skipped []string
	for c, name := range raw.Cols {
		if numeric[c] {
			cols = append(cols, name)
			colIdx = append(colIdx, c)
		} else {
			skipped = append(skipped, name)
		}
	}
	if len(cols) == 0 {
		return nil, nil, skipped, fmt.Errorf("ingest: no numeric columns found")
	}

	parse := func(s string) (cellKind, float64, error) {
		if missingTokens[s] {
			return kindMissing, math.NaN(), nil
		}
		if m := lodPattern.FindStringSubmatch(s); m != nil {
			limit, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return 0, 0, err
			}
			return kindCensored, limit, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		return kindValue, v, err
	}

	rows := make([][]float64, len(raw.Cells))
	for r := range raw.Cells {
		rows[r] = make([]float64, len(cols))
	}
	reg := table.NewRegistry(len(raw.Cells), cols)
	for j, c := range colIdx {
		for r, row := range raw.Cells {
			kind, v, err := parse(row[c])
			if err != nil {
				return nil, nil, skipped, fmt.Errorf("ingest: cell (%d,%s): %w", r, cols[j], err)
			}
			switch kind {
			case kindValue:
				rows[r][j] = v
			case kindMissing:
				rows[r][j] = math.NaN()
			case kindCensored:
				rows[r][j] = math.NaN()
				if err := reg.MarkCensored(r, j, v); err != nil {
					return nil, nil, skipped, err
				}
			}
		}
	}

	t, err := table.New(cols, rows)
	if err != nil {
		return nil, nil, skipped, err
	}
	return t, reg, skipped, nil
}
