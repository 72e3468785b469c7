// Package csvsource loads air-quality CSV files into a validated domain.Table.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// TimestampColumn is the canonical name of the time column after header normalization.
const TimestampColumn = "timestamp"

// timestampLayouts are tried in order; the first that parses wins.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// headerAliases maps normalized header spellings to canonical column names.
var headerAliases = map[string]string{
	"timestamp": TimestampColumn,
	"date":      TimestampColumn,
	"datetime":  TimestampColumn,
	"time":      TimestampColumn,
	"pm2.5":     domain.PM25,
	"pm2_5":     domain.PM25,
	"pm25":      domain.PM25,
}

// missingTokens are cell values treated as a missing measurement rather than a parse error.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
}

// Load opens path and reads it as an air-quality table. The file is closed on
// every return path.
func Load(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses CSV data with a header row. Required columns are the timestamp
// plus domain.RequiredPollutants; optional pollutants are kept when present and
// any other column is ignored.
func Read(r io.Reader) (domain.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, &domain.SchemaError{Reason: "empty file: no header row"}
	}
	if err != nil {
		return domain.Table{}, &domain.ParseError{Line: 1, Err: err}
	}

	layout, err := resolveHeader(header)
	if err != nil {
		return domain.Table{}, err
	}

	var timestamps []time.Time
	values := make(map[string][]float64, len(layout.columns))

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, &domain.ParseError{Line: line, Err: err}
		}
		if len(rec) != len(header) {
			return domain.Table{}, &domain.ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(rec)),
			}
		}

		ts, err := parseTimestamp(rec[layout.timestamp])
		if err != nil {
			return domain.Table{}, &domain.ParseError{Line: line, Column: TimestampColumn, Value: rec[layout.timestamp], Err: err}
		}
		timestamps = append(timestamps, ts)

		for _, c := range layout.columns {
			v, err := parseValue(rec[c.index])
			if err != nil {
				return domain.Table{}, &domain.ParseError{Line: line, Column: c.name, Value: rec[c.index], Err: err}
			}
			values[c.name] = append(values[c.name], v)
		}
	}

	table := domain.NewTable(timestamps)
	for _, c := range layout.columns {
		col := values[c.name]
		if col == nil {
			col = []float64{}
		}
		if table, err = table.WithColumn(c.name, col); err != nil {
			return domain.Table{}, err
		}
	}
	return table, nil
}

type column struct {
	name  string
	index int
}

type headerLayout struct {
	timestamp int
	columns   []column // pollutant columns in canonical order
}

// resolveHeader maps header cells to canonical names and checks the schema.
func resolveHeader(header []string) (headerLayout, error) {
	positions := make(map[string]int, len(header))
	var duplicates []string
	for i, h := range header {
		name := NormalizeHeader(h)
		if name == "" {
			continue
		}
		if _, seen := positions[name]; seen {
			if !canonical(name) {
				continue
			}
			if !slices.Contains(duplicates, name) {
				duplicates = append(duplicates, name)
			}
			continue
		}
		positions[name] = i
	}

	var missing []string
	if _, ok := positions[TimestampColumn]; !ok {
		missing = append(missing, TimestampColumn)
	}
	for _, p := range domain.RequiredPollutants {
		if _, ok := positions[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 || len(duplicates) > 0 {
		return headerLayout{}, &domain.SchemaError{Missing: missing, Duplicate: duplicates}
	}

	layout := headerLayout{timestamp: positions[TimestampColumn]}
	for _, p := range domain.Pollutants() {
		if idx, ok := positions[p]; ok {
			layout.columns = append(layout.columns, column{name: p, index: idx})
		}
	}
	return layout, nil
}

// canonical reports whether name is a column the reader keeps. Repeats of
// any other column are ignored along with the column itself.
func canonical(name string) bool {
	return name == TimestampColumn || domain.IsPollutant(name)
}

// NormalizeHeader folds a header cell to its canonical column name: Unicode
// compatibility forms are flattened (so "NO₂" becomes "no2"), surrounding
// space and a UTF-8 BOM are stripped, and known aliases are resolved.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(norm.NFKC.String(h)))
	h = strings.ReplaceAll(h, " ", "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

// parseValue returns NaN for a missing token and an error for anything that is
// neither missing nor a finite number.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsInf(v, 0) {
		return 0, errors.New("value out of range")
	}
	return v, nil
}
