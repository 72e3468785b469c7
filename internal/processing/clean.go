// Package processing turns a loaded air-quality table into an analysis-ready
// one and computes the aggregate statistics the rest of the pipeline reports.
//
// Every function takes a domain.Table by value and returns a new Table; inputs
// are never modified.
package processing

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ImputePolicy selects how gaps in secondary pollutant columns are filled.
type ImputePolicy string

const (
	// ImputeForwardFill copies the last observed value forward. Gaps before the
	// first observation take the column mean.
	ImputeForwardFill ImputePolicy = "ffill"
	// ImputeMean replaces every gap with the column mean.
	ImputeMean ImputePolicy = "mean"
)

// CleanOptions configures Clean.
type CleanOptions struct {
	// Target is the pollutant whose missing rows are dropped. Defaults to PM2.5.
	Target string
	// Impute defaults to ImputeForwardFill.
	Impute ImputePolicy
	// OutlierFactor caps values above Q3 + factor*IQR. Zero disables capping.
	OutlierFactor float64
}

// CleanStats describes what Clean changed.
type CleanStats struct {
	RowsIn      int
	RowsOut     int
	RowsDropped int
	Imputed     map[string]int // filled cells per column
	Clipped     map[string]int // clamped or capped cells per column
	// EmptyColumns lists secondary columns with no observed values. They are
	// left missing.
	EmptyColumns []string
}

// TotalImputed sums Imputed over all columns.
func (s CleanStats) TotalImputed() int { return sumCounts(s.Imputed) }

// TotalClipped sums Clipped over all columns.
func (s CleanStats) TotalClipped() int { return sumCounts(s.Clipped) }

func sumCounts(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Clean applies the cleaning policy, in order:
//
//  1. rows are stable-sorted by timestamp;
//  2. rows missing the target pollutant are dropped;
//  3. gaps in the other pollutant columns are imputed per opts.Impute;
//  4. negative concentrations are clamped to 0 and, when opts.OutlierFactor is
//     positive, values above the column's Q3 + factor*IQR fence are capped.
//
// Clean never adds rows and never leaves a missing value in the target column.
func Clean(t domain.Table, opts CleanOptions) (domain.Table, CleanStats, error) {
	if opts.Target == "" {
		opts.Target = domain.PM25
	}
	if opts.Impute == "" {
		opts.Impute = ImputeForwardFill
	}
	if opts.Impute != ImputeForwardFill && opts.Impute != ImputeMean {
		return domain.Table{}, CleanStats{}, fmt.Errorf("unknown impute policy %q", opts.Impute)
	}
	if opts.OutlierFactor < 0 {
		return domain.Table{}, CleanStats{}, fmt.Errorf("outlier factor must be >= 0, got %g", opts.OutlierFactor)
	}
	if !t.HasColumn(opts.Target) {
		return domain.Table{}, CleanStats{}, &domain.SchemaError{Column: opts.Target, Reason: "target pollutant not in table"}
	}

	stats := CleanStats{
		RowsIn:  t.Len(),
		Imputed: map[string]int{},
		Clipped: map[string]int{},
	}

	out := t.Select(keepRows(t, opts.Target))
	stats.RowsOut = out.Len()
	stats.RowsDropped = stats.RowsIn - stats.RowsOut

	var err error
	for _, name := range domain.PollutantColumns(out) {
		col, _ := out.Column(name)

		if name != opts.Target {
			filled, ok := impute(col, opts.Impute)
			if !ok && len(col) > 0 {
				stats.EmptyColumns = append(stats.EmptyColumns, name)
			}
			stats.Imputed[name] = filled
		}

		stats.Clipped[name] = bound(col, opts.OutlierFactor)

		if out, err = out.WithColumn(name, col); err != nil {
			return domain.Table{}, CleanStats{}, err
		}
	}

	return out, stats, nil
}

// keepRows returns the row indices in timestamp order, skipping rows where
// target is missing. Equal timestamps keep their file order.
func keepRows(t domain.Table, target string) []int {
	rows := make([]int, 0, t.Len())
	for i := range t.Len() {
		if !math.IsNaN(t.Value(target, i)) {
			rows = append(rows, i)
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return t.Timestamp(rows[a]).Before(t.Timestamp(rows[b]))
	})
	return rows
}

// impute fills NaN cells of col in place and returns how many it filled. It
// reports false when the column has no observed value to fill from.
func impute(col []float64, policy ImputePolicy) (int, bool) {
	observed := present(col)
	if len(observed) == 0 {
		return 0, false
	}
	mean := stat.Mean(observed, nil)

	filled := 0
	last := math.NaN()
	for i, v := range col {
		if !math.IsNaN(v) {
			last = v
			continue
		}
		switch {
		case policy == ImputeForwardFill && !math.IsNaN(last):
			col[i] = last
		default:
			col[i] = mean
		}
		filled++
	}
	return filled, true
}

// bound clamps negatives to 0 and caps values above the IQR fence when factor
// is positive. It returns the number of cells changed.
func bound(col []float64, factor float64) int {
	changed := 0
	for i, v := range col {
		if v < 0 {
			col[i] = 0
			changed++
		}
	}
	if factor <= 0 {
		return changed
	}

	fence, ok := upperFence(col, factor)
	if !ok {
		return changed
	}
	for i, v := range col {
		if v > fence {
			col[i] = fence
			changed++
		}
	}
	return changed
}

// upperFence returns Q3 + factor*(Q3-Q1) over the non-missing values of col.
func upperFence(col []float64, factor float64) (float64, bool) {
	x := present(col)
	if len(x) < 2 {
		return 0, false
	}
	slices.Sort(x)
	q1 := stat.Quantile(0.25, stat.Empirical, x, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, x, nil)
	return q3 + factor*(q3-q1), true
}

// present returns the non-NaN values of col in a new slice.
func present(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// hasVariance reports whether x holds at least two distinct values.
func hasVariance(x []float64) bool {
	if len(x) < 2 {
		return false
	}
	return floats.Max(x) != floats.Min(x)
}
