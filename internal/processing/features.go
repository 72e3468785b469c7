package processing

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Calendar columns added by DeriveFeatures.
const (
	ColYear    = "year"
	ColMonth   = "month"
	ColDay     = "day"
	ColHour    = "hour"
	ColWeekday = "weekday" // 0 = Monday
)

var calendarColumns = []string{ColYear, ColMonth, ColDay, ColHour, ColWeekday}

// RollingColumn names the rolling-mean column derived from col.
func RollingColumn(col string, window int) string {
	return fmt.Sprintf("%s_roll%d", col, window)
}

// DerivedColumns returns every column name DeriveFeatures may add for window.
// Dropping them from a derived table restores the input.
func DerivedColumns(window int) []string {
	out := make([]string, 0, len(domain.Pollutants())+len(calendarColumns))
	for _, p := range domain.Pollutants() {
		out = append(out, RollingColumn(p, window))
	}
	return append(out, calendarColumns...)
}

// DeriveFeatures returns a new table with a trailing rolling mean for every
// pollutant column plus calendar fields. The rolling mean at row i covers rows
// max(0, i-window+1)..i, skips missing cells, and is missing only when every
// cell in the window is.
func DeriveFeatures(t domain.Table, window int) (domain.Table, error) {
	if window < 1 {
		return domain.Table{}, fmt.Errorf("rolling window must be >= 1, got %d", window)
	}
	for _, name := range DerivedColumns(window) {
		if t.HasColumn(name) {
			return domain.Table{}, &domain.SchemaError{Column: name, Reason: "derived column already present"}
		}
	}

	out := t.Clone()
	var err error
	for _, name := range domain.PollutantColumns(t) {
		col, _ := t.Column(name)
		if out, err = out.WithColumn(RollingColumn(name, window), rollingMean(col, window)); err != nil {
			return domain.Table{}, err
		}
	}

	cal := calendarFields(t.Timestamps())
	for _, name := range calendarColumns {
		if out, err = out.WithColumn(name, cal[name]); err != nil {
			return domain.Table{}, err
		}
	}
	return out, nil
}

// rollingMean computes a trailing mean with a minimum of one observed value.
// Each window is summed afresh so large and small magnitudes do not cancel.
func rollingMean(col []float64, window int) []float64 {
	out := make([]float64, len(col))
	present := make([]float64, 0, window)
	for i := range col {
		present = present[:0]
		for _, v := range col[max(0, i-window+1) : i+1] {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Sum(present) / float64(len(present))
	}
	return out
}

func calendarFields(ts []time.Time) map[string][]float64 {
	out := make(map[string][]float64, len(calendarColumns))
	for _, name := range calendarColumns {
		out[name] = make([]float64, len(ts))
	}
	for i, t := range ts {
		out[ColYear][i] = float64(t.Year())
		out[ColMonth][i] = float64(t.Month())
		out[ColDay][i] = float64(t.Day())
		out[ColHour][i] = float64(t.Hour())
		out[ColWeekday][i] = float64(mondayIndex(t.Weekday()))
	}
	return out
}

// mondayIndex maps time.Weekday to 0 = Monday .. 6 = Sunday.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
