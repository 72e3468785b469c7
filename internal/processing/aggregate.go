package processing

import (
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
)

// ResampleDaily collapses the table to one row per calendar day holding the
// mean of each pollutant column. Timestamps are midnight in the source
// location; a day with no observed value for a column is missing there.
// Non-pollutant columns are not carried over.
//
// Rows are grouped by their local calendar date, so timestamps carrying equal
// offsets from separately parsed zones land on the same day.
func ResampleDaily(t domain.Table) domain.Table {
	cols := domain.PollutantColumns(t)

	var days []time.Time
	dayIndex := map[calendarDate]int{}
	rowDay := make([]int, t.Len())
	for i, ts := range t.Timestamps() {
		key := dateOf(ts)
		idx, ok := dayIndex[key]
		if !ok {
			idx = len(days)
			dayIndex[key] = idx
			days = append(days, time.Date(key.year, key.month, key.day, 0, 0, 0, 0, ts.Location()))
		}
		rowDay[i] = idx
	}

	out := domain.NewTable(days)
	for _, name := range cols {
		sums := make([]float64, len(days))
		counts := make([]int, len(days))
		for i := range t.Len() {
			if v := t.Value(name, i); !math.IsNaN(v) {
				sums[rowDay[i]] += v
				counts[rowDay[i]]++
			}
		}
		means := make([]float64, len(days))
		for d := range days {
			if counts[d] == 0 {
				means[d] = math.NaN()
				continue
			}
			means[d] = sums[d] / float64(counts[d])
		}
		// Lengths always match the day count.
		out, _ = out.WithColumn(name, means)
	}

	return sortByTime(out)
}

type calendarDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(ts time.Time) calendarDate {
	y, m, d := ts.Date()
	return calendarDate{year: y, month: m, day: d}
}

func sortByTime(t domain.Table) domain.Table {
	ts := t.Timestamps()
	if slices.IsSortedFunc(ts, time.Time.Compare) {
		return t
	}
	rows := make([]int, len(ts))
	for i := range rows {
		rows[i] = i
	}
	slices.SortStableFunc(rows, func(a, b int) int { return ts[a].Compare(ts[b]) })
	return t.Select(rows)
}

// HourlyGrid is a weekday x hour grid of mean concentrations. Weekday 0 is
// Monday. Cells with no data are NaN in Mean and 0 in Count.
type HourlyGrid struct {
	Column string
	Mean   [7][24]float64
	Count  [7][24]int
}

// HourlyProfile averages column by weekday and hour of day.
func HourlyProfile(t domain.Table, column string) (HourlyGrid, error) {
	if !t.HasColumn(column) {
		return HourlyGrid{}, &domain.SchemaError{Column: column, Reason: "not in table"}
	}

	p := HourlyGrid{Column: column}
	var sums [7][24]float64
	samples := 0
	for i := range t.Len() {
		v := t.Value(column, i)
		if math.IsNaN(v) {
			continue
		}
		ts := t.Timestamp(i)
		d, h := mondayIndex(ts.Weekday()), ts.Hour()
		sums[d][h] += v
		p.Count[d][h]++
		samples++
	}
	if samples == 0 {
		return HourlyGrid{}, &domain.InsufficientDataError{Columns: []string{column}, Samples: 0, Need: 1}
	}

	for d := range 7 {
		for h := range 24 {
			if p.Count[d][h] == 0 {
				p.Mean[d][h] = math.NaN()
				continue
			}
			p.Mean[d][h] = sums[d][h] / float64(p.Count[d][h])
		}
	}
	return p, nil
}
