package interpretation

import (
	"cmp"
	"math"
	"slices"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
)

// RankedObservation is one entry of a descending ranking. Rank starts at 1.
type RankedObservation struct {
	Rank        int                `json:"rank"`
	Observation domain.Observation `json:"observation"`
	Column      string             `json:"column"`
	Value       float64            `json:"value"`
	Category    domain.Category    `json:"category"`
}

// TopNPolluted returns the n rows with the highest value of column, highest
// first. Ties keep their original row order. Rows where column is missing are
// never ranked. n <= 0 gives an empty ranking and n above the row count gives
// every ranked row.
//
// Category is the PM2.5 band of the row's PM2.5 value, which need not be the
// ranked column.
func TopNPolluted(t domain.Table, column string, n int) ([]RankedObservation, error) {
	if !t.HasColumn(column) {
		return nil, &domain.SchemaError{Column: column, Reason: "not in table"}
	}
	if n <= 0 {
		return []RankedObservation{}, nil
	}

	rows := make([]int, 0, t.Len())
	for i := range t.Len() {
		if !math.IsNaN(t.Value(column, i)) {
			rows = append(rows, i)
		}
	}
	slices.SortStableFunc(rows, func(a, b int) int {
		return cmp.Compare(t.Value(column, b), t.Value(column, a))
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	out := make([]RankedObservation, len(rows))
	for i, r := range rows {
		out[i] = RankedObservation{
			Rank:        i + 1,
			Observation: t.Row(r),
			Column:      column,
			Value:       t.Value(column, r),
			Category:    ClassifyAQI(t.Value(domain.PM25, r)),
		}
	}
	return out, nil
}

// TopPollutedDays ranks calendar days by their daily mean of column.
func TopPollutedDays(t domain.Table, column string, n int) ([]RankedObservation, error) {
	return TopNPolluted(processing.ResampleDaily(t), column, n)
}

// CorrelationPair is the correlation of a pollutant with a reference one.
type CorrelationPair struct {
	Column      string  `json:"column"`
	Coefficient float64 `json:"coefficient"`
}

// StrongestCorrelations returns up to k pollutants ordered by descending
// correlation with ref, excluding ref itself. Ties keep matrix order.
func StrongestCorrelations(m processing.CorrelationMatrix, ref string, k int) []CorrelationPair {
	if k <= 0 {
		return []CorrelationPair{}
	}
	pairs := make([]CorrelationPair, 0, len(m.Columns()))
	for _, c := range m.Columns() {
		if c == ref {
			continue
		}
		r := m.At(ref, c)
		if math.IsNaN(r) {
			continue
		}
		pairs = append(pairs, CorrelationPair{Column: c, Coefficient: r})
	}
	slices.SortStableFunc(pairs, func(a, b CorrelationPair) int {
		return cmp.Compare(b.Coefficient, a.Coefficient)
	})
	if len(pairs) > k {
		pairs = pairs[:k]
	}
	return pairs
}
