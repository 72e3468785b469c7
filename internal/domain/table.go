package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Table is a columnar set of observations: one timestamp per row plus named
// float64 columns of equal length. Missing cells are NaN.
//
// A Table is treated as an immutable value. Every method that changes shape or
// content returns a new Table and leaves the receiver untouched.
type Table struct {
	timestamps []time.Time
	names      []string
	columns    map[string][]float64
}

// Observation is a single-row view of a Table.
type Observation struct {
	// Index is the row position in the table the observation was taken from.
	Index     int                `json:"index"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"` // missing cells are omitted
}

// Value returns the named value and whether it was present.
func (o Observation) Value(name string) (float64, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// NewTable creates a table with the given timestamps and no value columns.
func NewTable(timestamps []time.Time) Table {
	return Table{
		timestamps: slices.Clone(timestamps),
		names:      []string{},
		columns:    map[string][]float64{},
	}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.timestamps) }

// Columns returns the value column names in insertion order.
func (t Table) Columns() []string { return slices.Clone(t.names) }

// HasColumn reports whether the table has a value column called name.
func (t Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column.
func (t Table) Column(name string) ([]float64, bool) {
	col, ok := t.columns[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(col), true
}

// Timestamps returns a copy of the timestamp column.
func (t Table) Timestamps() []time.Time { return slices.Clone(t.timestamps) }

// Timestamp returns the timestamp of row i.
func (t Table) Timestamp(i int) time.Time { return t.timestamps[i] }

// Value returns the cell at (name, i), or NaN when the column does not exist.
func (t Table) Value(name string, i int) float64 {
	col, ok := t.columns[name]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Row returns an Observation for row i. Missing cells are omitted from Values.
func (t Table) Row(i int) Observation {
	values := make(map[string]float64, len(t.names))
	for _, name := range t.names {
		if v := t.columns[name][i]; !math.IsNaN(v) {
			values[name] = v
		}
	}
	return Observation{Index: i, Timestamp: t.timestamps[i], Values: values}
}

// WithColumn returns a copy of the table with the named column added, or
// replaced in place if it already exists.
func (t Table) WithColumn(name string, values []float64) (Table, error) {
	if name == "" {
		return Table{}, fmt.Errorf("column name must not be empty")
	}
	if len(values) != t.Len() {
		return Table{}, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.Len())
	}
	out := t.Clone()
	if !out.HasColumn(name) {
		out.names = append(out.names, name)
	}
	out.columns[name] = slices.Clone(values)
	return out, nil
}

// Drop returns a copy of the table without the named columns. Unknown names
// are ignored.
func (t Table) Drop(names ...string) Table {
	out := t.Clone()
	for _, name := range names {
		delete(out.columns, name)
	}
	kept := make([]string, 0, len(out.names))
	for _, name := range out.names {
		if _, ok := out.columns[name]; ok {
			kept = append(kept, name)
		}
	}
	out.names = kept
	return out
}

// Select returns a new table holding the given rows in the given order.
func (t Table) Select(rows []int) Table {
	ts := make([]time.Time, len(rows))
	for i, r := range rows {
		ts[i] = t.timestamps[r]
	}
	out := NewTable(ts)
	out.names = slices.Clone(t.names)
	for _, name := range t.names {
		src := t.columns[name]
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = src[r]
		}
		out.columns[name] = col
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := NewTable(t.timestamps)
	out.names = slices.Clone(t.names)
	if out.names == nil {
		out.names = []string{}
	}
	for name, col := range t.columns {
		out.columns[name] = slices.Clone(col)
	}
	return out
}
