package processing

import (
	"math"
	"slices"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for one column. Std is the sample
// standard deviation (n-1 denominator) and is 0 for a single sample.
type Summary struct {
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summarize computes a Summary for each of columns, or for every pollutant
// column when columns is empty.
func Summarize(t domain.Table, columns []string) (map[string]Summary, error) {
	cols, err := resolveColumns(t, columns)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Summary, len(cols))
	for _, name := range cols {
		col, _ := t.Column(name)
		x := present(col)
		if len(x) == 0 {
			return nil, &domain.InsufficientDataError{Columns: []string{name}, Samples: 0, Need: 1}
		}
		slices.Sort(x)

		s := Summary{
			Count:   len(x),
			Missing: len(col) - len(x),
			Mean:    stat.Mean(x, nil),
			Median:  median(x),
			Min:     floats.Min(x),
			Max:     floats.Max(x),
		}
		if len(x) > 1 {
			s.Std = stat.StdDev(x, nil)
		}
		out[name] = s
	}
	return out, nil
}

// median of sorted x, averaging the middle pair for even lengths.
func median(x []float64) float64 {
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}

// CorrelationMatrix is a symmetric matrix of Pearson coefficients. Pairs
// involving a constant column are NaN.
type CorrelationMatrix struct {
	columns  []string
	index    map[string]int
	values   [][]float64
	constant []string
}

// Constant lists the columns whose observed values never vary, in row order.
func (m CorrelationMatrix) Constant() []string { return slices.Clone(m.constant) }

// Columns returns the matrix labels in row order.
func (m CorrelationMatrix) Columns() []string { return slices.Clone(m.columns) }

// At returns the coefficient for (a, b), or NaN when either label is unknown.
func (m CorrelationMatrix) At(a, b string) float64 {
	i, ok := m.index[a]
	if !ok {
		return math.NaN()
	}
	j, ok := m.index[b]
	if !ok {
		return math.NaN()
	}
	return m.values[i][j]
}

// Correlate computes pairwise Pearson correlation over rows where both columns
// are present. Columns default to every pollutant column. A pair with fewer
// than two joint samples is an InsufficientDataError. A pair without variance
// on either side has no defined coefficient and is stored as NaN.
func Correlate(t domain.Table, columns []string) (CorrelationMatrix, error) {
	cols, err := resolveColumns(t, columns)
	if err != nil {
		return CorrelationMatrix{}, err
	}
	if len(cols) == 0 {
		return CorrelationMatrix{}, &domain.InsufficientDataError{Need: 1, Reason: "no columns to correlate"}
	}

	m := CorrelationMatrix{
		columns: cols,
		index:   make(map[string]int, len(cols)),
		values:  make([][]float64, len(cols)),
	}
	data := make([][]float64, len(cols))
	for i, name := range cols {
		m.index[name] = i
		m.values[i] = make([]float64, len(cols))
		data[i], _ = t.Column(name)
		if !hasVariance(present(data[i])) {
			m.constant = append(m.constant, name)
		}
	}

	for i := range cols {
		m.values[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			r, err := pearson(cols[i], cols[j], data[i], data[j])
			if err != nil {
				return CorrelationMatrix{}, err
			}
			m.values[i][j] = r
			m.values[j][i] = r
		}
	}
	return m, nil
}

func pearson(nameA, nameB string, a, b []float64) (float64, error) {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 {
		return 0, &domain.InsufficientDataError{Columns: []string{nameA, nameB}, Samples: len(x), Need: 2}
	}
	if !hasVariance(x) || !hasVariance(y) {
		return math.NaN(), nil
	}
	r := stat.Correlation(x, y, nil)
	return math.Max(-1, math.Min(1, r)), nil
}

// resolveColumns defaults to the pollutant columns of t and rejects unknown
// names.
func resolveColumns(t domain.Table, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return domain.PollutantColumns(t), nil
	}
	for _, name := range columns {
		if !t.HasColumn(name) {
			return nil, &domain.SchemaError{Column: name, Reason: "not in table"}
		}
	}
	return slices.Clone(columns), nil
}
