// Package export writes analysis tables to CSV and XLSX files.
package export

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// File names written by the pipeline.
const (
	RankingFile  = "top_polluted.csv"
	WorkbookFile = "report.xlsx"
)

// RankingFrame lays a ranking out as a dataframe: rank, timestamp, one column
// per pollutant and the AQI category. Missing pollutant cells are NaN.
func RankingFrame(ranking []interpretation.RankedObservation, pollutants []string) dataframe.DataFrame {
	ranks := make([]int, len(ranking))
	stamps := make([]string, len(ranking))
	cats := make([]string, len(ranking))
	values := make(map[string][]float64, len(pollutants))
	for _, p := range pollutants {
		values[p] = make([]float64, len(ranking))
	}

	for i, r := range ranking {
		ranks[i] = r.Rank
		stamps[i] = r.Observation.Timestamp.Format(time.RFC3339)
		cats[i] = r.Category.String()
		for _, p := range pollutants {
			v, ok := r.Observation.Value(p)
			if !ok {
				v = math.NaN()
			}
			values[p][i] = v
		}
	}

	cols := []series.Series{
		series.New(ranks, series.Int, "rank"),
		series.New(stamps, series.String, "timestamp"),
	}
	for _, p := range pollutants {
		cols = append(cols, series.New(values[p], series.Float, p))
	}
	cols = append(cols, series.New(cats, series.String, "aqi_category"))
	return dataframe.New(cols...)
}

// RankingCSV writes the ranking to path as CSV with a header row.
func RankingCSV(path string, ranking []interpretation.RankedObservation, pollutants []string) (err error) {
	df := RankingFrame(ranking, pollutants)
	if df.Err != nil {
		return fmt.Errorf("build ranking frame: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ranking csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close ranking csv: %w", cerr)
		}
	}()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write ranking csv: %w", err)
	}
	return nil
}

// RankingPollutants returns the pollutants observed in any ranked row, in
// canonical order.
func RankingPollutants(ranking []interpretation.RankedObservation) []string {
	seen := map[string]bool{}
	for _, r := range ranking {
		for name := range r.Observation.Values {
			seen[name] = true
		}
	}
	var out []string
	for _, p := range domain.Pollutants() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
