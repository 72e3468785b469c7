package export

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetSummary      = "Summary"
	SheetCorrelation  = "Correlation"
	SheetTopPolluted  = "TopPolluted"
	SheetDistribution = "Distribution"
	SheetHealth       = "HealthGuide"
)

// WorkbookData is the content of the XLSX report.
type WorkbookData struct {
	RunID        string
	GeneratedAt  time.Time
	Summary      map[string]processing.Summary
	Correlation  processing.CorrelationMatrix
	TopPolluted  []interpretation.RankedObservation
	Distribution []interpretation.CategoryCount
	Health       []interpretation.HealthGuidance
}

// Workbook writes data to path as an XLSX file with one sheet per table.
func Workbook(path string, data WorkbookData) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{SheetCorrelation, SheetTopPolluted, SheetDistribution, SheetHealth} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	writers := []struct {
		sheet string
		rows  [][]any
	}{
		{SheetSummary, summaryRows(data)},
		{SheetCorrelation, correlationRows(data.Correlation)},
		{SheetTopPolluted, topRows(data.TopPolluted)},
		{SheetDistribution, distributionRows(data.Distribution)},
		{SheetHealth, healthRows(data.Health)},
	}
	for _, w := range writers {
		if err := writeRows(f, w.sheet, w.rows); err != nil {
			return fmt.Errorf("write sheet %s: %w", w.sheet, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellValue writes missing numbers as empty cells; XLSX has no NaN.
func cellValue(v any) any {
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return ""
	}
	return v
}

func summaryRows(data WorkbookData) [][]any {
	rows := [][]any{
		{"run_id", data.RunID},
		{"generated_at", data.GeneratedAt.Format(time.RFC3339)},
		{},
		{"pollutant", "count", "missing", "mean", "median", "std", "min", "max"},
	}
	for _, p := range domain.Pollutants() {
		s, ok := data.Summary[p]
		if !ok {
			continue
		}
		rows = append(rows, []any{domain.DisplayName(p), s.Count, s.Missing, s.Mean, s.Median, s.Std, s.Min, s.Max})
	}
	return rows
}

func correlationRows(m processing.CorrelationMatrix) [][]any {
	cols := m.Columns()
	header := []any{""}
	for _, c := range cols {
		header = append(header, domain.DisplayName(c))
	}
	rows := [][]any{header}
	for _, a := range cols {
		row := []any{domain.DisplayName(a)}
		for _, b := range cols {
			if r := m.At(a, b); !math.IsNaN(r) {
				row = append(row, r)
				continue
			}
			row = append(row, nil)
		}
		rows = append(rows, row)
	}
	return rows
}

func topRows(ranking []interpretation.RankedObservation) [][]any {
	pollutants := RankingPollutants(ranking)

	header := []any{"rank", "timestamp"}
	for _, p := range pollutants {
		header = append(header, domain.DisplayName(p))
	}
	header = append(header, "aqi_category")

	rows := [][]any{header}
	for _, r := range ranking {
		row := []any{r.Rank, r.Observation.Timestamp.Format(time.RFC3339)}
		for _, p := range pollutants {
			v, ok := r.Observation.Value(p)
			if !ok {
				v = math.NaN()
			}
			row = append(row, v)
		}
		row = append(row, r.Category.String())
		rows = append(rows, row)
	}
	return rows
}

func distributionRows(dist []interpretation.CategoryCount) [][]any {
	rows := [][]any{{"category", "count", "percent"}}
	for _, d := range dist {
		rows = append(rows, []any{d.Category.String(), d.Count, d.Percent})
	}
	return rows
}

func healthRows(guide []interpretation.HealthGuidance) [][]any {
	rows := [][]any{{"category", "pm2_5_range", "health_impact"}}
	for _, g := range guide {
		rows = append(rows, []any{g.Category.String(), g.Range, g.Impact})
	}
	return rows
}
