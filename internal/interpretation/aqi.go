// Package interpretation turns cleaned concentrations into air-quality
// judgements: AQI categories, rankings of the most polluted records and the
// summaries built on them.
package interpretation

import (
	"fmt"
	"math"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
)

// PM2.5 band lower bounds in µg/m³. Each band is [lower, next lower).
const (
	GoodLower      = 0.0
	ModerateLower  = 12.0
	UnhealthyLower = 35.4
	HazardousLower = 55.4
)

// ClassifyAQI maps a PM2.5 concentration to its AQI category. NaN and
// negative values are CategoryUnknown; every other value maps to exactly one
// band.
func ClassifyAQI(pm25 float64) domain.Category {
	switch {
	case math.IsNaN(pm25) || pm25 < GoodLower:
		return domain.CategoryUnknown
	case pm25 < ModerateLower:
		return domain.CategoryGood
	case pm25 < UnhealthyLower:
		return domain.CategoryModerate
	case pm25 < HazardousLower:
		return domain.CategoryUnhealthy
	default:
		return domain.CategoryHazardous
	}
}

// ClassifiedObservation is one row with the category of its classified value.
type ClassifiedObservation struct {
	Observation domain.Observation `json:"observation"`
	Column      string             `json:"column"`
	Value       float64            `json:"value"`
	Category    domain.Category    `json:"category"`
}

// ClassifyTable classifies every row of t by column. Rows with a missing value
// are CategoryUnknown.
func ClassifyTable(t domain.Table, column string) ([]ClassifiedObservation, error) {
	if !t.HasColumn(column) {
		return nil, &domain.SchemaError{Column: column, Reason: "not in table"}
	}
	out := make([]ClassifiedObservation, t.Len())
	for i := range t.Len() {
		v := t.Value(column, i)
		out[i] = ClassifiedObservation{
			Observation: t.Row(i),
			Column:      column,
			Value:       v,
			Category:    ClassifyAQI(v),
		}
	}
	return out, nil
}

// BandLabel returns the concentration range of c, e.g. "12.0-35.4 µg/m³".
func BandLabel(c domain.Category) string {
	switch c {
	case domain.CategoryGood:
		return fmt.Sprintf("%.1f-%.1f µg/m³", GoodLower, ModerateLower)
	case domain.CategoryModerate:
		return fmt.Sprintf("%.1f-%.1f µg/m³", ModerateLower, UnhealthyLower)
	case domain.CategoryUnhealthy:
		return fmt.Sprintf("%.1f-%.1f µg/m³", UnhealthyLower, HazardousLower)
	case domain.CategoryHazardous:
		return fmt.Sprintf(">= %.1f µg/m³", HazardousLower)
	default:
		return "n/a"
	}
}

// HealthGuidance describes the health impact of a category.
type HealthGuidance struct {
	Category domain.Category `json:"category"`
	Range    string          `json:"range"`
	Impact   string          `json:"impact"`
}

// HealthTable returns guidance for every category from cleanest to worst.
func HealthTable() []HealthGuidance {
	impacts := map[domain.Category]string{
		domain.CategoryGood:      "Air quality is satisfactory and poses little or no risk.",
		domain.CategoryModerate:  "Acceptable; unusually sensitive people should consider limiting prolonged outdoor exertion.",
		domain.CategoryUnhealthy: "Sensitive groups may experience health effects; everyone should reduce heavy outdoor exertion.",
		domain.CategoryHazardous: "Health warnings of emergency conditions; everyone should avoid outdoor activity.",
	}
	out := make([]HealthGuidance, 0, len(impacts))
	for _, c := range domain.Categories() {
		out = append(out, HealthGuidance{Category: c, Range: BandLabel(c), Impact: impacts[c]})
	}
	return out
}

// CategoryCount is the number and share of observations in one category.
type CategoryCount struct {
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
	Percent  float64         `json:"percent"`
}

// CategoryDistribution counts observations per category in fixed order, with
// zero counts included. Unknown observations are appended only when present.
// Percentages are of all observations.
func CategoryDistribution(classified []ClassifiedObservation) []CategoryCount {
	counts := map[domain.Category]int{}
	for _, c := range classified {
		counts[c.Category]++
	}

	cats := domain.Categories()
	if counts[domain.CategoryUnknown] > 0 {
		cats = append(cats, domain.CategoryUnknown)
	}

	out := make([]CategoryCount, 0, len(cats))
	for _, c := range cats {
		cc := CategoryCount{Category: c, Count: counts[c]}
		if len(classified) > 0 {
			cc.Percent = 100 * float64(cc.Count) / float64(len(classified))
		}
		out = append(out, cc)
	}
	return out
}
