package pipeline

import (
	"fmt"

	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
)

// Options are the analysis settings of one run.
type Options struct {
	Target        string
	Window        int
	TopN          int
	Impute        processing.ImputePolicy
	OutlierFactor float64
	OutputDir     string
	ExportXLSX    bool
}

// OptionsFromConfig maps validated configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Target:        cfg.TargetPollutant,
		Window:        cfg.RollingWindow,
		TopN:          cfg.TopN,
		Impute:        processing.ImputePolicy(cfg.ImputePolicy),
		OutlierFactor: cfg.OutlierFactor,
		OutputDir:     cfg.OutputDir,
		ExportXLSX:    cfg.ExportXLSX,
	}
}

func (o Options) cleanOptions() processing.CleanOptions {
	return processing.CleanOptions{Target: o.Target, Impute: o.Impute, OutlierFactor: o.OutlierFactor}
}

// Analysis is everything computed from one input table.
type Analysis struct {
	Table        domain.Table // cleaned, with derived features
	Clean        processing.CleanStats
	Summary      map[string]processing.Summary
	Correlation  processing.CorrelationMatrix
	Strongest    []interpretation.CorrelationPair
	Hourly       processing.HourlyGrid
	Classified   []interpretation.ClassifiedObservation
	Distribution []interpretation.CategoryCount
	TopPolluted  []interpretation.RankedObservation
	TopDays      []interpretation.RankedObservation
}

// analyzeStep is one named computation over the analysis built so far.
type analyzeStep struct {
	name string
	run  func(a *Analysis) error
}

// analyzeSteps lists the processing and interpretation stages in order. Each
// step reads what earlier steps stored on the Analysis.
func analyzeSteps(raw domain.Table, opts Options) []analyzeStep {
	var cleaned domain.Table
	return []analyzeStep{
		{"clean", func(a *Analysis) error {
			t, stats, err := processing.Clean(raw, opts.cleanOptions())
			if err != nil {
				return err
			}
			if t.Len() == 0 {
				return &domain.InsufficientDataError{Columns: []string{opts.Target}, Samples: 0, Need: 1, Reason: "no rows left after cleaning"}
			}
			cleaned, a.Clean = t, stats
			return nil
		}},
		{"derive", func(a *Analysis) error {
			t, err := processing.DeriveFeatures(cleaned, opts.Window)
			a.Table = t
			return err
		}},
		{"summarize", func(a *Analysis) error {
			s, err := processing.Summarize(cleaned, nonEmptyPollutants(cleaned, a.Clean))
			a.Summary = s
			return err
		}},
		{"correlate", func(a *Analysis) error {
			m, err := processing.Correlate(cleaned, nonEmptyPollutants(cleaned, a.Clean))
			if err != nil {
				return err
			}
			a.Correlation = m
			a.Strongest = interpretation.StrongestCorrelations(m, opts.Target, len(m.Columns()))
			return nil
		}},
		{"hourly", func(a *Analysis) error {
			h, err := processing.HourlyProfile(cleaned, opts.Target)
			a.Hourly = h
			return err
		}},
		{"classify", func(a *Analysis) error {
			c, err := interpretation.ClassifyTable(cleaned, domain.PM25)
			if err != nil {
				return err
			}
			a.Classified = c
			a.Distribution = interpretation.CategoryDistribution(c)
			return nil
		}},
		{"rank", func(a *Analysis) error {
			top, err := interpretation.TopNPolluted(a.Table, opts.Target, opts.TopN)
			if err != nil {
				return err
			}
			days, err := interpretation.TopPollutedDays(cleaned, opts.Target, opts.TopN)
			if err != nil {
				return err
			}
			a.TopPolluted, a.TopDays = top, days
			return nil
		}},
	}
}

// Analyze runs every processing and interpretation stage without observability.
// Any error aborts: later stages assume a fully valid table.
func Analyze(raw domain.Table, opts Options) (Analysis, error) {
	var a Analysis
	for _, step := range analyzeSteps(raw, opts) {
		if err := step.run(&a); err != nil {
			return Analysis{}, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return a, nil
}

// nonEmptyPollutants skips columns cleaning could not fill at all.
func nonEmptyPollutants(t domain.Table, stats processing.CleanStats) []string {
	empty := map[string]bool{}
	for _, c := range stats.EmptyColumns {
		empty[c] = true
	}
	var out []string
	for _, c := range domain.PollutantColumns(t) {
		if !empty[c] {
			out = append(out, c)
		}
	}
	return out
}
