package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/adapter/csvsource"
	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/observability"
	"github.com/couchcryptid/air-quality-analysis/internal/pipeline"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Load and clean a dataset without writing outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			p := pipeline.New(
				pipeline.SourceFunc(csvsource.Load),
				nil,
				nil,
				observability.NewLogger(cfg),
				observability.NewMetrics(),
				pipeline.OptionsFromConfig(cfg),
			)
			return runValidate(cmd.Context(), cmd.OutOrStdout(), p, inputPath(args, cfg.InputPath))
		},
	}
}

// phase tracks pass/fail for one validation check. Warnings are printed but
// do not fail the phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// datasetValidator is the part of the pipeline the validate command needs.
type datasetValidator interface {
	Validate(ctx context.Context, path string) (pipeline.ValidationResult, error)
}

func runValidate(ctx context.Context, out io.Writer, v datasetValidator, path string) error {
	fmt.Fprintf(out, "=== Dataset Validation: %s ===\n\n", path)

	res, err := v.Validate(ctx, path)
	if err != nil {
		fmt.Fprintf(out, "  %-32s %s\n", "load and clean", "FAIL")
		fmt.Fprintf(out, "\n  %v\n", err)
		return &exitError{code: 1, err: err}
	}

	phases := []*phase{
		checkColumns(res),
		checkCoverage(res),
		checkCleaning(res),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nRows: %d loaded, %d usable, %s to %s\n",
		res.Rows, res.Clean.RowsOut, res.First.Format(time.DateTime), res.Last.Format(time.DateTime))

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		for _, w := range p.warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}

	if !allPassed {
		return failf(1, "validation failed")
	}
	fmt.Fprintf(out, "\nDataset is ready for analysis.\n")
	return nil
}

func checkColumns(res pipeline.ValidationResult) *phase {
	p := &phase{name: "Columns"}
	present := map[string]bool{}
	for _, c := range res.Columns {
		present[c] = true
	}
	for _, name := range domain.OptionalPollutants {
		if !present[name] {
			p.warnf("optional pollutant %s not present", domain.DisplayName(name))
		}
	}
	return p
}

func checkCoverage(res pipeline.ValidationResult) *phase {
	p := &phase{name: "Coverage"}
	if res.Clean.RowsOut == 0 {
		p.errorf("no rows have a target reading")
		return p
	}
	if res.Clean.RowsDropped > 0 {
		pct := 100 * float64(res.Clean.RowsDropped) / float64(res.Clean.RowsIn)
		p.warnf("%d rows (%.1f%%) dropped for a missing target reading", res.Clean.RowsDropped, pct)
	}
	if res.Last.Before(res.First) {
		p.warnf("rows are not in time order; cleaning sorts them")
	}
	return p
}

func checkCleaning(res pipeline.ValidationResult) *phase {
	p := &phase{name: "Cleaning"}
	for _, name := range res.Clean.EmptyColumns {
		p.errorf("%s has no readings at all", domain.DisplayName(name))
	}
	for _, name := range domain.Pollutants() {
		if n := res.Clean.Imputed[name]; n > 0 {
			p.warnf("%s: %d values imputed", domain.DisplayName(name), n)
		}
		if n := res.Clean.Clipped[name]; n > 0 {
			p.warnf("%s: %d values clipped", domain.DisplayName(name), n)
		}
	}
	return p
}
