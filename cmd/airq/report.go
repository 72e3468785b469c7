package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/pipeline"
)

// writeReport prints the human-readable run summary.
func writeReport(w io.Writer, rep pipeline.Report) error {
	a := rep.Analysis
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "=== Air Quality Report ===\n")
	fmt.Fprintf(tw, "run\t%s\n", rep.RunID)
	fmt.Fprintf(tw, "input\t%s\n", rep.InputPath)
	fmt.Fprintf(tw, "generated\t%s\n", rep.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "rows\t%d loaded, %d kept, %d dropped\n", rep.RowsLoaded, a.Clean.RowsOut, a.Clean.RowsDropped)
	fmt.Fprintf(tw, "cleaning\t%d imputed, %d clipped\n", a.Clean.TotalImputed(), a.Clean.TotalClipped())

	fmt.Fprintf(tw, "\n--- Summary statistics ---\n")
	fmt.Fprintf(tw, "pollutant\tcount\tmean\tmedian\tstd\tmin\tmax\n")
	for _, name := range domain.Pollutants() {
		s, ok := a.Summary[name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			domain.DisplayName(name), s.Count, s.Mean, s.Median, s.Std, s.Min, s.Max)
	}

	if len(a.Strongest) > 0 {
		target := a.Hourly.Column
		fmt.Fprintf(tw, "\n--- Correlation with %s ---\n", domain.DisplayName(target))
		for _, c := range a.Strongest {
			fmt.Fprintf(tw, "%s\t%+.3f\n", domain.DisplayName(c.Column), c.Coefficient)
		}
	}

	fmt.Fprintf(tw, "\n--- AQI distribution (PM2.5) ---\n")
	for _, d := range a.Distribution {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\n", d.Category, interpretation.BandLabel(d.Category), d.Count, d.Percent)
	}

	fmt.Fprintf(tw, "\n--- Most polluted hours ---\n")
	fmt.Fprintf(tw, "rank\ttimestamp\tvalue\tcategory\n")
	for _, r := range a.TopPolluted {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\n", r.Rank, r.Observation.Timestamp.Format(time.DateTime), r.Value, r.Category)
	}

	fmt.Fprintf(tw, "\n--- Most polluted days ---\n")
	for _, r := range a.TopDays {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\n", r.Rank, r.Observation.Timestamp.Format(time.DateOnly), r.Value, r.Category)
	}

	fmt.Fprintf(tw, "\n--- Health guidance ---\n")
	for _, h := range interpretation.HealthTable() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Category, h.Range, h.Impact)
	}

	if len(rep.Artifacts) > 0 {
		fmt.Fprintf(tw, "\n--- Outputs ---\n")
		for _, p := range slices.Sorted(slices.Values(rep.Artifacts)) {
			fmt.Fprintf(tw, "%s\n", p)
		}
	}
	for _, se := range rep.SinkErrors {
		fmt.Fprintf(tw, "FAILED\t%s\t%v\n", se.Sink, se.Err)
	}
	return tw.Flush()
}
