package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/adapter/chart"
	"github.com/couchcryptid/air-quality-analysis/internal/adapter/export"
	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/observability"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Source reads the input dataset.
type Source interface {
	Load(path string) (domain.Table, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(path string) (domain.Table, error)

// Load calls f(path).
func (f SourceFunc) Load(path string) (domain.Table, error) { return f(path) }

// Renderer draws the chart set for a finished analysis.
type Renderer interface {
	RenderAll(in chart.Input) ([]string, []error)
}

// Publisher sends classified observations downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, observations []interpretation.ClassifiedObservation) error
}

// Sink names used in logs, metrics and SinkError.
const (
	SinkChart  = "chart"
	SinkCSV    = "csv"
	SinkXLSX   = "xlsx"
	SinkKafka  = "kafka"
	SinkOutput = "output_dir"
)

// SinkError reports a failed output. Sink failures never change the analysis.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return e.Sink + ": " + e.Err.Error() }

func (e *SinkError) Unwrap() error { return e.Err }

// Pipeline runs acquisition, analysis and output for one dataset.
type Pipeline struct {
	source    Source
	renderer  Renderer
	publisher Publisher // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	opts      Options
}

// New creates a Pipeline. renderer and publisher may be nil to skip those outputs.
func New(source Source, renderer Renderer, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		source:    source,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer(observability.ServiceName),
		opts:      opts,
	}
}

// Run loads path, analyzes it and writes every output. Acquisition,
// processing and interpretation errors are returned immediately and nothing is
// written. Output failures are collected in Report.SinkErrors and the
// returned error is nil.
func (p *Pipeline) Run(ctx context.Context, path string) (Report, error) {
	rep := Report{RunID: uuid.NewString(), GeneratedAt: domain.Now(), InputPath: path, OutputDir: p.opts.OutputDir}
	logger := p.logger.With("run_id", rep.RunID)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", rep.RunID),
		attribute.String("input", path),
	))
	defer span.End()

	logger.Info("pipeline started", "input", path, "target", p.opts.Target, "window", p.opts.Window)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	raw, err := p.load(ctx, path)
	if err != nil {
		failSpan(span, err)
		logger.Error("load failed", "error", err)
		return rep, err
	}
	rep.RowsLoaded = raw.Len()

	var a Analysis
	for _, step := range analyzeSteps(raw, p.opts) {
		if err := p.stage(ctx, step.name, func() error { return step.run(&a) }); err != nil {
			failSpan(span, err)
			logger.Error("analysis failed", "stage", step.name, "error", err)
			return rep, err
		}
	}
	rep.Analysis = a
	p.recordAnalysis(logger, a)

	rep.Artifacts, rep.SinkErrors = p.writeOutputs(ctx, rep)
	for _, se := range rep.SinkErrors {
		logger.Warn("output failed", "sink", se.Sink, "error", se.Err)
		p.metrics.SinkErrors.WithLabelValues(se.Sink).Inc()
	}

	p.metrics.LastSuccess.Set(float64(rep.GeneratedAt.Unix()))
	span.SetAttributes(attribute.Int("sink_errors", len(rep.SinkErrors)))
	logger.Info("pipeline finished",
		"rows", rep.Analysis.Clean.RowsOut,
		"artifacts", len(rep.Artifacts),
		"sink_errors", len(rep.SinkErrors),
	)
	return rep, nil
}

// Validate loads and cleans path without writing anything.
func (p *Pipeline) Validate(ctx context.Context, path string) (ValidationResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.validate", trace.WithAttributes(attribute.String("input", path)))
	defer span.End()

	raw, err := p.load(ctx, path)
	if err != nil {
		failSpan(span, err)
		return ValidationResult{}, err
	}

	res := ValidationResult{Rows: raw.Len(), Columns: raw.Columns()}
	if len(raw.Timestamps()) > 0 {
		ts := raw.Timestamps()
		res.First, res.Last = ts[0], ts[len(ts)-1]
	}
	err = p.stage(ctx, "clean", func() error {
		var cerr error
		_, res.Clean, cerr = processing.Clean(raw, p.opts.cleanOptions())
		return cerr
	})
	if err != nil {
		failSpan(span, err)
		return res, err
	}
	return res, nil
}

func (p *Pipeline) load(ctx context.Context, path string) (domain.Table, error) {
	var t domain.Table
	err := p.stage(ctx, "load", func() error {
		var lerr error
		t, lerr = p.source.Load(path)
		return lerr
	})
	if err != nil {
		return domain.Table{}, err
	}
	p.metrics.RowsLoaded.Add(float64(t.Len()))
	p.logger.Info("dataset loaded", "path", path, "rows", t.Len(), "columns", t.Columns())
	return t, nil
}

// stage runs fn inside a span and records its duration. The returned error is
// prefixed with the stage name.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	_, span := p.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		failSpan(span, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (p *Pipeline) recordAnalysis(logger *slog.Logger, a Analysis) {
	p.metrics.RowsDropped.Add(float64(a.Clean.RowsDropped))
	p.metrics.ValuesImputed.Add(float64(a.Clean.TotalImputed()))
	p.metrics.ValuesClipped.Add(float64(a.Clean.TotalClipped()))
	for _, d := range a.Distribution {
		p.metrics.Observations.WithLabelValues(d.Category.String()).Set(float64(d.Count))
	}

	logger.Info("dataset cleaned",
		"rows_in", a.Clean.RowsIn,
		"rows_out", a.Clean.RowsOut,
		"rows_dropped", a.Clean.RowsDropped,
		"imputed", a.Clean.TotalImputed(),
		"clipped", a.Clean.TotalClipped(),
	)
	if len(a.Clean.EmptyColumns) > 0 {
		logger.Warn("columns without observations left missing", "columns", a.Clean.EmptyColumns)
	}
	if constant := a.Correlation.Constant(); len(constant) > 0 {
		logger.Warn("constant columns have no correlation", "columns", constant)
	}
}

// writeOutputs renders charts, exports tables and publishes observations.
// Every failure is collected; none stops the remaining outputs.
func (p *Pipeline) writeOutputs(ctx context.Context, rep Report) ([]string, []*SinkError) {
	var (
		artifacts []string
		errs      []*SinkError
	)
	a := rep.Analysis

	fileOutputs := true
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		errs = append(errs, &SinkError{Sink: SinkOutput, Err: err})
		fileOutputs = false
	}

	if fileOutputs && p.renderer != nil {
		_ = p.stage(ctx, "render", func() error {
			paths, rerrs := p.renderer.RenderAll(chart.Input{
				Table:        a.Table,
				Target:       p.opts.Target,
				Window:       p.opts.Window,
				Correlation:  a.Correlation,
				Hourly:       a.Hourly,
				Distribution: a.Distribution,
				TopDays:      a.TopDays,
			})
			artifacts = append(artifacts, paths...)
			p.metrics.ChartsRendered.Add(float64(len(paths)))
			for _, err := range rerrs {
				errs = append(errs, &SinkError{Sink: SinkChart, Err: err})
			}
			return errors.Join(rerrs...)
		})
	}

	if fileOutputs {
		_ = p.stage(ctx, "export", func() error {
			var errsHere []error
			csvPath := filepath.Join(p.opts.OutputDir, export.RankingFile)
			if err := export.RankingCSV(csvPath, a.TopPolluted, export.RankingPollutants(a.TopPolluted)); err != nil {
				errs = append(errs, &SinkError{Sink: SinkCSV, Err: err})
				errsHere = append(errsHere, err)
			} else {
				artifacts = append(artifacts, csvPath)
			}

			if !p.opts.ExportXLSX {
				return errors.Join(errsHere...)
			}
			xlsxPath := filepath.Join(p.opts.OutputDir, export.WorkbookFile)
			if err := export.Workbook(xlsxPath, workbookData(rep)); err != nil {
				errs = append(errs, &SinkError{Sink: SinkXLSX, Err: err})
				errsHere = append(errsHere, err)
			} else {
				artifacts = append(artifacts, xlsxPath)
			}
			return errors.Join(errsHere...)
		})
	}

	if p.publisher != nil {
		err := p.stage(ctx, "publish", func() error {
			return p.publisher.Publish(ctx, rep.RunID, a.Classified)
		})
		if err != nil {
			errs = append(errs, &SinkError{Sink: SinkKafka, Err: err})
		}
	}

	return artifacts, errs
}

func workbookData(rep Report) export.WorkbookData {
	return export.WorkbookData{
		RunID:        rep.RunID,
		GeneratedAt:  rep.GeneratedAt,
		Summary:      rep.Analysis.Summary,
		Correlation:  rep.Analysis.Correlation,
		TopPolluted:  rep.Analysis.TopPolluted,
		Distribution: rep.Analysis.Distribution,
		Health:       interpretation.HealthTable(),
	}
}
