package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/adapter/chart"
	"github.com/couchcryptid/air-quality-analysis/internal/adapter/export"
	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/observability"
	"github.com/couchcryptid/air-quality-analysis/internal/pipeline"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRenderer struct {
	calls  int
	input  chart.Input
	paths  []string
	errors []error
}

func (m *mockRenderer) RenderAll(in chart.Input) ([]string, []error) {
	m.calls++
	m.input = in
	return m.paths, m.errors
}

type mockPublisher struct {
	runID string
	sent  []interpretation.ClassifiedObservation
	err   error
}

func (m *mockPublisher) Publish(_ context.Context, runID string, obs []interpretation.ClassifiedObservation) error {
	m.runID = runID
	m.sent = obs
	return m.err
}

func tableSource(tbl domain.Table) pipeline.SourceFunc {
	return func(string) (domain.Table, error) { return tbl, nil }
}

func failingSource(err error) pipeline.SourceFunc {
	return func(string) (domain.Table, error) { return domain.Table{}, err }
}

var (
	base    = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	frozen  = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// buildTable creates an hourly table starting at base. cols alternates
// column name and values.
func buildTable(t *testing.T, n int, cols ...any) domain.Table {
	t.Helper()
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = base.Add(time.Duration(i) * time.Hour)
	}
	tbl := domain.NewTable(ts)
	for i := 0; i < len(cols); i += 2 {
		var err error
		tbl, err = tbl.WithColumn(cols[i].(string), cols[i+1].([]float64))
		require.NoError(t, err)
	}
	return tbl
}

func scenarioTable(t *testing.T) domain.Table {
	return buildTable(t, 3, domain.PM25, []float64{10, 40, 60})
}

func testOptions(dir string) pipeline.Options {
	return pipeline.Options{
		Target:     domain.PM25,
		Window:     2,
		TopN:       3,
		Impute:     processing.ImputeForwardFill,
		OutputDir:  dir,
		ExportXLSX: true,
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	freezeClock(t)
	dir := filepath.Join(t.TempDir(), "out")
	tbl := buildTable(t, 4,
		domain.PM25, []float64{10, math.NaN(), 40, 60},
		domain.NO2, []float64{5, 6, math.NaN(), 9},
	)
	rend := &mockRenderer{paths: []string{"a.png"}}
	pub := &mockPublisher{}
	metrics := observability.NewMetrics()

	p := pipeline.New(tableSource(tbl), rend, pub, discard, metrics, testOptions(dir))
	rep, err := p.Run(context.Background(), "input.csv")
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, frozen, rep.GeneratedAt)
	assert.Equal(t, 4, rep.RowsLoaded)
	assert.False(t, rep.SinkFailed())
	assert.Equal(t, 3, rep.Analysis.Clean.RowsOut)
	assert.Equal(t, 1, rep.Analysis.Clean.RowsDropped)

	assert.Equal(t, 1, rend.calls)
	assert.Equal(t, domain.PM25, rend.input.Target)
	assert.Equal(t, 2, rend.input.Window)
	assert.True(t, rend.input.Table.HasColumn(processing.RollingColumn(domain.PM25, 2)))

	assert.Equal(t, rep.RunID, pub.runID)
	assert.Len(t, pub.sent, 3)

	assert.Equal(t, []string{
		"a.png",
		filepath.Join(dir, export.RankingFile),
		filepath.Join(dir, export.WorkbookFile),
	}, rep.Artifacts)
	for _, path := range rep.Artifacts[1:] {
		assert.FileExists(t, path)
	}

	assert.InDelta(t, 4, testutil.ToFloat64(metrics.RowsLoaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsDropped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ValuesImputed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ChartsRendered), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
	assert.InDelta(t, float64(frozen.Unix()), testutil.ToFloat64(metrics.LastSuccess), 0)
}

func TestPipeline_Run_Scenario(t *testing.T) {
	p := pipeline.New(tableSource(scenarioTable(t)), nil, nil, discard, observability.NewMetrics(), testOptions(t.TempDir()))

	rep, err := p.Run(context.Background(), "scenario.csv")
	require.NoError(t, err)

	cats := make([]domain.Category, 0, 3)
	for _, c := range rep.Analysis.Classified {
		cats = append(cats, c.Category)
	}
	assert.Equal(t, []domain.Category{domain.CategoryGood, domain.CategoryUnhealthy, domain.CategoryHazardous}, cats)

	require.Len(t, rep.Analysis.TopPolluted, 3)
	assert.InDelta(t, 60, rep.Analysis.TopPolluted[0].Value, 0)
	assert.Equal(t, 1, rep.Analysis.TopPolluted[0].Rank)
	assert.Equal(t, domain.CategoryHazardous, rep.Analysis.TopPolluted[0].Category)

	counts := map[domain.Category]int{}
	for _, d := range rep.Analysis.Distribution {
		counts[d.Category] = d.Count
	}
	assert.Equal(t, map[domain.Category]int{
		domain.CategoryGood:      1,
		domain.CategoryModerate:  0,
		domain.CategoryUnhealthy: 1,
		domain.CategoryHazardous: 1,
	}, counts)

	s := rep.Analysis.Summary[domain.PM25]
	assert.InDelta(t, 110.0/3, s.Mean, 1e-9)
	assert.InDelta(t, 40, s.Median, 0)
}

func TestPipeline_Run_SchemaErrorWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rend := &mockRenderer{}
	pub := &mockPublisher{}
	src := failingSource(&domain.SchemaError{Missing: []string{domain.PM25}})

	p := pipeline.New(src, rend, pub, discard, observability.NewMetrics(), testOptions(dir))
	rep, err := p.Run(context.Background(), "bad.csv")

	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), "load: ")
	assert.Empty(t, rep.Artifacts)
	assert.Zero(t, rend.calls)
	assert.Nil(t, pub.sent)
	_, statErr := os.Stat(dir)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "output dir must not be created")
}

func TestPipeline_Run_NoRowsAfterCleaning(t *testing.T) {
	tbl := buildTable(t, 2, domain.PM25, []float64{math.NaN(), math.NaN()})
	p := pipeline.New(tableSource(tbl), nil, nil, discard, observability.NewMetrics(), testOptions(t.TempDir()))

	_, err := p.Run(context.Background(), "empty.csv")

	require.ErrorIs(t, err, domain.ErrInsufficientData)
	var ide *domain.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Contains(t, err.Error(), "clean: ")
}

func TestPipeline_Run_SinkErrorsCollected(t *testing.T) {
	rend := &mockRenderer{
		paths:  []string{"ok.png"},
		errors: []error{errors.New("render hourly_heatmap.png: boom")},
	}
	pub := &mockPublisher{err: errors.New("broker down")}
	metrics := observability.NewMetrics()

	p := pipeline.New(tableSource(scenarioTable(t)), rend, pub, discard, metrics, testOptions(t.TempDir()))
	rep, err := p.Run(context.Background(), "scenario.csv")

	require.NoError(t, err, "output failures never fail the run")
	assert.True(t, rep.SinkFailed())
	require.Len(t, rep.SinkErrors, 2)
	assert.Equal(t, pipeline.SinkChart, rep.SinkErrors[0].Sink)
	assert.Equal(t, pipeline.SinkKafka, rep.SinkErrors[1].Sink)
	assert.ErrorContains(t, rep.SinkErrors[1], "broker down")

	assert.Contains(t, rep.Artifacts, "ok.png")
	assert.NotEmpty(t, rep.Analysis.Summary, "statistics survive sink failures")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues(pipeline.SinkChart)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues(pipeline.SinkKafka)), 0)
}

func TestPipeline_Run_UnwritableOutputDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	rend := &mockRenderer{}
	pub := &mockPublisher{}

	p := pipeline.New(tableSource(scenarioTable(t)), rend, pub, discard, observability.NewMetrics(), testOptions(filepath.Join(blocker, "out")))
	rep, err := p.Run(context.Background(), "scenario.csv")

	require.NoError(t, err)
	require.Len(t, rep.SinkErrors, 1)
	assert.Equal(t, pipeline.SinkOutput, rep.SinkErrors[0].Sink)
	assert.Zero(t, rend.calls, "file outputs are skipped")
	assert.Len(t, pub.sent, 3, "publishing does not depend on the output dir")
}

func TestPipeline_Run_SkipsWorkbookWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.ExportXLSX = false

	p := pipeline.New(tableSource(scenarioTable(t)), nil, nil, discard, observability.NewMetrics(), opts)
	rep, err := p.Run(context.Background(), "scenario.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, export.RankingFile)}, rep.Artifacts)
	assert.NoFileExists(t, filepath.Join(dir, export.WorkbookFile))
}

func TestPipeline_RunMatchesAnalyze(t *testing.T) {
	tbl := buildTable(t, 5,
		domain.PM25, []float64{12, 30, math.NaN(), 55, 8},
		domain.CO, []float64{200, math.NaN(), 260, -4, 310},
	)
	opts := testOptions(t.TempDir())

	want, err := pipeline.Analyze(tbl, opts)
	require.NoError(t, err)

	p := pipeline.New(tableSource(tbl), nil, nil, discard, observability.NewMetrics(), opts)
	rep, err := p.Run(context.Background(), "x.csv")
	require.NoError(t, err)

	if diff := cmp.Diff(want.Table, rep.Analysis.Table, cmp.AllowUnexported(domain.Table{}), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("derived table mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Summary, rep.Analysis.Summary, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SingleReadingColumnDoesNotAbort(t *testing.T) {
	tbl := buildTable(t, 3,
		domain.PM25, []float64{10, 40, 60},
		domain.PM10, []float64{20, 70, 95},
		domain.CO, []float64{math.NaN(), 300, math.NaN()},
	)

	a, err := pipeline.Analyze(tbl, testOptions(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, []string{domain.CO}, a.Correlation.Constant())
	assert.True(t, math.IsNaN(a.Correlation.At(domain.PM25, domain.CO)))
	require.Len(t, a.Strongest, 1)
	assert.Equal(t, domain.PM10, a.Strongest[0].Column)
	assert.Contains(t, a.Summary, domain.CO)
	assert.Len(t, a.Classified, 3)
}

func TestAnalyze_PropagatesStageName(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Window = 0

	_, err := pipeline.Analyze(scenarioTable(t), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "derive: ")
}

func TestPipeline_Validate(t *testing.T) {
	tbl := buildTable(t, 3, domain.PM25, []float64{10, math.NaN(), 60})
	p := pipeline.New(tableSource(tbl), nil, nil, discard, observability.NewMetrics(), testOptions(t.TempDir()))

	res, err := p.Validate(context.Background(), "x.csv")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []string{domain.PM25}, res.Columns)
	assert.Equal(t, base, res.First)
	assert.Equal(t, base.Add(2*time.Hour), res.Last)
	assert.Equal(t, 1, res.Clean.RowsDropped)
}

func TestPipeline_Validate_LoadError(t *testing.T) {
	p := pipeline.New(failingSource(os.ErrNotExist), nil, nil, discard, observability.NewMetrics(), testOptions(t.TempDir()))

	_, err := p.Validate(context.Background(), "missing.csv")
	require.ErrorIs(t, err, os.ErrNotExist)
}
