package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleInput(t *testing.T) Input {
	t.Helper()
	start := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	n := 24 * 4
	ts := make([]time.Time, n)
	cols := map[string][]float64{}
	for _, p := range domain.RequiredPollutants {
		cols[p] = make([]float64, n)
	}
	for i := range n {
		ts[i] = start.Add(time.Duration(i) * time.Hour)
		base := 20 + 15*math.Sin(float64(i)/6)
		cols[domain.PM25][i] = base
		cols[domain.PM10][i] = base*1.6 + float64(i%5)
		cols[domain.CO][i] = 300 + base*3
		cols[domain.NO][i] = 5 + float64(i%7)
		cols[domain.NO2][i] = 30 - base/2
	}
	tbl := domain.NewTable(ts)
	for _, p := range domain.RequiredPollutants {
		var err error
		tbl, err = tbl.WithColumn(p, cols[p])
		require.NoError(t, err)
	}

	derived, err := processing.DeriveFeatures(tbl, 6)
	require.NoError(t, err)
	corr, err := processing.Correlate(tbl, nil)
	require.NoError(t, err)
	hourly, err := processing.HourlyProfile(tbl, domain.PM25)
	require.NoError(t, err)
	classified, err := interpretation.ClassifyTable(tbl, domain.PM25)
	require.NoError(t, err)
	days, err := interpretation.TopPollutedDays(tbl, domain.PM25, 3)
	require.NoError(t, err)

	return Input{
		Table:        derived,
		Target:       domain.PM25,
		Window:       6,
		Correlation:  corr,
		Hourly:       hourly,
		Distribution: interpretation.CategoryDistribution(classified),
		TopDays:      days,
	}
}

func TestRenderAll_WritesEveryChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r := NewRenderer(dir)

	paths, errs := r.RenderAll(sampleInput(t))
	require.Empty(t, errs)

	want := []string{
		TimeSeriesFile, CorrelationMatrixFile, HourlyHeatmapFile,
		AQIDistributionFile, TopPollutedDaysFile, ScatterFile,
	}
	require.Len(t, paths, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), paths[i])

		data, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", name)
	}
}

func TestRenderAll_FailuresAreIsolated(t *testing.T) {
	in := sampleInput(t)
	in.TopDays = nil
	in.Correlation = processing.CorrelationMatrix{}

	paths, errs := NewRenderer(t.TempDir()).RenderAll(in)

	assert.Len(t, paths, 4)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], errNoData)
	assert.Contains(t, errs[0].Error(), CorrelationMatrixFile)
	assert.Contains(t, errs[1].Error(), TopPollutedDaysFile)
}

func TestRenderer_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewRenderer(blocker).AQIDistribution([]interpretation.CategoryCount{
		{Category: domain.CategoryGood, Count: 1},
	})
	require.Error(t, err)
}

func TestScatter_NeedsSpread(t *testing.T) {
	ts := []time.Time{time.Unix(0, 0), time.Unix(3600, 0)}
	tbl := domain.NewTable(ts)
	tbl, err := tbl.WithColumn(domain.PM25, []float64{5, 5})
	require.NoError(t, err)
	tbl, err = tbl.WithColumn(domain.PM10, []float64{1, 2})
	require.NoError(t, err)

	_, err = NewRenderer(t.TempDir()).Scatter(tbl, domain.PM25, domain.PM10)
	assert.ErrorIs(t, err, errNoData)
}

func TestHourlyHeatmap_Empty(t *testing.T) {
	var grid processing.HourlyGrid
	for d := range 7 {
		for h := range 24 {
			grid.Mean[d][h] = math.NaN()
		}
	}
	_, err := NewRenderer(t.TempDir()).HourlyHeatmap(grid)
	assert.ErrorIs(t, err, errNoData)
}
