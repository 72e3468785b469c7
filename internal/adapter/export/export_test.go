package export

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleTable(t *testing.T) domain.Table {
	t.Helper()
	ts := []time.Time{start, start.Add(time.Hour), start.Add(2 * time.Hour)}
	tbl := domain.NewTable(ts)
	var err error
	tbl, err = tbl.WithColumn(domain.PM25, []float64{10, 60, 40})
	require.NoError(t, err)
	tbl, err = tbl.WithColumn(domain.PM10, []float64{20, 90, math.NaN()})
	require.NoError(t, err)
	tbl, err = tbl.WithColumn(domain.CO, []float64{300, 500, 420})
	require.NoError(t, err)
	tbl, err = tbl.WithColumn("hour", []float64{0, 1, 2})
	require.NoError(t, err)
	return tbl
}

func sampleRanking(t *testing.T) []interpretation.RankedObservation {
	t.Helper()
	ranked, err := interpretation.TopNPolluted(sampleTable(t), domain.PM25, 3)
	require.NoError(t, err)
	return ranked
}

func TestRankingPollutants(t *testing.T) {
	assert.Equal(t, []string{domain.PM25, domain.PM10, domain.CO}, RankingPollutants(sampleRanking(t)))
	assert.Empty(t, RankingPollutants(nil))
}

func TestRankingFrame(t *testing.T) {
	ranking := sampleRanking(t)
	df := RankingFrame(ranking, RankingPollutants(ranking))
	require.NoError(t, df.Err)

	assert.Equal(t, []string{"rank", "timestamp", domain.PM25, domain.PM10, domain.CO, "aqi_category"}, df.Names())
	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, []float64{60, 40, 10}, df.Col(domain.PM25).Float())
	assert.Equal(t, []string{"Hazardous", "Unhealthy", "Good"}, df.Col("aqi_category").Records())
}

func TestRankingCSV(t *testing.T) {
	ranking := sampleRanking(t)
	path := filepath.Join(t.TempDir(), RankingFile)

	require.NoError(t, RankingCSV(path, ranking, RankingPollutants(ranking)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"rank", "timestamp", "pm2_5", "pm10", "co", "aqi_category"}, records[0])

	first := records[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, start.Add(time.Hour).Format(time.RFC3339), first[1])
	pm, err := strconv.ParseFloat(first[2], 64)
	require.NoError(t, err)
	assert.Equal(t, 60.0, pm)
	assert.Equal(t, "Hazardous", first[5])

	assert.Equal(t, "NaN", records[2][3], "missing PM10 stays visible as NaN")
}

func TestRankingCSV_BadPath(t *testing.T) {
	err := RankingCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), sampleRanking(t), []string{domain.PM25})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create ranking csv")
}

func TestWorkbook(t *testing.T) {
	tbl := sampleTable(t)
	summary, err := processing.Summarize(tbl, nil)
	require.NoError(t, err)
	corr, err := processing.Correlate(tbl, []string{domain.PM25, domain.CO})
	require.NoError(t, err)
	classified, err := interpretation.ClassifyTable(tbl, domain.PM25)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), WorkbookFile)
	err = Workbook(path, WorkbookData{
		RunID:        "run-1",
		GeneratedAt:  start,
		Summary:      summary,
		Correlation:  corr,
		TopPolluted:  sampleRanking(t),
		Distribution: interpretation.CategoryDistribution(classified),
		Health:       interpretation.HealthTable(),
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetCorrelation, SheetTopPolluted, SheetDistribution, SheetHealth}, f.GetSheetList())

	runID, err := f.GetCellValue(SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	pollutant, err := f.GetCellValue(SheetSummary, "A5")
	require.NoError(t, err)
	assert.Equal(t, "PM2.5", pollutant)

	diag, err := f.GetCellValue(SheetCorrelation, "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", diag)

	missing, err := f.GetCellValue(SheetTopPolluted, "D3")
	require.NoError(t, err)
	assert.Empty(t, missing, "NaN is written as an empty cell")

	health, err := f.GetRows(SheetHealth)
	require.NoError(t, err)
	assert.Len(t, health, 5)
	assert.Equal(t, "Good", health[1][0])
}
