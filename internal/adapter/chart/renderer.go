// Package chart renders analysis results to PNG files with gonum/plot.
package chart

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/air-quality-analysis/internal/domain"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	"github.com/couchcryptid/air-quality-analysis/internal/processing"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Output file names.
const (
	TimeSeriesFile        = "time_series.png"
	CorrelationMatrixFile = "correlation_matrix.png"
	HourlyHeatmapFile     = "hourly_heatmap.png"
	AQIDistributionFile   = "aqi_distribution.png"
	TopPollutedDaysFile   = "top_polluted_days.png"
	ScatterFile           = "scatter_pm2_5_pm10.png"
)

var errNoData = errors.New("no plottable data")

// Renderer writes charts into a single output directory.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
}

// NewRenderer creates a renderer writing into dir. The directory is created on
// the first write.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir, width: 8 * vg.Inch, height: 5 * vg.Inch}
}

// Input is everything RenderAll draws from.
type Input struct {
	Table        domain.Table // cleaned table with derived features
	Target       string
	Window       int
	Correlation  processing.CorrelationMatrix
	Hourly       processing.HourlyGrid
	Distribution []interpretation.CategoryCount
	TopDays      []interpretation.RankedObservation
}

// RenderAll draws every chart. A failing chart does not stop the others; its
// error is returned alongside the paths that were written.
func (r *Renderer) RenderAll(in Input) ([]string, []error) {
	jobs := []struct {
		name   string
		render func() (string, error)
	}{
		{TimeSeriesFile, func() (string, error) { return r.TimeSeries(in.Table, in.Target, in.Window) }},
		{CorrelationMatrixFile, func() (string, error) { return r.CorrelationMatrix(in.Correlation) }},
		{HourlyHeatmapFile, func() (string, error) { return r.HourlyHeatmap(in.Hourly) }},
		{AQIDistributionFile, func() (string, error) { return r.AQIDistribution(in.Distribution) }},
		{TopPollutedDaysFile, func() (string, error) { return r.TopPollutedDays(in.TopDays) }},
		{ScatterFile, func() (string, error) { return r.Scatter(in.Table, domain.PM25, domain.PM10) }},
	}

	var (
		paths []string
		errs  []error
	)
	for _, j := range jobs {
		path, err := j.render()
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", j.name, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}

// TimeSeries plots column and its rolling mean over time.
func (r *Renderer) TimeSeries(t domain.Table, column string, window int) (string, error) {
	p := plot.New()
	p.Title.Text = domain.DisplayName(column) + " over time"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "µg/m³"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	series := []struct {
		label string
		name  string
	}{
		{domain.DisplayName(column), column},
		{fmt.Sprintf("%d-sample rolling mean", window), processing.RollingColumn(column, window)},
	}
	drawn := 0
	for i, s := range series {
		pts := timeXYs(t, s.name)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1 + float64(i))
		p.Add(line)
		p.Legend.Add(s.label, line)
		drawn++
	}
	if drawn == 0 {
		return "", errNoData
	}
	return r.save(p, TimeSeriesFile)
}

// timeXYs returns (unix seconds, value) points for the non-missing cells of name.
func timeXYs(t domain.Table, name string) plotter.XYs {
	col, ok := t.Column(name)
	if !ok {
		return nil
	}
	ts := t.Timestamps()
	pts := make(plotter.XYs, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(ts[i].Unix()), Y: v})
	}
	return pts
}

// Scatter plots y against x with a least-squares regression line.
func (r *Renderer) Scatter(t domain.Table, x, y string) (string, error) {
	xs, ys := jointValues(t, x, y)
	if len(xs) < 2 || floats.Min(xs) == floats.Max(xs) {
		return "", errNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", domain.DisplayName(y), domain.DisplayName(x))
	p.X.Label.Text = domain.DisplayName(x) + " (µg/m³)"
	p.Y.Label.Text = domain.DisplayName(y) + " (µg/m³)"

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return "", err
	}
	sc.Color = plotutil.Color(0)
	sc.Radius = vg.Points(1.5)

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	lo, hi := floats.Min(xs), floats.Max(xs)
	fit, err := plotter.NewLine(plotter.XYs{{X: lo, Y: alpha + beta*lo}, {X: hi, Y: alpha + beta*hi}})
	if err != nil {
		return "", err
	}
	fit.Color = plotutil.Color(1)
	fit.Width = vg.Points(2)

	p.Add(sc, fit)
	p.Legend.Add("observations", sc)
	p.Legend.Add(fmt.Sprintf("y = %.2f + %.2fx", alpha, beta), fit)
	return r.save(p, ScatterFile)
}

func jointValues(t domain.Table, x, y string) ([]float64, []float64) {
	cx, okx := t.Column(x)
	cy, oky := t.Column(y)
	if !okx || !oky {
		return nil, nil
	}
	var xs, ys []float64
	for i := range cx {
		if math.IsNaN(cx[i]) || math.IsNaN(cy[i]) {
			continue
		}
		xs = append(xs, cx[i])
		ys = append(ys, cy[i])
	}
	return xs, ys
}

// CorrelationMatrix draws the matrix as an annotated blue-red heatmap.
func (r *Renderer) CorrelationMatrix(m processing.CorrelationMatrix) (string, error) {
	cols := m.Columns()
	if len(cols) == 0 {
		return "", errNoData
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(corrGrid{m: m, cols: cols}, cm.Palette(255))
	hm.Min, hm.Max = -1, 1

	labels := plotter.XYLabels{}
	for c, a := range cols {
		for rIdx, b := range cols {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(rIdx)})
			labels.Labels = append(labels.Labels, coefficientLabel(m.At(a, b)))
		}
	}
	text, err := plotter.NewLabels(labels)
	if err != nil {
		return "", err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = domain.DisplayName(c)
	}

	p := plot.New()
	p.Title.Text = "Pollutant correlation matrix"
	p.Add(hm, text)
	p.NominalX(names...)
	p.NominalY(names...)
	return r.save(p, CorrelationMatrixFile)
}

func coefficientLabel(r float64) string {
	if math.IsNaN(r) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", r)
}

type corrGrid struct {
	m    processing.CorrelationMatrix
	cols []string
}

func (g corrGrid) Dims() (int, int)   { return len(g.cols), len(g.cols) }
func (g corrGrid) Z(c, r int) float64 { return g.m.At(g.cols[c], g.cols[r]) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// HourlyHeatmap draws the weekday x hour profile. Cells without data are left blank.
func (r *Renderer) HourlyHeatmap(h processing.HourlyGrid) (string, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for d := range 7 {
		for hr := range 24 {
			if v := h.Mean[d][hr]; !math.IsNaN(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	if math.IsInf(lo, 0) {
		return "", errNoData
	}
	if hi == lo {
		hi = lo + 1
	}

	cm := moreland.ExtendedBlackBody()
	cm.SetMin(lo)
	cm.SetMax(hi)
	hm := plotter.NewHeatMap(hourGrid{h}, cm.Palette(255))
	hm.Min, hm.Max = lo, hi

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean %s by weekday and hour", domain.DisplayName(h.Column))
	p.X.Label.Text = "Hour of day"
	p.Add(hm)
	hours := make([]string, 24)
	for i := range hours {
		if i%3 == 0 {
			hours[i] = fmt.Sprintf("%02d", i)
		}
	}
	p.NominalX(hours...)
	p.NominalY("Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun")
	return r.save(p, HourlyHeatmapFile)
}

type hourGrid struct{ h processing.HourlyGrid }

func (g hourGrid) Dims() (int, int)   { return 24, 7 }
func (g hourGrid) Z(c, r int) float64 { return g.h.Mean[r][c] }
func (g hourGrid) X(c int) float64    { return float64(c) }
func (g hourGrid) Y(r int) float64    { return float64(r) }

// AQIDistribution draws one bar per category.
func (r *Renderer) AQIDistribution(dist []interpretation.CategoryCount) (string, error) {
	if len(dist) == 0 {
		return "", errNoData
	}
	values := make(plotter.Values, len(dist))
	names := make([]string, len(dist))
	for i, d := range dist {
		values[i] = float64(d.Count)
		names[i] = d.Category.String()
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return "", err
	}
	bars.Color = plotutil.Color(2)

	p := plot.New()
	p.Title.Text = "AQI category distribution"
	p.Y.Label.Text = "Observations"
	p.Add(bars)
	p.NominalX(names...)
	return r.save(p, AQIDistributionFile)
}

// TopPollutedDays draws the ranked daily means, worst first.
func (r *Renderer) TopPollutedDays(ranked []interpretation.RankedObservation) (string, error) {
	if len(ranked) == 0 {
		return "", errNoData
	}
	values := make(plotter.Values, len(ranked))
	names := make([]string, len(ranked))
	for i, rk := range ranked {
		values[i] = rk.Value
		names[i] = rk.Observation.Timestamp.Format("2006-01-02")
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return "", err
	}
	bars.Color = plotutil.Color(0)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d most polluted days (%s daily mean)", len(ranked), domain.DisplayName(ranked[0].Column))
	p.Y.Label.Text = "µg/m³"
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -1
	p.Add(bars)
	p.NominalX(names...)
	return r.save(p, TopPollutedDaysFile)
}

// save encodes p as PNG into the output directory. The file is closed before
// save returns and a close error is reported.
func (r *Renderer) save(p *plot.Plot, name string) (path string, err error) {
	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}

	path = filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := wt.WriteTo(f); err != nil {
		return "", err
	}
	return path, nil
}
