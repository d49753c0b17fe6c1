package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Series is one named line or bar. NaN values are drawn as gaps.
type Series struct {
	Name   string
	Values []float64
}

// Bubble is a single point of a bubble chart. Size is scaled to the symbol size.
type Bubble struct {
	Group string
	X     string
	Y     float64
	Size  float64
}

// Box holds min, q1, median, q3 and max.
type Box [5]float64

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func globalOpts(title, xName, yName string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
	}
}

func lineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		if missing(v) {
			data = append(data, opts.LineData{Value: "-"})
			continue
		}
		data = append(data, opts.LineData{Value: v})
	}
	return data
}

func barData(values []float64) []opts.BarData {
	data := make([]opts.BarData, 0, len(values))
	for _, v := range values {
		if missing(v) {
			data = append(data, opts.BarData{Value: "-"})
			continue
		}
		data = append(data, opts.BarData{Value: v})
	}
	return data
}

// LineChart draws one line per series over the categories x.
func LineChart(title, xName, yName string, x []string, series []Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(title, xName, yName)...)
	line.SetXAxis(x)
	for _, s := range series {
		line.AddSeries(s.Name, lineData(s.Values))
	}
	smoothing := false
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: &smoothing}))
	return line
}

// SlopeChart connects each series' rank across ordered timepoints.
func SlopeChart(title string, timepoints []string, series []Series) *charts.Line {
	return LineChart(title, "Timepoint", "Rank", timepoints, series)
}

// BarChart draws grouped bars. Horizontal charts put the categories on the y axis.
func BarChart(title, xName, yName string, x []string, series []Series, horizontal bool) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(title, xName, yName)...)
	bar.SetXAxis(x)
	for _, s := range series {
		bar.AddSeries(s.Name, barData(s.Values))
	}
	if horizontal {
		bar.XYReversal()
	}
	return bar
}

// OverlayChart draws grouped bars with a line on top, as used for
// per-chromosome deltas across comparisons.
func OverlayChart(title, xName, yName string, x []string, bars []Series, line Series) *charts.Bar {
	bar := BarChart(title, xName, yName, x, bars, false)
	overlay := charts.NewLine()
	overlay.SetXAxis(x).AddSeries(line.Name, lineData(line.Values))
	bar.Overlap(overlay)
	return bar
}

// HeatMap colours rows x columns. Missing cells are left blank.
func HeatMap(title string, columns, rows []string, values [][]float64) *charts.HeatMap {
	lo, hi := math.Inf(1), math.Inf(-1)
	var data []opts.HeatMapData
	for i := range rows {
		for j := range columns {
			v := math.NaN()
			if i < len(values) && j < len(values[i]) {
				v = values[i][j]
			}
			if missing(v) {
				data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, "-"}})
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: columns}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rows}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#ffffbf", "#a50026"}},
		}),
	)
	hm.SetXAxis(columns).AddSeries(title, data)
	return hm
}

// BubbleChart draws one scatter series per group with symbol sizes
// proportional to Size.
func BubbleChart(title, xName, yName string, x []string, points []Bubble) *charts.Scatter {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if !missing(p.Size) {
			lo, hi = math.Min(lo, p.Size), math.Max(hi, p.Size)
		}
	}
	var groups []string
	byGroup := make(map[string][]opts.ScatterData)
	for _, p := range points {
		if missing(p.Y) || missing(p.Size) {
			continue
		}
		if _, ok := byGroup[p.Group]; !ok {
			groups = append(groups, p.Group)
		}
		byGroup[p.Group] = append(byGroup[p.Group], opts.ScatterData{
			Value:      []interface{}{p.X, p.Y, p.Size},
			SymbolSize: SymbolSize(p.Size, lo, hi),
		})
	}
	sc := charts.NewScatter()
	sc.SetGlobalOptions(globalOpts(title, xName, yName)...)
	sc.SetXAxis(x)
	for _, g := range groups {
		sc.AddSeries(g, byGroup[g])
	}
	return sc
}

// SymbolSize maps v in [lo, hi] to a pixel size between 4 and 40.
func SymbolSize(v, lo, hi float64) int {
	const minSize, maxSize = 4, 40
	if hi <= lo {
		return (minSize + maxSize) / 2
	}
	f := (v - lo) / (hi - lo)
	return minSize + int(math.Round(f*(maxSize-minSize)))
}

// DotPlot scatters every value of each group over its category.
func DotPlot(title, yName string, groups []string, values [][]float64) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(globalOpts(title, "", yName)...)
	sc.SetXAxis(groups)
	var data []opts.ScatterData
	for i, g := range groups {
		if i >= len(values) {
			break
		}
		for _, v := range values[i] {
			if missing(v) {
				continue
			}
			data = append(data, opts.ScatterData{Value: []interface{}{g, v}, SymbolSize: 8})
		}
	}
	sc.AddSeries(yName, data)
	return sc
}

// BoxPlot draws one box per group from precomputed five-number summaries.
func BoxPlot(title, yName string, groups []string, boxes []Box) *charts.BoxPlot {
	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(globalOpts(title, "", yName)...)
	data := make([]opts.BoxPlotData, 0, len(boxes))
	for _, b := range boxes {
		value := make([]interface{}, len(b))
		for i, v := range b {
			if missing(v) {
				value[i] = "-"
				continue
			}
			value[i] = v
		}
		data = append(data, opts.BoxPlotData{Value: value})
	}
	bp.SetXAxis(groups).AddSeries(yName, data)
	return bp
}

// RenderPage writes the charts into a single html page.
func RenderPage(path string, chs ...components.Charter) error {
	if len(chs) == 0 {
		return fmt.Errorf("render %s: no charts", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(chs...)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
