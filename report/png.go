package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// LinePNG saves a static line plot with one line per series over the
// categories x. Missing values are skipped.
func LinePNG(path, title, xName, yName string, x []string, series []Series) error {
	if len(x) == 0 {
		return fmt.Errorf("plot %s: no categories", path)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xName
	p.Y.Label.Text = yName
	p.Add(plotter.NewGrid())

	for i, s := range series {
		points := plotter.XYs{}
		for j, v := range s.Values {
			if j >= len(x) || missing(v) {
				continue
			}
			points = append(points, plotter.XY{X: float64(j), Y: v})
		}
		if len(points) == 0 {
			continue
		}
		line, pts, err := plotter.NewLinePoints(points)
		if err != nil {
			return fmt.Errorf("plot %s series %s: %w", path, s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		pts.Shape = plotutil.Shape(i)
		pts.Color = plotutil.Color(i)
		p.Add(line, pts)
		p.Legend.Add(s.Name, line, pts)
	}
	p.NominalX(x...)
	return savePNG(p, path, 16*vg.Inch, 9*vg.Inch)
}

// BarPNG saves a horizontal bar plot of values labelled by names. Missing
// values are drawn as zero.
func BarPNG(path, title, valueName string, names []string, values []float64) error {
	if len(names) == 0 {
		return fmt.Errorf("plot %s: no bars", path)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = valueName

	vals := make(plotter.Values, len(names))
	for i := range names {
		if i < len(values) && !missing(values[i]) {
			vals[i] = values[i]
		}
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return fmt.Errorf("plot %s: %w", path, err)
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalY(names...)

	height := vg.Length(len(names))*vg.Points(18) + 2*vg.Inch
	return savePNG(p, path, 10*vg.Inch, height)
}

func savePNG(p *plot.Plot, path string, w, h vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
