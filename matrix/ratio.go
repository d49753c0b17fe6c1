package matrix

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	RatioScale     = 100000
	Glob20Label    = "Total CpG island fragments counts for Glob20"
	GlobMin80Label = "Total CpG island fragments counts for GlobMin80"
)

// RatioTable is the scaled Glob20/GlobMin80 matrix. Inf marks cells whose
// GlobMin80 count was zero; their value is reported as INF.
type RatioTable struct {
	Loci      []string
	Samples   []string
	Ratio     [][]float64
	Inf       [][]bool
	Glob20    [][]float64
	GlobMin80 [][]float64
	// totals of each input, projected onto Samples; nil when the input has no total row
	Total20   []float64
	TotalM80  []float64
}

// labelled reads CGI_ rows of a sheet as label -> sample -> value.
func labelled(grid [][]string) (map[string]map[string]float64, []string) {
	out := make(map[string]map[string]float64)
	if len(grid) == 0 {
		return out, nil
	}
	header := grid[0]
	var cols []string
	for _, h := range header[1:] {
		cols = append(cols, strings.TrimSpace(h))
	}
	for _, row := range grid[1:] {
		if len(row) == 0 {
			continue
		}
		label := strings.TrimSpace(row[0])
		if !strings.HasPrefix(label, "CGI_") {
			continue
		}
		vals := make(map[string]float64, len(cols))
		for j, c := range cols {
			cell := ""
			if j+1 < len(row) {
				cell = row[j+1]
			}
			vals[c] = ParseValue(cell)
		}
		out[label] = vals
	}
	return out, cols
}

func intersectSorted(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range a {
		if in[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// ScaledRatio aligns two fragment-count sheets on their shared CGI_ rows and
// sample columns (both sorted) and computes glob20/globmin80 x 100000.
func ScaledRatio(glob20, globmin80 [][]string) (*RatioTable, error) {
	g20, cols20 := labelled(glob20)
	gm80, colsM80 := labelled(globmin80)
	if len(g20) == 0 || len(gm80) == 0 {
		return nil, ErrNoLoci
	}

	var labels20, labelsM80 []string
	for l := range g20 {
		labels20 = append(labels20, l)
	}
	for l := range gm80 {
		labelsM80 = append(labelsM80, l)
	}
	loci := intersectSorted(labels20, labelsM80)
	cols := intersectSorted(cols20, colsM80)
	if len(loci) == 0 {
		return nil, fmt.Errorf("%w: inputs share no CGI rows", ErrNoLoci)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("inputs share no sample columns")
	}

	rt := &RatioTable{Loci: loci, Samples: cols}
	for _, l := range loci {
		ratio := make([]float64, len(cols))
		inf := make([]bool, len(cols))
		a := make([]float64, len(cols))
		b := make([]float64, len(cols))
		for j, c := range cols {
			a[j], b[j] = g20[l][c], gm80[l][c]
			switch {
			case b[j] == 0:
				inf[j] = true
				ratio[j] = math.Inf(1)
			case math.IsNaN(a[j]) || math.IsNaN(b[j]):
				ratio[j] = math.NaN()
			default:
				ratio[j] = a[j] / b[j] * RatioScale
			}
		}
		rt.Ratio = append(rt.Ratio, ratio)
		rt.Inf = append(rt.Inf, inf)
		rt.Glob20 = append(rt.Glob20, a)
		rt.GlobMin80 = append(rt.GlobMin80, b)
	}

	if t, ok := TotalRow(glob20, TotalLabel); ok {
		rt.Total20 = project(t, cols)
	}
	if t, ok := TotalRow(globmin80, TotalLabel); ok {
		rt.TotalM80 = project(t, cols)
	}
	return rt, nil
}

func project(values map[string]float64, cols []string) []float64 {
	out := make([]float64, len(cols))
	for j, c := range cols {
		v, ok := values[c]
		if !ok {
			v = math.NaN()
		}
		out[j] = v
	}
	return out
}

// InfCount is the number of division-by-zero cells.
func (rt *RatioTable) InfCount() int {
	n := 0
	for _, row := range rt.Inf {
		for _, b := range row {
			if b {
				n++
			}
		}
	}
	return n
}

// Table renders the wide ratio matrix, total rows first.
func (rt *RatioTable) Table(label string) [][]string {
	grid := [][]string{append([]string{label}, rt.Samples...)}
	addRow := func(name string, vals []float64) {
		row := []string{name}
		for _, v := range vals {
			row = append(row, FormatValue(v))
		}
		grid = append(grid, row)
	}
	if rt.Total20 != nil {
		addRow(Glob20Label, rt.Total20)
	}
	if rt.TotalM80 != nil {
		addRow(GlobMin80Label, rt.TotalM80)
	}
	for i, l := range rt.Loci {
		row := []string{l}
		for j, v := range rt.Ratio[i] {
			if rt.Inf[i][j] {
				row = append(row, "INF")
				continue
			}
			row = append(row, FormatValue(v))
		}
		grid = append(grid, row)
	}
	return grid
}

// Matrix returns the ratios with INF cells as NaN.
func (rt *RatioTable) Matrix() *Matrix {
	m := New(append([]string(nil), rt.Loci...), append([]string(nil), rt.Samples...))
	for i := range rt.Loci {
		for j := range rt.Samples {
			if !rt.Inf[i][j] {
				m.Values[i][j] = rt.Ratio[i][j]
			}
		}
	}
	return m
}

// LongRatios stacks the table into Header, Sample, Glob20, GlobMin80 and ratio columns.
func (rt *RatioTable) LongRatios() [][]string {
	grid := [][]string{{"Header", "Sample", "Glob20", "GlobMin80", "Scaled Ratio (x100K)"}}
	for i, l := range rt.Loci {
		for j, s := range rt.Samples {
			ratio := FormatValue(rt.Ratio[i][j])
			if rt.Inf[i][j] {
				ratio = "INF"
			}
			grid = append(grid, []string{l, s, FormatValue(rt.Glob20[i][j]), FormatValue(rt.GlobMin80[i][j]), ratio})
		}
	}
	return grid
}

type GlobalRatio struct {
	Sample    string
	Glob20    float64
	GlobMin80 float64
	Ratio     float64
}

// GlobalRatios computes the sample-level ratio from each sheet's total row,
// over the samples both sheets share.
func GlobalRatios(glob20, globmin80 [][]string) ([]GlobalRatio, error) {
	t20, ok := TotalRow(glob20, TotalLabel)
	if !ok {
		return nil, fmt.Errorf("glob20 sheet has no %q row", TotalLabel)
	}
	tm80, ok := TotalRow(globmin80, TotalLabel)
	if !ok {
		return nil, fmt.Errorf("globmin80 sheet has no %q row", TotalLabel)
	}
	var names20, namesM80 []string
	for s := range t20 {
		names20 = append(names20, s)
	}
	for s := range tm80 {
		namesM80 = append(namesM80, s)
	}
	var out []GlobalRatio
	for _, s := range intersectSorted(names20, namesM80) {
		g := GlobalRatio{Sample: s, Glob20: t20[s], GlobMin80: tm80[s]}
		if g.GlobMin80 == 0 {
			g.Ratio = math.Inf(1)
		} else {
			g.Ratio = g.Glob20 / g.GlobMin80 * RatioScale
		}
		out = append(out, g)
	}
	return out, nil
}
