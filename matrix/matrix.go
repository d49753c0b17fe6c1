package matrix

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNoLoci = errors.New("no CGI_chr rows found")

const (
	LocusMarker = "CGI_chr"
	TotalLabel  = "Total CpG island fragments counts for this particular spreadsheet"
)

// Matrix holds loci x samples values. NaN marks a missing or non-numeric cell.
type Matrix struct {
	Loci    []string
	Samples []string
	Values  [][]float64
}

func New(loci, sampleNames []string) *Matrix {
	m := &Matrix{Loci: loci, Samples: sampleNames, Values: make([][]float64, len(loci))}
	for i := range m.Values {
		row := make([]float64, len(sampleNames))
		for j := range row {
			row[j] = math.NaN()
		}
		m.Values[i] = row
	}
	return m
}

// ParseValue converts a cell to a float, returning NaN for anything non-numeric.
func ParseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FromTable extracts the locus block of a fragment-count sheet: every row from
// the first label containing CGI_chr downwards. Rows with no values are dropped.
func FromTable(grid [][]string) (*Matrix, error) {
	if len(grid) == 0 {
		return nil, ErrNoLoci
	}
	start := -1
	for i := 1; i < len(grid); i++ {
		if len(grid[i]) > 0 && strings.Contains(grid[i][0], LocusMarker) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoLoci
	}
	return fromRows(grid[0], grid[start:])
}

// FromLabelled reads every row under the header, as for gene or rank tables
// whose row labels are not loci.
func FromLabelled(grid [][]string) (*Matrix, error) {
	if len(grid) < 2 {
		return nil, fmt.Errorf("table has no data rows")
	}
	m, err := fromRows(grid[0], grid[1:])
	if errors.Is(err, ErrNoLoci) {
		return nil, fmt.Errorf("table has no values")
	}
	return m, err
}

func fromRows(header []string, rows [][]string) (*Matrix, error) {
	if len(header) == 0 {
		return nil, ErrNoLoci
	}
	sampleNames := make([]string, 0, len(header))
	for _, h := range header[1:] {
		sampleNames = append(sampleNames, strings.TrimSpace(h))
	}

	m := &Matrix{Samples: sampleNames}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		values := make([]float64, len(sampleNames))
		empty := true
		for j := range sampleNames {
			cell := ""
			if j+1 < len(row) {
				cell = strings.TrimSpace(row[j+1])
			}
			if cell != "" && !strings.EqualFold(cell, "nan") {
				empty = false
			}
			values[j] = ParseValue(cell)
		}
		if empty {
			continue
		}
		m.Loci = append(m.Loci, strings.TrimSpace(row[0]))
		m.Values = append(m.Values, values)
	}
	if len(m.Loci) == 0 {
		return nil, ErrNoLoci
	}
	return m, nil
}

// TotalRow returns the values of the row labelled label, keyed by sample.
func TotalRow(grid [][]string, label string) (map[string]float64, bool) {
	if len(grid) == 0 {
		return nil, false
	}
	header := grid[0]
	for _, row := range grid[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) != label {
			continue
		}
		out := make(map[string]float64, len(header)-1)
		for j := 1; j < len(header); j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			out[strings.TrimSpace(header[j])] = ParseValue(cell)
		}
		return out, true
	}
	return nil, false
}

func (m *Matrix) SampleIndex(name string) int {
	for j, s := range m.Samples {
		if s == name {
			return j
		}
	}
	return -1
}

func (m *Matrix) LocusIndex(id string) int {
	for i, l := range m.Loci {
		if l == id {
			return i
		}
	}
	return -1
}

func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, len(m.Loci))
	for i := range m.Loci {
		col[i] = m.Values[i][j]
	}
	return col
}

// Select keeps the named samples in the given order; unknown names are skipped.
func (m *Matrix) Select(names []string) *Matrix {
	var idx []int
	var kept []string
	for _, n := range names {
		if j := m.SampleIndex(n); j >= 0 {
			idx = append(idx, j)
			kept = append(kept, n)
		}
	}
	out := &Matrix{Loci: append([]string(nil), m.Loci...), Samples: kept, Values: make([][]float64, len(m.Loci))}
	for i := range m.Loci {
		row := make([]float64, len(idx))
		for k, j := range idx {
			row[k] = m.Values[i][j]
		}
		out.Values[i] = row
	}
	return out
}

// SelectRows keeps the named rows in the given order; unknown ids are skipped.
func (m *Matrix) SelectRows(ids []string) *Matrix {
	out := &Matrix{Samples: append([]string(nil), m.Samples...)}
	for _, id := range ids {
		if i := m.LocusIndex(id); i >= 0 {
			out.Loci = append(out.Loci, id)
			out.Values = append(out.Values, append([]float64(nil), m.Values[i]...))
		}
	}
	return out
}

// Table renders the matrix as a grid with label as the first header cell.
func (m *Matrix) Table(label string) [][]string {
	grid := make([][]string, 0, len(m.Loci)+1)
	grid = append(grid, append([]string{label}, m.Samples...))
	for i, l := range m.Loci {
		row := make([]string, 0, len(m.Samples)+1)
		row = append(row, l)
		for _, v := range m.Values[i] {
			row = append(row, FormatValue(v))
		}
		grid = append(grid, row)
	}
	return grid
}
