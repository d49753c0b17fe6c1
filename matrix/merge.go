package matrix

import (
	"fmt"
	"strings"
)

// SelectPatients keeps the label column plus every column whose header
// contains one of ids.
func SelectPatients(grid [][]string, ids []string) [][]string {
	if len(grid) == 0 {
		return nil
	}
	keep := []int{0}
	for j, h := range grid[0] {
		if j == 0 {
			continue
		}
		for _, id := range ids {
			if id != "" && strings.Contains(h, id) {
				keep = append(keep, j)
				break
			}
		}
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		r := make([]string, len(keep))
		for k, j := range keep {
			if j < len(row) {
				r[k] = row[j]
			}
		}
		out[i] = r
	}
	return out
}

// MergeTables outer-joins sheets on their first (Header) column. Row labels
// keep first-seen order and sample columns are concatenated.
func MergeTables(grids [][][]string) ([][]string, error) {
	var labels []string
	rowIndex := make(map[string]int)
	header := []string{"Header"}
	type block struct {
		cols  int
		cells map[string][]string
	}
	var blocks []block

	for n, grid := range grids {
		if len(grid) == 0 {
			return nil, fmt.Errorf("table %d is empty", n)
		}
		if strings.TrimSpace(grid[0][0]) != "" {
			header[0] = strings.TrimSpace(grid[0][0])
		}
		b := block{cols: len(grid[0]) - 1, cells: make(map[string][]string)}
		header = append(header, grid[0][1:]...)
		for _, row := range grid[1:] {
			if len(row) == 0 {
				continue
			}
			label := strings.TrimSpace(row[0])
			if _, ok := rowIndex[label]; !ok {
				rowIndex[label] = len(labels)
				labels = append(labels, label)
			}
			vals := make([]string, b.cols)
			copy(vals, row[1:])
			b.cells[label] = vals
		}
		blocks = append(blocks, b)
	}

	out := [][]string{header}
	for _, label := range labels {
		row := []string{label}
		for _, b := range blocks {
			vals, ok := b.cells[label]
			if !ok {
				vals = make([]string, b.cols)
			}
			row = append(row, vals...)
		}
		out = append(out, row)
	}
	return out, nil
}
