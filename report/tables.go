package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/pgzip"
)

// WriteCSV writes grid (header first) to path. A ".gz" suffix compresses the
// output with pgzip.
func WriteCSV(path string, grid [][]string) error {
	if len(grid) == 0 {
		return fmt.Errorf("write %s: empty table", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zw := pgzip.NewWriter(f)
		defer zw.Close()
		w = zw
	}
	if err := writeGrid(w, grid); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeGrid(w io.Writer, grid [][]string) error {
	rows := squareUp(grid)
	if !gotaSafe(rows) {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	}
	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

// gotaSafe reports whether a dataframe round trip keeps the grid unchanged:
// at least one data row, unique non-empty headers, and no cells gota would
// rewrite as NaN.
func gotaSafe(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	seen := make(map[string]bool)
	for _, h := range rows[0] {
		if h == "" || seen[h] {
			return false
		}
		seen[h] = true
	}
	for _, row := range rows[1:] {
		for _, c := range row {
			switch c {
			case "NA", "NaN", "<nil>":
				return false
			}
		}
	}
	return true
}

func squareUp(grid [][]string) [][]string {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		if len(row) == width {
			out[i] = row
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}
