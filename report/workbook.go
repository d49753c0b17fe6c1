package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Workbook collects named tables and saves them as one xlsx file.
type Workbook struct {
	xlsx     *excelize.File
	sheets   []string
	grids    map[string][][]string
	infStyle int
}

func NewWorkbook() (*Workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FF9999"}},
		Font: &excelize.Font{Bold: true, Color: "#9C0006"},
	})
	if err != nil {
		return nil, err
	}
	return &Workbook{xlsx: f, grids: make(map[string][][]string), infStyle: style}, nil
}

// SheetName makes name a valid, unique sheet name.
func (wb *Workbook) SheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = "Sheet"
	}
	base := truncate(clean, maxSheetName)
	candidate := base
	for n := 2; wb.grids[candidate] != nil; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// AddSheet writes grid into a new sheet and returns the name it was given.
// Numeric cells are stored as numbers.
func (wb *Workbook) AddSheet(name string, grid [][]string) (string, error) {
	name = wb.SheetName(name)
	if len(wb.sheets) == 0 {
		if err := wb.xlsx.SetSheetName("Sheet1", name); err != nil {
			return "", err
		}
	} else if _, err := wb.xlsx.NewSheet(name); err != nil {
		return "", err
	}
	for i, row := range grid {
		values := make([]interface{}, len(row))
		for j, c := range row {
			values[j] = cellValue(c, i == 0 || j == 0)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		if err := wb.xlsx.SetSheetRow(name, cell, &values); err != nil {
			return "", fmt.Errorf("sheet %s row %d: %w", name, i+1, err)
		}
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		if err := wb.xlsx.SetColWidth(name, "A", "A", 40); err != nil {
			return "", err
		}
	}
	wb.sheets = append(wb.sheets, name)
	if grid == nil {
		grid = [][]string{}
	}
	wb.grids[name] = grid
	return name, nil
}

// cellValue writes numeric cells as numbers. Headers and the label column,
// which holds ids such as chromosome 1, stay text.
func cellValue(c string, text bool) interface{} {
	if text || c == "" {
		return c
	}
	v, err := strconv.ParseFloat(c, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return c
	}
	return v
}

// HighlightINF fills every "INF" cell of sheet in red and returns how many
// cells were marked.
func (wb *Workbook) HighlightINF(sheet string) (int, error) {
	grid, ok := wb.grids[sheet]
	if !ok {
		return 0, fmt.Errorf("no sheet %q", sheet)
	}
	n := 0
	for i, row := range grid {
		for j, c := range row {
			if c != "INF" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return n, err
			}
			if err := wb.xlsx.SetCellStyle(sheet, cell, cell, wb.infStyle); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (wb *Workbook) Save(path string) error {
	if len(wb.sheets) == 0 {
		return fmt.Errorf("write %s: workbook has no sheets", path)
	}
	wb.xlsx.SetActiveSheet(0)
	if err := wb.xlsx.SaveAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return wb.xlsx.Close()
}
