package matrix

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/pgzip"
	"github.com/xuri/excelize/v2"
)

// ReadTable loads a spreadsheet as a grid of strings with the header as row 0.
// Supported inputs are .xlsx (first sheet), .csv, .tsv, .txt and their .gz forms.
func ReadTable(path string) ([][]string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return ReadSheet(path, "")
	case strings.HasSuffix(lower, ".gz"):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		return readDelimited(gz, delimiterFor(strings.TrimSuffix(lower, ".gz")))
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readDelimited(f, delimiterFor(lower))
	}
}

// ReadSheet reads one sheet of an xlsx workbook. An empty sheet name selects
// the first sheet. Ragged rows are padded to the widest row.
func ReadSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %s of %s: %w", sheet, path, err)
	}
	return pad(rows), nil
}

func delimiterFor(name string) rune {
	if strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt") {
		return '\t'
	}
	return ','
}

func readDelimited(r io.Reader, delim rune) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if distinctHeader(raw, delim) {
		df := dataframe.ReadCSV(bytes.NewReader(raw),
			dataframe.WithDelimiter(delim),
			dataframe.HasHeader(true),
			dataframe.DetectTypes(false),
			dataframe.DefaultType(series.String),
		)
		if df.Err == nil {
			return pad(df.Records()), nil
		}
	}

	// header-only, ragged or repeated-header files
	rows, err := csvReader(raw, delim).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing delimited table: %w", err)
	}
	return pad(rows), nil
}

func csvReader(raw []byte, delim rune) *csv.Reader {
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// distinctHeader reports whether every header name is non-blank and unique.
// Dataframes rename blank and repeated columns, which would change sample names.
func distinctHeader(raw []byte, delim rune) bool {
	header, err := csvReader(raw, delim).Read()
	if err != nil {
		return false
	}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if strings.TrimSpace(h) == "" || seen[h] {
			return false
		}
		seen[h] = true
	}
	return true
}

func pad(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows
}

func LoadPatientIDs(path string) ([]string, error) {
	grid, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	ids := samples.PatientIDsFromTable(grid)
	if len(ids) == 0 {
		return nil, fmt.Errorf("no patient ids found in %s", path)
	}
	return ids, nil
}
