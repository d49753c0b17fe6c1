package annotation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gmaffy/emseq-whisperer/matrix"
)

const IndexColumn = "CGI index or probe ID"

// ------------------------------------------- Structured annotation ------------------------------------------- //

// Structure parses every CGI_ locus into a structured annotation row. Labels
// that do not parse are skipped and returned separately.
func Structure(loci []string) ([]matrix.Locus, []string) {
	var rows []matrix.Locus
	var skipped []string
	for _, id := range loci {
		id = strings.TrimSpace(id)
		if !strings.HasPrefix(id, "CGI_") {
			continue
		}
		l, err := matrix.ParseLocus(id)
		if err != nil {
			skipped = append(skipped, id)
			continue
		}
		rows = append(rows, l)
	}
	return rows, skipped
}

// StructuredTable lays rows out as chr, start, end, Gene1..GeneN and the CGI index.
func StructuredTable(rows []matrix.Locus) [][]string {
	maxGenes := 0
	for _, r := range rows {
		if len(r.Genes) > maxGenes {
			maxGenes = len(r.Genes)
		}
	}
	header := []string{"chr", "start genomic coordinate", "end genomic coordinate"}
	for i := 1; i <= maxGenes; i++ {
		header = append(header, fmt.Sprintf("Gene%d", i))
	}
	header = append(header, IndexColumn)

	grid := [][]string{header}
	for _, r := range rows {
		row := []string{r.Chrom, strconv.Itoa(r.Start), strconv.Itoa(r.End)}
		for i := 0; i < maxGenes; i++ {
			g := ""
			if i < len(r.Genes) {
				g = r.Genes[i]
			}
			row = append(row, g)
		}
		row = append(row, r.Index)
		grid = append(grid, row)
	}
	return grid
}

// ------------------------------------------- Gene map ------------------------------------------- //

type Pair struct {
	CGIID string
	Gene  string
}

// GeneMap is the deduplicated long-format cgi_id -> gene_name table.
type GeneMap []Pair

// Melt turns a structured annotation table into a GeneMap. Blank gene cells
// are dropped and duplicate pairs kept once.
func Melt(grid [][]string) (GeneMap, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty annotation table")
	}
	col := make(map[string]int)
	var geneCols []int
	for j, h := range grid[0] {
		h = strings.TrimSpace(h)
		col[h] = j
		if strings.HasPrefix(h, "Gene") {
			geneCols = append(geneCols, j)
		}
	}
	for _, need := range []string{"chr", "start genomic coordinate", "end genomic coordinate"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("annotation table is missing column %q", need)
		}
	}
	if len(geneCols) == 0 {
		return nil, fmt.Errorf("no columns starting with 'Gene' found in the annotation table")
	}

	seen := make(map[Pair]bool)
	var gm GeneMap
	// value_vars order: every Gene1 row first, then Gene2, ...
	for _, gc := range geneCols {
		for _, row := range grid[1:] {
			gene := cell(row, gc)
			if gene == "" || strings.EqualFold(gene, "nan") {
				continue
			}
			start, err := coordinate(cell(row, col["start genomic coordinate"]))
			if err != nil {
				return nil, err
			}
			end, err := coordinate(cell(row, col["end genomic coordinate"]))
			if err != nil {
				return nil, err
			}
			p := Pair{CGIID: fmt.Sprintf("%s:%d-%d", cell(row, col["chr"]), start, end), Gene: gene}
			if seen[p] {
				continue
			}
			seen[p] = true
			gm = append(gm, p)
		}
	}
	return gm, nil
}

func cell(row []string, j int) string {
	if j < len(row) {
		return strings.TrimSpace(row[j])
	}
	return ""
}

func coordinate(s string) (int, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad genomic coordinate %q: %w", s, err)
	}
	return int(math.Trunc(v)), nil
}

// GeneMapFromTable reads a cgi_id/gene_name table.
func GeneMapFromTable(grid [][]string) (GeneMap, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty gene map")
	}
	idCol, geneCol := -1, -1
	for j, h := range grid[0] {
		switch strings.TrimSpace(h) {
		case "cgi_id":
			idCol = j
		case "gene_name":
			geneCol = j
		}
	}
	if idCol < 0 || geneCol < 0 {
		return nil, fmt.Errorf("gene map needs cgi_id and gene_name columns, got %v", grid[0])
	}
	var gm GeneMap
	for _, row := range grid[1:] {
		gene := cell(row, geneCol)
		if gene == "" || strings.EqualFold(gene, "nan") {
			continue
		}
		gm = append(gm, Pair{CGIID: cell(row, idCol), Gene: gene})
	}
	return gm, nil
}

func ReadGeneMap(path string) (GeneMap, error) {
	grid, err := matrix.ReadTable(path)
	if err != nil {
		return nil, err
	}
	gm, err := GeneMapFromTable(grid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return gm, nil
}

func (gm GeneMap) Table() [][]string {
	grid := [][]string{{"cgi_id", "gene_name"}}
	for _, p := range gm {
		grid = append(grid, []string{p.CGIID, p.Gene})
	}
	return grid
}

// Genes lists distinct gene names in first-seen order.
func (gm GeneMap) Genes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range gm {
		if !seen[p.Gene] {
			seen[p.Gene] = true
			out = append(out, p.Gene)
		}
	}
	return out
}

// ------------------------------------------- Locus -> gene lookups ------------------------------------------- //

type Lookup func(locusID string) string

// LocusGenes resolves a locus to a gene through its chr:start-end id, falling
// back to the first gene embedded in the locus label.
func LocusGenes(gm GeneMap) Lookup {
	byID := make(map[string]string)
	for _, p := range gm {
		if _, ok := byID[p.CGIID]; !ok {
			byID[p.CGIID] = p.Gene
		}
	}
	return func(locusID string) string {
		l, err := matrix.ParseLocus(locusID)
		if err != nil {
			return ""
		}
		if g, ok := byID[l.MapID()]; ok {
			return g
		}
		if len(l.Genes) > 0 {
			return l.Genes[0]
		}
		return ""
	}
}

type GeneLoci struct {
	Gene string
	Loci []string
}

// MatchLoci assigns to each gene every locus whose label contains the gene
// name. Genes with no locus are left out.
func MatchLoci(genes []string, loci []string) []GeneLoci {
	var out []GeneLoci
	seenGene := make(map[string]bool)
	for _, g := range genes {
		if g == "" || seenGene[g] {
			continue
		}
		seenGene[g] = true
		var matched []string
		for _, l := range loci {
			if strings.Contains(l, g) {
				matched = append(matched, l)
			}
		}
		if len(matched) > 0 {
			out = append(out, GeneLoci{Gene: g, Loci: matched})
		}
	}
	return out
}

// MultiLocus keeps genes matched to at least minLoci loci.
func MultiLocus(matches []GeneLoci, minLoci int) []GeneLoci {
	var out []GeneLoci
	for _, gl := range matches {
		if len(gl.Loci) >= minLoci {
			out = append(out, gl)
		}
	}
	return out
}

type Aggregate string

const (
	Sum  Aggregate = "sum"
	Mean Aggregate = "mean"
)

func ParseAggregate(s string) (Aggregate, error) {
	switch Aggregate(strings.ToLower(strings.TrimSpace(s))) {
	case Sum:
		return Sum, nil
	case Mean, "":
		return Mean, nil
	}
	return "", fmt.Errorf("unknown aggregate %q (want sum or mean)", s)
}

// GeneMatrix builds a gene x sample matrix from the matched loci. Missing
// cells are skipped; a sum over no values is 0 and a mean over no values NaN.
func GeneMatrix(m *matrix.Matrix, matches []GeneLoci, agg Aggregate) *matrix.Matrix {
	index := make(map[string]int, len(m.Loci))
	for i, l := range m.Loci {
		index[l] = i
	}
	var genes []string
	var rows [][]float64
	for _, gl := range matches {
		var idx []int
		for _, l := range gl.Loci {
			if i, ok := index[l]; ok {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}
		row := make([]float64, len(m.Samples))
		for j := range m.Samples {
			sum, n := 0.0, 0
			for _, i := range idx {
				v := m.Values[i][j]
				if math.IsNaN(v) {
					continue
				}
				sum += v
				n++
			}
			switch {
			case agg == Sum:
				row[j] = sum
			case n == 0:
				row[j] = math.NaN()
			default:
				row[j] = sum / float64(n)
			}
		}
		genes = append(genes, gl.Gene)
		rows = append(rows, row)
	}
	return &matrix.Matrix{Loci: genes, Samples: append([]string(nil), m.Samples...), Values: rows}
}
