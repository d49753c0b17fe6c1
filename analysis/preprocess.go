package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/utils"
)

const (
	SelectedSuffix   = "_samples-of-interest.xlsx"
	RatioMatrixName  = "scaled_fragment_ratios_matrix.xlsx"
	RatioLongName    = "scaled_ratios_long.csv"
	GlobalRatioName  = "global_ratios.csv"
	GlobalMatrixName = "global_ratio_matrix.csv"
	StructuredName   = "structured_gene_annotation.csv"
	GeneMapName      = "gene_cgi_map.csv"
	GeneMatrixName   = "gene_methylation_matrix.csv"
)

// SelectedPath is where SelectPatients writes the filtered copy of input.
func SelectedPath(input, outDir string) string {
	return filepath.Join(outDir, utils.BaseName(input)+SelectedSuffix)
}

// MergedPath is the merged sheet of one input family (glob20, globmin80).
func MergedPath(outDir, family string) string {
	return filepath.Join(outDir, "merged_output_"+strings.ToLower(family)+".xlsx")
}

// ------------------------------------------- Step 1: select patients ------------------------------------------- //

// SelectPatients keeps the label column and the columns of the listed
// patients in every input and writes one workbook per input into outDir.
func SelectPatients(inputs, ids []string, outDir string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no patient ids to select")
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}
	var written []string
	for _, in := range inputs {
		grid, err := matrix.ReadTable(in)
		if err != nil {
			return written, err
		}
		if len(grid) == 0 {
			return written, fmt.Errorf("%s is empty", in)
		}
		selected := matrix.SelectPatients(grid, ids)
		fmt.Printf("%s: kept %d of %d sample columns\n", filepath.Base(in), len(selected[0])-1, len(grid[0])-1)

		out := SelectedPath(in, outDir)
		if err := writeWorkbook(out, []string{"Sheet1"}, [][][]string{selected}, false); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

// ------------------------------------------- Step 2: merge filtered ------------------------------------------- //

// MergeFiltered joins the filtered sheets on their Header column.
func MergeFiltered(inputs []string, outPath string) ([][]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no filtered files to merge")
	}
	var grids [][][]string
	for _, in := range inputs {
		fmt.Printf("Processing %s...\n", filepath.Base(in))
		grid, err := matrix.ReadTable(in)
		if err != nil {
			return nil, err
		}
		grids = append(grids, grid)
	}
	merged, err := matrix.MergeTables(grids)
	if err != nil {
		return nil, err
	}
	if err := writeWorkbook(outPath, []string{"Sheet1"}, [][][]string{merged}, false); err != nil {
		return nil, err
	}
	fmt.Printf("Merged file saved as: %s\n", outPath)
	return merged, nil
}

// ------------------------------------------- Step 3: scaled ratios ------------------------------------------- //

// ScaledRatios computes Glob20/GlobMin80 x 100000 per shared locus and sample.
// The wide matrix is written as an xlsx with INF cells highlighted, alongside
// a long table and the sample-level ratios of the total rows.
func ScaledRatios(glob20Path, globMin80Path, outDir string) (*matrix.RatioTable, error) {
	g20, err := matrix.ReadTable(glob20Path)
	if err != nil {
		return nil, err
	}
	gm80, err := matrix.ReadTable(globMin80Path)
	if err != nil {
		return nil, err
	}
	rt, err := matrix.ScaledRatio(g20, gm80)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}

	out := filepath.Join(outDir, RatioMatrixName)
	if err := writeWorkbook(out, []string{"Sheet1"}, [][][]string{rt.Table("Header")}, true); err != nil {
		return nil, err
	}
	if err := report.WriteCSV(filepath.Join(outDir, RatioLongName), rt.LongRatios()); err != nil {
		return nil, err
	}

	global, err := matrix.GlobalRatios(g20, gm80)
	if err != nil {
		fmt.Printf("Skipping sample-level ratios: %v\n", err)
	} else {
		grid := [][]string{{"Sample", "Glob20", "GlobMin80", "Scaled Ratio (x100K)"}}
		wide := [][]string{{"Header"}, {"Scaled Ratio (x100K)"}}
		for _, g := range global {
			ratio := matrix.FormatValue(g.Ratio)
			if g.GlobMin80 == 0 {
				ratio = "INF"
			}
			grid = append(grid, []string{g.Sample, matrix.FormatValue(g.Glob20), matrix.FormatValue(g.GlobMin80), ratio})
			wide[0] = append(wide[0], g.Sample)
			wide[1] = append(wide[1], ratio)
		}
		if err := report.WriteCSV(filepath.Join(outDir, GlobalRatioName), grid); err != nil {
			return nil, err
		}
		if err := report.WriteCSV(filepath.Join(outDir, GlobalMatrixName), wide); err != nil {
			return nil, err
		}
	}
	fmt.Printf("Saved %d x %d ratio matrix (%d INF cells) to %s\n", len(rt.Loci), len(rt.Samples), rt.InfCount(), out)
	return rt, nil
}

// ------------------------------------------- Gene annotation ------------------------------------------- //

// GeneAnnotation parses the locus labels of matrixPath into a structured
// annotation table and melts it into the cgi_id/gene_name map.
func GeneAnnotation(matrixPath, outDir string) (annotation.GeneMap, error) {
	m, err := loadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	rows, skipped := annotation.Structure(m.Loci)
	for _, s := range skipped {
		fmt.Printf("Skipping malformed locus label: %s\n", s)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no parsable CGI loci", matrixPath)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}
	structured := annotation.StructuredTable(rows)
	if err := report.WriteCSV(filepath.Join(outDir, StructuredName), structured); err != nil {
		return nil, err
	}
	gm, err := annotation.Melt(structured)
	if err != nil {
		return nil, err
	}
	if err := report.WriteCSV(filepath.Join(outDir, GeneMapName), gm.Table()); err != nil {
		return nil, err
	}
	fmt.Printf("Gene map: %d loci, %d cgi-gene pairs, %d genes\n", len(rows), len(gm), len(gm.Genes()))
	return gm, nil
}

// ------------------------------------------- Step 6: gene matrix ------------------------------------------- //

// GeneMatrix aggregates every locus whose label contains a mapped gene name
// into one row per gene.
func GeneMatrix(matrixPath, geneMapPath, outPath string, agg annotation.Aggregate) (*matrix.Matrix, error) {
	m, err := loadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	gm, err := annotation.ReadGeneMap(geneMapPath)
	if err != nil {
		return nil, err
	}
	matches := annotation.MatchLoci(gm.Genes(), m.Loci)
	genes := annotation.GeneMatrix(m, matches, agg)
	if len(genes.Loci) == 0 {
		return nil, fmt.Errorf("no gene of %s matches a locus of %s", geneMapPath, matrixPath)
	}
	if err := report.WriteCSV(outPath, genes.Table("Gene")); err != nil {
		return nil, err
	}
	fmt.Printf("Saved %s gene methylation matrix (%d genes) to: %s\n", agg, len(genes.Loci), outPath)
	return genes, nil
}
