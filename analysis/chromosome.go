package analysis

import (
	"fmt"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/delta"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
)

const ChromSummaryName = "chr_avg_summary.xlsx"

// ChromosomeDeltas averages the paired locus deltas of every comparison per
// chromosome. The last comparison is drawn as a line over bars of the others.
func ChromosomeDeltas(matrixPath string, pm *samples.PatientMatcher, opts Options) ([]delta.ChromDelta, error) {
	m, err := loadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	metas, err := metadata(m, pm)
	if err != nil {
		return nil, err
	}
	valid := samples.Valid(metas, false)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%s: no sample matches a patient", matrixPath)
	}

	if len(opts.Comparisons) == 0 {
		return nil, fmt.Errorf("no comparisons to summarise")
	}
	grouped := collapseFor(m, valid, opts.Comparisons, opts.missingPolicy())
	var out []delta.ChromDelta
	var series []report.Series
	for i, cmp := range opts.Comparisons {
		cds := delta.Chromosomes(grouped[i], cmp)
		s := report.Series{Name: cmp.Label}
		for _, cd := range cds {
			s.Values = append(s.Values, cd.MeanDelta)
		}
		series = append(series, s)
		out = append(out, cds...)
	}

	if err := utils.EnsureDir(opts.PlotDir); err != nil {
		return nil, err
	}
	grid := [][]string{{"Chromosome", "Mean_Delta", "Comparison"}}
	for _, cd := range out {
		grid = append(grid, []string{cd.Chromosome, matrix.FormatValue(cd.MeanDelta), cd.Comparison})
	}
	if err := writeWorkbook(filepath.Join(opts.PlotDir, ChromSummaryName), []string{"Chromosome_Deltas"}, [][][]string{grid}, false); err != nil {
		return nil, err
	}

	chroms := matrix.ChromosomeOrder()
	title := "Avg Methylation Change per Chromosome"
	last := len(series) - 1
	chart := report.OverlayChart(title, "Chromosome", "Mean Methylation Delta", chroms, series[:last], series[last])
	if err := report.RenderPage(filepath.Join(opts.PlotDir, "chr_avg_overlay.html"), chart); err != nil {
		return nil, err
	}
	if err := report.LinePNG(filepath.Join(opts.PlotDir, "chr_avg_overlay.png"), title, "Chromosome", "Mean Methylation Delta", chroms, series); err != nil {
		return nil, err
	}
	fmt.Printf("Saved chromosome summary to: %s\n", filepath.Join(opts.PlotDir, ChromSummaryName))
	return out, nil
}
