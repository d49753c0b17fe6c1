package analysis

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/components"
	"golang.org/x/sync/errgroup"

	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/gmaffy/emseq-whisperer/delta"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
)

const (
	GeneDeltaDir = "heatmaps-lineplots"
	RankDir      = "rank-slopeplot"
)

// GeneDeltaResult holds the per-gene deltas of every comparison and the top
// genes picked from the selection comparison.
type GeneDeltaResult struct {
	Comparisons []delta.Comparison
	Results     [][]delta.Result
	Selection   delta.Comparison
	TopGenes    []string
	Matrix      *matrix.Matrix
}

func byTimepointOnly(m samples.Meta) samples.Key {
	return samples.Key{Timepoint: string(m.Timepoint)}
}

// GeneDeltas averages the loci of every gene with at least MinLoci matched
// loci, computes paired deltas per comparison and draws the top genes of the
// selection comparison as heatmaps and line plots, overall and per patient.
func GeneDeltas(matrixPath, geneMapPath string, pm *samples.PatientMatcher, opts Options) (*GeneDeltaResult, error) {
	m, err := loadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	gm, err := annotation.ReadGeneMap(geneMapPath)
	if err != nil {
		return nil, err
	}
	all, err := metadata(m, pm)
	if err != nil {
		return nil, err
	}
	valid := samples.Valid(all, false)

	matches := annotation.MultiLocus(annotation.MatchLoci(gm.Genes(), m.Loci), opts.MinLoci)
	genes := annotation.GeneMatrix(m, matches, annotation.Mean)
	if len(genes.Loci) == 0 {
		return nil, fmt.Errorf("no gene of %s has %d or more loci in %s", geneMapPath, opts.MinLoci, matrixPath)
	}
	fmt.Printf("%d genes with at least %d CpG loci\n", len(genes.Loci), opts.MinLoci)

	dir := filepath.Join(opts.PlotDir, GeneDeltaDir)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}

	res := &GeneDeltaResult{Comparisons: opts.Comparisons, Results: make([][]delta.Result, len(opts.Comparisons)), Matrix: genes}
	var g errgroup.Group
	g.SetLimit(opts.threads())
	for i, cmp := range opts.Comparisons {
		g.Go(func() error {
			results, err := delta.Genes(genes, valid, cmp, opts.Delta)
			if err != nil {
				return fmt.Errorf("%s: %w", cmp.Label, err)
			}
			res.Results[i] = results
			return report.WriteCSV(filepath.Join(dir, cmp.Slug()+"_ttest.csv"), resultRows(results, "Gene"))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deltaGrid := combinedDeltas(genes.Loci, opts.Comparisons, res.Results)
	if err := report.WriteCSV(filepath.Join(dir, "gene_deltas_all_comparisons.csv"), deltaGrid); err != nil {
		return nil, err
	}

	res.Selection = opts.selectionComparison()
	for i, cmp := range opts.Comparisons {
		if cmp == res.Selection {
			res.TopGenes = resultIDs(delta.Top(res.Results[i], opts.TopN))
		}
	}
	if len(res.TopGenes) == 0 {
		fmt.Printf("No gene has %s deltas; skipping gene plots\n", res.Selection.Label)
		return res, nil
	}

	if err := report.WriteCSV(filepath.Join(dir, "full_gene_methylation_matrix.csv"), genes.Table("Gene")); err != nil {
		return nil, err
	}
	top := genes.SelectRows(res.TopGenes)
	if err := report.WriteCSV(filepath.Join(dir, fmt.Sprintf("top%d_gene_methylation_matrix.csv", opts.TopN)), top.Table("Gene")); err != nil {
		return nil, err
	}

	suffix := fmt.Sprintf("(Top %d by Δ %s)", len(res.TopGenes), res.Selection.Label)
	avg := matrix.CollapseBy(top, all, byTimepointOnly, matrix.MissingNaN)
	chs, err := geneTrendCharts(avg, dir, "avg_methylation_lineplot.png",
		"Average Methylation per Gene Across Timepoints "+suffix,
		"Methylation Trends Across Timepoints "+suffix, "Average Methylation")
	if err != nil {
		return nil, err
	}

	sheets := []string{"All_Comparisons"}
	grids := [][][]string{deltaGrid}
	for i, cmp := range opts.Comparisons {
		sheets = append(sheets, cmp.Slug())
		grids = append(grids, resultRows(res.Results[i], "Gene"))
	}
	sheets = append(sheets, "Top_Genes")
	grids = append(grids, top.Table("Gene"))

	for _, p := range samples.Patients(valid) {
		var names []string
		var metas []samples.Meta
		for _, meta := range all {
			if meta.Patient == p {
				names = append(names, meta.Sample)
				metas = append(metas, meta)
			}
		}
		pmat := top.Select(names)
		if err := report.WriteCSV(filepath.Join(dir, "methylation_matrix_"+p+".csv"), pmat.Table("Gene")); err != nil {
			return nil, err
		}
		sheets = append(sheets, p)
		grids = append(grids, pmat.Table("Gene"))

		perPatient := matrix.CollapseBy(pmat, metas, byTimepointOnly, matrix.MissingNaN)
		pchs, err := geneTrendCharts(perPatient, dir, "lineplot_"+p+".png",
			fmt.Sprintf("Gene Methylation - %s %s", p, suffix),
			"Methylation Trends - "+p, "Methylation")
		if err != nil {
			return nil, err
		}
		chs = append(chs, pchs...)
	}

	if len(chs) > 0 {
		if err := report.RenderPage(filepath.Join(dir, "gene_deltas.html"), chs...); err != nil {
			return nil, err
		}
	}
	if err := writeWorkbook(filepath.Join(dir, "gene_deltas.xlsx"), sheets, grids, false); err != nil {
		return nil, err
	}
	fmt.Printf("Saved gene delta tables and plots to: %s\n", dir)
	return res, nil
}

// combinedDeltas puts the AvgDelta of every comparison side by side.
func combinedDeltas(genes []string, cmps []delta.Comparison, results [][]delta.Result) [][]string {
	header := []string{"Gene"}
	byGene := make([]map[string]float64, len(cmps))
	for i, cmp := range cmps {
		header = append(header, cmp.Label)
		byGene[i] = make(map[string]float64, len(results[i]))
		for _, r := range results[i] {
			byGene[i][r.ID] = r.AvgDelta
		}
	}
	grid := [][]string{header}
	for _, g := range genes {
		row := []string{g}
		found := false
		for i := range cmps {
			v, ok := byGene[i][g]
			if ok {
				found = true
				row = append(row, matrix.FormatValue(v))
			} else {
				row = append(row, "")
			}
		}
		if found {
			grid = append(grid, row)
		}
	}
	return grid
}

// geneTrendCharts draws the gene x timepoint means of c as a heatmap and a
// line chart, and saves the line chart as png too.
func geneTrendCharts(c *matrix.Collapsed, dir, pngName, heatTitle, lineTitle, yName string) ([]components.Charter, error) {
	if len(c.Keys) == 0 {
		return nil, nil
	}
	timepoints := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		timepoints[i] = k.Timepoint
	}
	series := make([]report.Series, len(c.Loci))
	for i, g := range c.Loci {
		series[i] = report.Series{Name: g, Values: c.Values[i]}
	}
	if err := report.LinePNG(filepath.Join(dir, pngName), lineTitle, "Timepoint", yName, timepoints, series); err != nil {
		return nil, err
	}
	return []components.Charter{
		report.HeatMap(heatTitle, timepoints, c.Loci, c.Values),
		report.LineChart(lineTitle, "Timepoint", yName, timepoints, series),
	}, nil
}

// ------------------------------------------- Gene ranks ------------------------------------------- //

// RankResult holds the capped per-sample gene ranks and the per-patient
// count of gene-timepoints sitting at the cap.
type RankResult struct {
	Ranks  *matrix.Matrix
	Capped map[string]int
}

// GeneRanks ranks genes within every sample of the gene matrix, capping low
// ranks at RankCap, and draws one slope chart per patient with at least two
// detailed timepoints.
func GeneRanks(geneMatrixPath string, pm *samples.PatientMatcher, opts Options) (*RankResult, error) {
	grid, err := matrix.ReadTable(geneMatrixPath)
	if err != nil {
		return nil, err
	}
	m, err := matrix.FromLabelled(grid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", geneMatrixPath, err)
	}
	all, err := metadata(m, pm)
	if err != nil {
		return nil, err
	}
	var metas []samples.Meta
	for _, meta := range all {
		if meta.Patient != "" {
			metas = append(metas, meta)
		}
	}

	dir := filepath.Join(opts.PlotDir, RankDir)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	ranks := delta.Ranks(m, opts.RankCap)
	res := &RankResult{Ranks: ranks, Capped: make(map[string]int)}
	if err := report.WriteCSV(filepath.Join(dir, "gene_methylation_ranks.csv"), ranks.Table("Gene")); err != nil {
		return nil, err
	}

	melted := [][]string{{"Gene", "Sample", "Rank", "Timepoint", "Patient"}}
	for j, s := range ranks.Samples {
		meta, ok := findMeta(metas, s)
		if !ok {
			continue
		}
		for i, g := range ranks.Loci {
			melted = append(melted, []string{g, s, matrix.FormatValue(ranks.Values[i][j]), meta.Detailed, meta.Patient})
		}
	}
	if err := report.WriteCSV(filepath.Join(dir, "melted_gene_methylation_ranks.csv"), melted); err != nil {
		return nil, err
	}

	averaged := matrix.CollapseBy(ranks, metas, matrix.ByDetailedTimepoint, matrix.MissingNaN)
	if err := report.WriteCSV(filepath.Join(dir, "replicate_averaged_ranks.csv"), averaged.Table("Gene")); err != nil {
		return nil, err
	}

	var chs []components.Charter
	for _, p := range averaged.Patients() {
		var timepoints []string
		var cols []int
		for k, key := range averaged.Keys {
			if key.Patient == p {
				timepoints = append(timepoints, key.Timepoint)
				cols = append(cols, k)
			}
		}
		if len(timepoints) < 2 {
			fmt.Printf("Skipping patient %s: fewer than two timepoints\n", p)
			continue
		}
		series := make([]report.Series, len(averaged.Loci))
		for i, g := range averaged.Loci {
			s := report.Series{Name: g}
			for _, k := range cols {
				s.Values = append(s.Values, averaged.Values[i][k])
			}
			series[i] = s
		}
		res.Capped[p] = delta.CappedCount(rawRanks(ranks, metas, p), opts.RankCap)
		title := fmt.Sprintf("Gene Ranking Trajectories for Patient %s (%d gene-timepoints at rank %d)", p, res.Capped[p], opts.RankCap)
		if err := report.LinePNG(filepath.Join(dir, "rank_slopeplot_patient_"+p+".png"), title, "Timepoint", "Gene Rank (smaller = more methylated)", timepoints, series); err != nil {
			return nil, err
		}
		chs = append(chs, report.SlopeChart(title, timepoints, series))
	}
	if len(chs) > 0 {
		if err := report.RenderPage(filepath.Join(dir, "rank_slopeplots.html"), chs...); err != nil {
			return nil, err
		}
	}
	fmt.Printf("All per-patient rank slope plots saved to: %s\n", dir)
	return res, nil
}

func findMeta(metas []samples.Meta, sample string) (samples.Meta, bool) {
	for _, m := range metas {
		if m.Sample == sample {
			return m, true
		}
	}
	return samples.Meta{}, false
}

// rawRanks gathers every per-sample rank of patient p.
func rawRanks(ranks *matrix.Matrix, metas []samples.Meta, p string) []float64 {
	var out []float64
	for _, meta := range metas {
		if meta.Patient != p {
			continue
		}
		j := ranks.SampleIndex(meta.Sample)
		if j < 0 {
			continue
		}
		for _, v := range ranks.Column(j) {
			if !math.IsNaN(v) {
				out = append(out, v)
			}
		}
	}
	return out
}
