package analysis

import (
	"fmt"
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
	LocusBundleName = "top-10-differential-methylation-plots.zip"
	BubblePageName  = "bubbleplots.html"
	deltaAxisLabel  = "Avg Change in Scaled Methylated Fragment Count Ratio"
)

// LocusDelta is the per-locus outcome of one comparison.
type LocusDelta struct {
	Comparison delta.Comparison
	Results    []delta.Result
	Genes      []delta.GeneStat
	MultiGenes []delta.GeneStat
}

// LocusDeltas computes paired per-locus deltas for every comparison. Tables,
// bar plots and GFF tracks are bundled into one zip under the plot directory
// and bubble plots of the top loci are rendered next to it.
func LocusDeltas(matrixPath string, pm *samples.PatientMatcher, gm annotation.GeneMap, opts Options) ([]LocusDelta, error) {
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

	stage := filepath.Join(opts.PlotDir, "top10dm")
	if err := utils.EnsureDir(stage); err != nil {
		return nil, err
	}
	base := utils.BaseName(matrixPath)
	var files []string

	cpgCSV := filepath.Join(stage, base+"_cpg_island_df.csv")
	if err := report.WriteCSV(cpgCSV, m.Table("CpG_Island")); err != nil {
		return nil, err
	}
	selected := make([]string, len(valid))
	for i, v := range valid {
		selected[i] = v.Sample
	}
	matrixCSV := filepath.Join(stage, base+"_matrix.csv")
	if err := report.WriteCSV(matrixCSV, m.Select(selected).Table("CpG_Island")); err != nil {
		return nil, err
	}
	collapsed := matrix.Collapse(m, valid, matrix.MissingNaN)
	collapsedCSV := filepath.Join(stage, base+"_collapsed.csv")
	if err := report.WriteCSV(collapsedCSV, collapsed.Table("CpG_Island")); err != nil {
		return nil, err
	}
	files = append(files, cpgCSV, matrixCSV, collapsedCSV)

	grouped := collapseFor(m, valid, opts.Comparisons, matrix.MissingNaN)
	lookup := annotation.LocusGenes(gm)
	out := make([]LocusDelta, len(opts.Comparisons))
	written := make([][]string, len(opts.Comparisons))

	var g errgroup.Group
	g.SetLimit(opts.threads())
	for i, cmp := range opts.Comparisons {
		g.Go(func() error {
			ld, fs, err := locusComparison(grouped[i], cmp, lookup, base, stage, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", cmp.Label, err)
			}
			out[i] = ld
			written[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, fs := range written {
		files = append(files, fs...)
	}

	zipPath := filepath.Join(opts.PlotDir, LocusBundleName)
	if err := report.Bundle(zipPath, files, true); err != nil {
		return nil, err
	}
	fmt.Printf("Saved plots and zipped them in %s\n", zipPath)

	if err := bubblePlots(collapsed, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func locusComparison(c *matrix.Collapsed, cmp delta.Comparison, lookup annotation.Lookup, base, dir string, opts Options) (LocusDelta, []string, error) {
	ld := LocusDelta{Comparison: cmp}
	results, err := delta.Loci(c, cmp, opts.Delta)
	if err != nil {
		return ld, nil, err
	}
	ld.Results = results
	slug := cmp.Slug()
	fmt.Printf("%s: %d loci with at least %d paired patients\n", cmp.Label, len(results), max(opts.Delta.MinPairs, 2))

	var files []string
	deltasCSV := filepath.Join(dir, fmt.Sprintf("%s_deltas_%s.csv", base, slug))
	if err := report.WriteCSV(deltasCSV, resultRows(results, "CpG_Island")); err != nil {
		return ld, nil, err
	}
	files = append(files, deltasCSV)
	if len(results) == 0 {
		return ld, files, nil
	}

	top := delta.Top(results, opts.TopN)
	topPNG := filepath.Join(dir, fmt.Sprintf("top10_diff_CGIsubregions_%s.png", slug))
	title := fmt.Sprintf("Top %d Differentially Methylated Subregions of CpG Islands (%s vs %s)", len(top), cmp.From, cmp.To)
	if err := report.BarPNG(topPNG, title, deltaAxisLabel, resultIDs(top), resultDeltas(top)); err != nil {
		return ld, nil, err
	}
	files = append(files, topPNG)

	ld.Genes, ld.MultiGenes = delta.GeneSummary(results, lookup, opts.TopN)
	for _, t := range []struct {
		name  string
		stats []delta.GeneStat
	}{{slug + "_gene_df.csv", ld.Genes}, {slug + "_multi_cpg_genes.csv", ld.MultiGenes}} {
		path := filepath.Join(dir, t.name)
		if err := report.WriteCSV(path, geneStatRows(t.stats)); err != nil {
			return ld, nil, err
		}
		files = append(files, path)
	}
	if len(ld.MultiGenes) > 0 {
		names := make([]string, len(ld.MultiGenes))
		vals := make([]float64, len(ld.MultiGenes))
		for i, gs := range ld.MultiGenes {
			names[i], vals[i] = gs.Gene, gs.MeanDelta
		}
		multiPNG := filepath.Join(dir, fmt.Sprintf("multi_CpG_genes_%s.png", slug))
		if err := report.BarPNG(multiPNG, fmt.Sprintf("Genes with More than One Affected CpG Island (%s vs %s)", cmp.From, cmp.To), deltaAxisLabel, names, vals); err != nil {
			return ld, nil, err
		}
		files = append(files, multiPNG)
	}

	gffPath := filepath.Join(dir, fmt.Sprintf("%s_deltas_%s.gff", base, slug))
	if err := report.WriteGFF(gffPath, "emseq-whisperer", "CpG_island_delta", regions(results, lookup, cmp)); err != nil {
		return ld, nil, err
	}
	files = append(files, gffPath)
	return ld, files, nil
}

func geneStatRows(stats []delta.GeneStat) [][]string {
	grid := [][]string{{"Gene", "count", "avg_delta"}}
	for _, gs := range stats {
		grid = append(grid, []string{gs.Gene, fmt.Sprint(gs.Count), matrix.FormatValue(gs.MeanDelta)})
	}
	return grid
}

func regions(results []delta.Result, lookup annotation.Lookup, cmp delta.Comparison) []report.Region {
	var out []report.Region
	for _, r := range results {
		l, err := matrix.ParseLocus(r.ID)
		if err != nil {
			continue
		}
		attrs := [][2]string{{"ID", r.ID}, {"Comparison", cmp.Key()}, {"n", fmt.Sprint(r.N)}}
		if g := lookup(r.ID); g != "" {
			attrs = append(attrs, [2]string{"Gene", g})
		}
		if p := matrix.FormatValue(r.PValue); p != "" {
			attrs = append(attrs, [2]string{"p", p})
		}
		out = append(out, report.Region{Chrom: l.Chrom, Start: l.Start, End: l.End, Score: r.AvgDelta, Attrs: attrs})
	}
	return out
}

// bubblePlots draws the top loci of every comparison as genomic midpoint
// against timepoint, sized by the collapsed value, once per patient and once
// per chromosome.
func bubblePlots(c *matrix.Collapsed, lds []LocusDelta, opts Options) error {
	seen := make(map[string]bool)
	var loci []string
	for _, ld := range lds {
		for _, r := range delta.Top(ld.Results, opts.TopN) {
			if !seen[r.ID] {
				seen[r.ID] = true
				loci = append(loci, r.ID)
			}
		}
	}
	if len(loci) == 0 {
		fmt.Println("No differential loci to draw as bubbles")
		return nil
	}
	timepoints := c.Timepoints()

	type point struct {
		patient, chrom string
		b              report.Bubble
	}
	var points []point
	for _, id := range loci {
		l, err := matrix.ParseLocus(id)
		if err != nil {
			continue
		}
		i := -1
		for k, cl := range c.Loci {
			if cl == id {
				i = k
				break
			}
		}
		if i < 0 {
			continue
		}
		for _, key := range c.Keys {
			v, ok := c.Value(i, key)
			if !ok {
				continue
			}
			points = append(points, point{patient: key.Patient, chrom: l.Chrom, b: report.Bubble{X: key.Timepoint, Y: l.Midpoint(), Size: v}})
		}
	}

	var chs []components.Charter
	for _, p := range c.Patients() {
		var bs []report.Bubble
		for _, pt := range points {
			if pt.patient == p {
				b := pt.b
				b.Group = pt.chrom
				bs = append(bs, b)
			}
		}
		if len(bs) > 0 {
			chs = append(chs, report.BubbleChart("Patient "+p, "Timepoint", "CGI midpoint (bp)", timepoints, bs))
		}
	}
	var chroms []string
	byChrom := make(map[string][]report.Bubble)
	for _, pt := range points {
		if _, ok := byChrom[pt.chrom]; !ok {
			chroms = append(chroms, pt.chrom)
		}
		b := pt.b
		b.Group = pt.patient
		byChrom[pt.chrom] = append(byChrom[pt.chrom], b)
	}
	for _, chrom := range chroms {
		chs = append(chs, report.BubbleChart(chrom, "Timepoint", "CGI midpoint (bp)", timepoints, byChrom[chrom]))
	}
	if len(chs) == 0 {
		return nil
	}
	return report.RenderPage(filepath.Join(opts.PlotDir, BubblePageName), chs...)
}
