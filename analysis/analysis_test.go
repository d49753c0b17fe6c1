package analysis

import (
	"archive/zip"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/gmaffy/emseq-whisperer/delta"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
)

var fixtureLoci = []struct {
	id         string
	base, step float64
}{
	{"CGI_chr1_1000_2000_BRCA1_11", 10, 1},
	{"CGI_chr1_3000_4000_BRCA1_12", 20, 3},
	{"CGI_chr2_5000_6000_TP53_13", 30, -2},
	{"CGI_chrX_7000_8000_MYC_14", 40, 0.5},
}

// fixtureSamples are sample name -> (patient offset, timepoint step).
var fixtureSamples = []struct {
	name   string
	offset float64
	step   float64
}{
	{"P01_Baseline", 0, 0},
	{"P01_C2_r1", 0, 1},
	{"P01_Off-tx", 0, 2},
	{"P02_Baseline", 1, 0},
	{"P02_C2_r1", 1, 1},
	{"P02_Off-tx", 1, 2},
	{"P03_Baseline", 2, 0},
	{"P03_Off-tx", 2, 2},
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// fixtureGrid is a fragment-count style sheet: a total row then the loci.
func fixtureGrid(scale func(v float64) float64) [][]string {
	header := []string{"Header"}
	total := []string{matrix.TotalLabel}
	for _, s := range fixtureSamples {
		header = append(header, s.name)
		total = append(total, fmt.Sprint(scale(1000)))
	}
	grid := [][]string{header, total}
	for _, l := range fixtureLoci {
		row := []string{l.id}
		for _, s := range fixtureSamples {
			row = append(row, fmt.Sprint(scale(l.base+s.offset+l.step*s.step)))
		}
		grid = append(grid, row)
	}
	return grid
}

func writeFixture(t *testing.T, path string, grid [][]string) string {
	t.Helper()
	if err := report.WriteCSV(path, grid); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixtureMatcher() *samples.PatientMatcher {
	return samples.NewPatientMatcher([]string{"P01", "P02", "P03"})
}

func fixtureGeneMap() annotation.GeneMap {
	return annotation.GeneMap{
		{CGIID: "chr1:1000-2000", Gene: "BRCA1"},
		{CGIID: "chr1:3000-4000", Gene: "BRCA1"},
		{CGIID: "chr2:5000-6000", Gene: "TP53"},
		{CGIID: "chrX:7000-8000", Gene: "MYC"},
	}
}

func testOptions(dir string) Options {
	opts, _ := OptionsFromConfig(utils.DefaultConfig())
	opts.OutputDir = filepath.Join(dir, "output")
	opts.PlotDir = filepath.Join(dir, "plots")
	opts.Threads = 2
	return opts
}

func exists(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
}

func byComparison(t *testing.T, cmps []delta.Comparison, key string) int {
	t.Helper()
	for i, c := range cmps {
		if c.Key() == key {
			return i
		}
	}
	t.Fatalf("no comparison %s", key)
	return -1
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := utils.DefaultConfig()
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Comparisons) != 3 || opts.Aggregate != annotation.Sum {
		t.Errorf("defaults = %+v", opts)
	}
	if got := opts.selectionComparison().Key(); got != "Baseline>Post-Treatment" {
		t.Errorf("selection = %s", got)
	}

	cfg.Comparisons = []string{"Baseline>On-Treatment"}
	cfg.FillMissingZero = true
	opts, err = OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.selectionComparison().Key() != "Baseline>On-Treatment" || opts.missingPolicy() != matrix.MissingZero {
		t.Errorf("custom = %+v", opts)
	}

	cfg.Comparisons = []string{"Baseline"}
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("expected error for malformed comparison")
	}
	cfg.Comparisons = nil
	cfg.Aggregate = "median"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("expected error for unknown aggregate")
	}
}

func TestSelectAndMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, filepath.Join(dir, "run1_glob20.csv"), [][]string{
		{"Header", "P01_Baseline", "P99_Baseline", "INNOV01_H"},
		{"CGI_chr1_1_2_A_1", "1", "2", "3"},
	})
	b := writeFixture(t, filepath.Join(dir, "run2_glob20.csv"), [][]string{
		{"Header", "P02_Off-tx"},
		{"CGI_chr1_1_2_A_1", "4"},
		{"CGI_chr2_3_4_B_2", "5"},
	})
	out := filepath.Join(dir, "selected")
	written, err := SelectPatients([]string{a, b}, []string{"P01", "P02"}, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 2 || written[0] != SelectedPath(a, out) {
		t.Fatalf("written = %v", written)
	}
	first, err := matrix.ReadTable(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(first[0], ",") != "Header,P01_Baseline" {
		t.Errorf("selected header = %v", first[0])
	}

	merged, err := MergeFiltered(written, MergedPath(dir, "Glob20"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(merged[0], ",") != "Header,P01_Baseline,P02_Off-tx" || len(merged) != 3 {
		t.Errorf("merged = %v", merged)
	}
	if merged[2][1] != "" || merged[2][2] != "5" {
		t.Errorf("outer join row = %v", merged[2])
	}
	exists(t, filepath.Join(dir, "merged_output_glob20.xlsx"))

	if _, err := SelectPatients([]string{a}, nil, out); err == nil {
		t.Error("expected error without patient ids")
	}
	if _, err := MergeFiltered(nil, filepath.Join(dir, "none.xlsx")); err == nil {
		t.Error("expected error without inputs")
	}
}

func TestScaledRatios(t *testing.T) {
	dir := t.TempDir()
	g20 := writeFixture(t, filepath.Join(dir, "glob20.csv"), [][]string{
		{"Header", "S1", "S2"},
		{matrix.TotalLabel, "50", "30"},
		{"CGI_chr1_1_2_A_1", "2", "3"},
		{"CGI_chr2_3_4_B_2", "1", "7"},
	})
	gm80 := writeFixture(t, filepath.Join(dir, "globmin80.csv"), [][]string{
		{"Header", "S2", "S1"},
		{matrix.TotalLabel, "0", "50"},
		{"CGI_chr1_1_2_A_1", "100000", "200000"},
		{"CGI_chr2_3_4_B_2", "0", "100000"},
	})
	out := filepath.Join(dir, "output")
	rt, err := ScaledRatios(g20, gm80, out)
	if err != nil {
		t.Fatal(err)
	}
	if rt.InfCount() != 1 {
		t.Errorf("INF cells = %d", rt.InfCount())
	}
	exists(t,
		filepath.Join(out, RatioMatrixName),
		filepath.Join(out, RatioLongName),
		filepath.Join(out, GlobalRatioName),
		filepath.Join(out, GlobalMatrixName),
	)

	wide, err := matrix.ReadTable(filepath.Join(out, GlobalMatrixName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(wide[0], ",") != "Header,S1,S2" || wide[1][1] != "100000" || wide[1][2] != "INF" {
		t.Errorf("global matrix = %v", wide)
	}

	sheet, err := matrix.ReadTable(filepath.Join(out, RatioMatrixName))
	if err != nil {
		t.Fatal(err)
	}
	m, err := matrix.FromTable(sheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Loci) != 2 || !almost(m.Values[0][0], 1) || !math.IsNaN(m.Values[1][1]) {
		t.Errorf("ratio matrix = %+v", m)
	}
}

func TestGeneAnnotationAndMatrix(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	out := filepath.Join(dir, "output")

	gm, err := GeneAnnotation(mpath, out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(gm.Genes(), ","); got != "BRCA1,TP53,MYC" {
		t.Errorf("genes = %s", got)
	}
	exists(t, filepath.Join(out, StructuredName), filepath.Join(out, GeneMapName))

	genePath := filepath.Join(out, GeneMatrixName)
	genes, err := GeneMatrix(mpath, filepath.Join(out, GeneMapName), genePath, annotation.Sum)
	if err != nil {
		t.Fatal(err)
	}
	i := genes.LocusIndex("BRCA1")
	j := genes.SampleIndex("P01_Baseline")
	if i < 0 || j < 0 || genes.Values[i][j] != 30 {
		t.Fatalf("BRCA1 sum = %+v", genes)
	}

	grid, err := matrix.ReadTable(genePath)
	if err != nil {
		t.Fatal(err)
	}
	if grid[0][0] != "Gene" || len(grid) != 4 {
		t.Errorf("gene matrix file = %v", grid)
	}
}

func TestGlobalTrajectories(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, filepath.Join(dir, "global.csv"), [][]string{
		{"Header", "P01_Baseline", "P01_C2_r1", "P01_C2_r2", "P01_Off-tx", "P02_Baseline", "P02_Off-tx", "P03_Baseline", "INNOV01_H"},
		{matrix.TotalLabel, "1", "1", "1", "1", "1", "1", "1", "1"},
		{"Scaled Ratio (x100K)", "10", "12", "14", "16", "20", "22", "30", "5"},
	})
	opts := testOptions(dir)
	tr, err := GlobalTrajectories(path, "", fixtureMatcher(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Row != "Scaled Ratio (x100K)" {
		t.Errorf("row = %q", tr.Row)
	}
	if strings.Join(tr.Patients, ",") != "P01,P02" {
		t.Errorf("patients with several timepoints = %v", tr.Patients)
	}
	if v, ok := tr.Means.Value(0, samples.Key{Patient: "P01", Timepoint: "On-Treatment"}); !ok || v != 13 {
		t.Errorf("P01 on-treatment mean = %v", v)
	}
	if s := tr.Timepoints["Baseline"]; s.Count != 2 || s.Mean != 15 {
		t.Errorf("baseline summary = %+v", s)
	}
	if s := tr.Timepoints["Post-Treatment"]; s.Count != 2 || s.Mean != 19 {
		t.Errorf("post summary = %+v", s)
	}
	if s := tr.Conditions["Baseline"]; s.Count != 3 || s.Mean != 20 {
		t.Errorf("baseline condition = %+v", s)
	}
	if s := tr.Conditions["Healthy"]; s.Count != 1 || s.Mean != 5 {
		t.Errorf("healthy condition = %+v", s)
	}

	exists(t,
		filepath.Join(opts.OutputDir, "sample_metadata.csv"),
		filepath.Join(opts.OutputDir, "per_patient_summary.csv"),
		filepath.Join(opts.OutputDir, "per_patient_tables", "P01.csv"),
		filepath.Join(opts.OutputDir, "summary_statistics.csv"),
		filepath.Join(opts.OutputDir, "condition_summary_stats.csv"),
		filepath.Join(opts.PlotDir, "lineplots", "per_patient", "P01.png"),
		filepath.Join(opts.PlotDir, "lineplots", "methylation_longitudinal_plot.png"),
		filepath.Join(opts.PlotDir, "global_trajectories.html"),
	)

	counts, err := matrix.ReadTable(filepath.Join(opts.OutputDir, "per_patient_summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(counts[1], ",") != "P01,1,2,1" {
		t.Errorf("P01 counts = %v", counts[1])
	}

	if _, err := GlobalTrajectories(path, "missing row", fixtureMatcher(), opts); err == nil {
		t.Error("expected error for unknown row label")
	}
}

func TestLocusDeltas(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)

	lds, err := LocusDeltas(mpath, fixtureMatcher(), fixtureGeneMap(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(lds) != 3 {
		t.Fatalf("comparisons = %d", len(lds))
	}
	bp := lds[byComparison(t, opts.Comparisons, "Baseline>Post-Treatment")]
	want := map[string]float64{
		"CGI_chr1_1000_2000_BRCA1_11": 2,
		"CGI_chr1_3000_4000_BRCA1_12": 6,
		"CGI_chr2_5000_6000_TP53_13":  -4,
		"CGI_chrX_7000_8000_MYC_14":   1,
	}
	if len(bp.Results) != 4 {
		t.Fatalf("results = %+v", bp.Results)
	}
	for _, r := range bp.Results {
		if !almost(r.AvgDelta, want[r.ID]) || r.N != 3 {
			t.Errorf("%s: delta %v n %d", r.ID, r.AvgDelta, r.N)
		}
	}
	if bp.Results[0].ID != "CGI_chr2_5000_6000_TP53_13" {
		t.Errorf("results not sorted by delta: %s first", bp.Results[0].ID)
	}
	if len(bp.MultiGenes) != 1 || bp.MultiGenes[0].Gene != "BRCA1" || !almost(bp.MultiGenes[0].MeanDelta, 4) {
		t.Errorf("multi genes = %+v", bp.MultiGenes)
	}

	bo := lds[byComparison(t, opts.Comparisons, "Baseline>On-Treatment")]
	for _, r := range bo.Results {
		if r.N != 2 {
			t.Errorf("%s: P03 has no on-treatment sample, n = %d", r.ID, r.N)
		}
	}

	zipPath := filepath.Join(opts.PlotDir, LocusBundleName)
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, n := range []string{
		"ratios_cpg_island_df.csv",
		"ratios_collapsed.csv",
		"ratios_deltas_Baseline_vs_Post-Treatment.csv",
		"ratios_deltas_Baseline_vs_Post-Treatment.gff",
		"top10_diff_CGIsubregions_Baseline_vs_Post-Treatment.png",
		"Baseline_vs_Post-Treatment_multi_cpg_genes.csv",
	} {
		if !names[n] {
			t.Errorf("zip is missing %s", n)
		}
	}
	if _, err := os.Stat(filepath.Join(opts.PlotDir, "top10dm", "ratios_collapsed.csv")); !os.IsNotExist(err) {
		t.Errorf("staged files should be removed after bundling: %v", err)
	}
	exists(t, filepath.Join(opts.PlotDir, BubblePageName))
}

func TestLocusDeltasCycleComparison(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)
	cmp, err := delta.ParseComparison("Baseline>C2")
	if err != nil {
		t.Fatal(err)
	}
	opts.Comparisons = []delta.Comparison{cmp}

	lds, err := LocusDeltas(mpath, fixtureMatcher(), fixtureGeneMap(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(lds) != 1 || len(lds[0].Results) != len(fixtureLoci) {
		t.Fatalf("cycle comparison results = %+v", lds)
	}
	want := make(map[string]float64)
	for _, l := range fixtureLoci {
		want[l.id] = l.step
	}
	for _, r := range lds[0].Results {
		if r.N != 2 || !almost(r.AvgDelta, want[r.ID]) {
			t.Errorf("%s: delta %v n %d, want %v over P01 and P02", r.ID, r.AvgDelta, r.N, want[r.ID])
		}
	}
}

func TestLocusDeltasWithoutPatientList(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)

	lds, err := LocusDeltas(mpath, nil, fixtureGeneMap(), opts)
	if err != nil {
		t.Fatal(err)
	}
	bp := lds[byComparison(t, opts.Comparisons, "Baseline>Post-Treatment")]
	if len(bp.Results) != len(fixtureLoci) {
		t.Fatalf("results = %+v", bp.Results)
	}
	for _, r := range bp.Results {
		if r.N != 3 {
			t.Errorf("%s: ids from sample names should pair 3 patients, n = %d", r.ID, r.N)
		}
	}
}

func TestLocusDeltasAmbiguousPatientList(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)

	pm := samples.NewPatientMatcher([]string{"P0", "01"})
	if _, err := LocusDeltas(mpath, pm, fixtureGeneMap(), opts); err == nil {
		t.Error("expected error for a patient list that is not injective")
	}
}

func TestChromosomeDeltasCycleComparison(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)
	cmp, err := delta.ParseComparison("C2>Post-Treatment")
	if err != nil {
		t.Fatal(err)
	}
	opts.Comparisons = []delta.Comparison{cmp}

	cds, err := ChromosomeDeltas(mpath, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"1": 2, "2": -2, "X": 0.5}
	for _, cd := range cds {
		if w, ok := want[cd.Chromosome]; ok && !almost(cd.MeanDelta, w) {
			t.Errorf("chr%s mean delta = %v, want %v", cd.Chromosome, cd.MeanDelta, w)
		}
	}
}

func TestGeneDeltas(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	gmPath := writeFixture(t, filepath.Join(dir, "gene_cgi_map.csv"), fixtureGeneMap().Table())
	opts := testOptions(dir)

	res, err := GeneDeltas(mpath, gmPath, fixtureMatcher(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(res.Matrix.Loci, ",") != "BRCA1" {
		t.Errorf("multi-locus genes = %v", res.Matrix.Loci)
	}
	bp := res.Results[byComparison(t, opts.Comparisons, "Baseline>Post-Treatment")]
	if len(bp) != 1 || !almost(bp[0].AvgDelta, 4) || bp[0].N != 3 {
		t.Errorf("BRCA1 delta = %+v", bp)
	}
	if strings.Join(res.TopGenes, ",") != "BRCA1" {
		t.Errorf("top genes = %v", res.TopGenes)
	}

	out := filepath.Join(opts.PlotDir, GeneDeltaDir)
	exists(t,
		filepath.Join(out, "Baseline_vs_Post-Treatment_ttest.csv"),
		filepath.Join(out, "gene_deltas_all_comparisons.csv"),
		filepath.Join(out, "full_gene_methylation_matrix.csv"),
		filepath.Join(out, "top10_gene_methylation_matrix.csv"),
		filepath.Join(out, "avg_methylation_lineplot.png"),
		filepath.Join(out, "methylation_matrix_P01.csv"),
		filepath.Join(out, "lineplot_P02.png"),
		filepath.Join(out, "gene_deltas.html"),
		filepath.Join(out, "gene_deltas.xlsx"),
	)

	sheet, err := matrix.ReadSheet(filepath.Join(out, "gene_deltas.xlsx"), "All_Comparisons")
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet) != 2 || sheet[1][0] != "BRCA1" {
		t.Errorf("all comparisons sheet = %v", sheet)
	}

	opts.MinLoci = 3
	if _, err := GeneDeltas(mpath, gmPath, fixtureMatcher(), opts); err == nil {
		t.Error("expected error when no gene has enough loci")
	}
}

func TestChromosomeDeltas(t *testing.T) {
	dir := t.TempDir()
	mpath := writeFixture(t, filepath.Join(dir, "ratios.csv"), fixtureGrid(func(v float64) float64 { return v }))
	opts := testOptions(dir)

	cds, err := ChromosomeDeltas(mpath, fixtureMatcher(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(cds) != 24*len(opts.Comparisons) {
		t.Fatalf("rows = %d", len(cds))
	}
	want := map[string]float64{"1": 4, "2": -4, "3": 0, "X": 1}
	for _, cd := range cds {
		if cd.Comparison != "Baseline → Post-Tx" {
			continue
		}
		if w, ok := want[cd.Chromosome]; ok && !almost(cd.MeanDelta, w) {
			t.Errorf("chr%s mean delta = %v, want %v", cd.Chromosome, cd.MeanDelta, w)
		}
	}
	exists(t,
		filepath.Join(opts.PlotDir, ChromSummaryName),
		filepath.Join(opts.PlotDir, "chr_avg_overlay.html"),
		filepath.Join(opts.PlotDir, "chr_avg_overlay.png"),
	)
	sheet, err := matrix.ReadSheet(filepath.Join(opts.PlotDir, ChromSummaryName), "Chromosome_Deltas")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(sheet[0], ",") != "Chromosome,Mean_Delta,Comparison" || len(sheet) != 73 {
		t.Errorf("summary sheet has %d rows, header %v", len(sheet), sheet[0])
	}
}

func TestGeneRanks(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, filepath.Join(dir, "gene_methylation_matrix.csv"), [][]string{
		{"Gene", "P01_Baseline", "P01_Off-tx", "P02_Baseline", "P02_Off-tx"},
		{"A", "5", "1", "5", "5"},
		{"B", "3", "3", "4", "4"},
		{"C", "1", "5", "1", "1"},
	})
	opts := testOptions(dir)
	opts.RankCap = 2

	res, err := GeneRanks(path, fixtureMatcher(), opts)
	if err != nil {
		t.Fatal(err)
	}
	j := res.Ranks.SampleIndex("P01_Off-tx")
	got := []float64{res.Ranks.Values[0][j], res.Ranks.Values[1][j], res.Ranks.Values[2][j]}
	if got[0] != 2 || got[1] != 2 || got[2] != 1 {
		t.Errorf("P01_Off-tx ranks = %v", got)
	}
	if res.Capped["P01"] != 4 || res.Capped["P02"] != 4 {
		t.Errorf("capped counts = %v", res.Capped)
	}

	out := filepath.Join(opts.PlotDir, RankDir)
	exists(t,
		filepath.Join(out, "gene_methylation_ranks.csv"),
		filepath.Join(out, "replicate_averaged_ranks.csv"),
		filepath.Join(out, "rank_slopeplot_patient_P01.png"),
		filepath.Join(out, "rank_slopeplots.html"),
	)
	melted, err := matrix.ReadTable(filepath.Join(out, "melted_gene_methylation_ranks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(melted) != 13 || strings.Join(melted[0], ",") != "Gene,Sample,Rank,Timepoint,Patient" {
		t.Errorf("melted = %v", melted[0])
	}
	if melted[4][1] != "P01_Off-tx" || melted[4][3] != "Off-Tx" {
		t.Errorf("detailed timepoint = %v", melted[4])
	}
}

func TestRunFromConfig(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	writeFixture(t, filepath.Join(data, "patient_list.csv"), [][]string{{"Patient ID"}, {"P01"}, {"P02"}, {"P03"}})
	writeFixture(t, filepath.Join(data, "emseq_Glob20.csv"), fixtureGrid(func(v float64) float64 { return v }))
	writeFixture(t, filepath.Join(data, "emseq_GlobMin80.csv"), fixtureGrid(func(float64) float64 { return 100000 }))

	cfg := utils.DefaultConfig()
	cfg.DataDir = data
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.PlotDir = filepath.Join(dir, "plots")
	cfg.Threads = 2

	if err := RunFromConfig(cfg, false); err != nil {
		t.Fatal(err)
	}
	exists(t,
		filepath.Join(cfg.OutputDir, "selected", "emseq_Glob20"+SelectedSuffix),
		MergedPath(cfg.OutputDir, "glob20"),
		MergedPath(cfg.OutputDir, "globmin80"),
		filepath.Join(cfg.OutputDir, RatioMatrixName),
		filepath.Join(cfg.OutputDir, GeneMapName),
		filepath.Join(cfg.OutputDir, GeneMatrixName),
		filepath.Join(cfg.PlotDir, LocusBundleName),
		filepath.Join(cfg.PlotDir, ChromSummaryName),
		filepath.Join(cfg.PlotDir, RankDir, "gene_methylation_ranks.csv"),
	)

	logPath := filepath.Join(cfg.OutputDir, utils.RunLogName)
	entries := utils.ParseLogFile(logPath)
	for _, step := range []string{StageRatios, StageAnnotation, StageGeneMatrix, StageGlobal, StageLocus, StageGeneDeltas, StageChromosome, StageRanks} {
		if !utils.StageHasCompleted(entries, step, "ALL") {
			t.Errorf("%s not recorded as completed", step)
		}
	}
	for _, family := range Families {
		if !utils.StageHasCompleted(entries, StageSelect, family) || !utils.StageHasCompleted(entries, StageMerge, family) {
			t.Errorf("%s preprocessing not recorded as completed", family)
		}
	}

	if err := RunFromConfig(cfg, true); err != nil {
		t.Fatal(err)
	}
	if again := utils.ParseLogFile(logPath); len(again) != len(entries) {
		t.Errorf("resumed run logged %d new entries", len(again)-len(entries))
	}
}

func TestRunFromConfigMissingInputs(t *testing.T) {
	dir := t.TempDir()
	cfg := utils.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.PlotDir = filepath.Join(dir, "plots")
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := RunFromConfig(cfg, false); err == nil {
		t.Error("expected error without a patient list")
	}

	writeFixture(t, filepath.Join(cfg.DataDir, "patients.csv"), [][]string{{"Patient ID"}, {"P01"}})
	if err := RunFromConfig(cfg, false); err == nil {
		t.Error("expected error without glob inputs or a matrix file")
	}
}
