package delta

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/samples"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPaired(t *testing.T) {
	pairs := []Pair{
		{Patient: "P1", From: 1, To: 3},
		{Patient: "P2", From: 2, To: 3},
		{Patient: "P3", From: 5, To: 8},
		{Patient: "P4", From: math.NaN(), To: 1},
	}
	r, err := Paired("G", pairs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.N != 3 || !almost(r.AvgDelta, 2) {
		t.Fatalf("result = %+v", r)
	}
	// deltas 2,1,3: sd 1, t = 2/(1/sqrt(3))
	if !almost(r.TStat, 2*math.Sqrt(3)) {
		t.Errorf("t = %v", r.TStat)
	}
	// two-sided p for t=3.4641 with 2 df is about 0.0742
	if math.Abs(r.PValue-0.0742) > 0.001 {
		t.Errorf("p = %v", r.PValue)
	}
	if !math.IsNaN(r.PermP) {
		t.Errorf("permutation p without permutations = %v", r.PermP)
	}

	_, err = Paired("G", pairs[:1], Options{})
	if !errors.Is(err, ErrTooFewPairs) {
		t.Errorf("expected ErrTooFewPairs, got %v", err)
	}
	_, err = Paired("G", pairs, Options{MinPairs: 4})
	if !errors.Is(err, ErrTooFewPairs) {
		t.Errorf("MinPairs 4 should reject 3 pairs, got %v", err)
	}
}

func TestPairedConstantDeltas(t *testing.T) {
	r, err := Paired("G", []Pair{{"P1", 0, 1}, {"P2", 1, 2}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(r.TStat, 1) || r.PValue != 0 {
		t.Errorf("constant positive deltas: t=%v p=%v", r.TStat, r.PValue)
	}
	r, err = Paired("G", []Pair{{"P1", 1, 1}, {"P2", 2, 2}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(r.TStat) || !math.IsNaN(r.PValue) {
		t.Errorf("zero deltas: t=%v p=%v", r.TStat, r.PValue)
	}
}

func TestPairedAntisymmetric(t *testing.T) {
	pairs := []Pair{{"P1", 1, 4}, {"P2", 2, 1}, {"P3", 7, 9}}
	var reversed []Pair
	for _, p := range pairs {
		reversed = append(reversed, Pair{Patient: p.Patient, From: p.To, To: p.From})
	}
	fwd, err := Paired("X", pairs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	rev, err := Paired("X", reversed, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !almost(fwd.AvgDelta, -rev.AvgDelta) || !almost(fwd.TStat, -rev.TStat) || !almost(fwd.PValue, rev.PValue) {
		t.Errorf("forward %+v reverse %+v", fwd, rev)
	}
	for i := range fwd.Deltas {
		if fwd.Deltas[i] != -rev.Deltas[i] {
			t.Errorf("delta %d: %v vs %v", i, fwd.Deltas[i], rev.Deltas[i])
		}
	}
}

func TestPermutation(t *testing.T) {
	pairs := []Pair{{"P1", 0, 5}, {"P2", 0, 6}, {"P3", 0, 7}, {"P4", 0, 5}, {"P5", 0, 6}}
	opts := Options{Permutations: 500, Seed: 7}
	a, err := Paired("G", pairs, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Paired("G", pairs, opts)
	if a.PermP != b.PermP {
		t.Errorf("permutation p not reproducible: %v vs %v", a.PermP, b.PermP)
	}
	// all-positive deltas: only the all-plus and all-minus flips reach the observed mean
	if a.PermP <= 0 || a.PermP > 0.2 {
		t.Errorf("PermP = %v", a.PermP)
	}
}

func TestComparisons(t *testing.T) {
	std := StandardComparisons()
	if len(std) != 3 || std[2].Label != "Baseline → Post-Tx" {
		t.Fatalf("standard = %+v", std)
	}
	c, err := ParseComparison("Baseline > Post-Treatment")
	if err != nil || c != std[2] {
		t.Errorf("ParseComparison = %+v, %v", c, err)
	}
	c, err = ParseComparison("C1>C3")
	if err != nil || c.Label != "C1 → C3" || c.Key() != "C1>C3" || c.Slug() != "C1_vs_C3" {
		t.Errorf("custom comparison = %+v, %v", c, err)
	}
	if c.Detailed() == std[2].Detailed() {
		t.Errorf("Detailed: C1>C3 = %v, Baseline>Post-Treatment = %v", c.Detailed(), std[2].Detailed())
	}
	c, err = ParseComparison("C2>Post-Treatment")
	if err != nil || c.From != "C2" || c.To != samples.OffTx {
		t.Errorf("cycle comparison = %+v, %v", c, err)
	}
	meta := samples.Meta{Sample: "P01_C2_r1", Patient: "P01", Timepoint: samples.OnTreatment, Detailed: "C2"}
	if k := c.KeyFunc()(meta); k.Timepoint != "C2" {
		t.Errorf("cycle key = %v", k)
	}
	if k := std[0].KeyFunc()(meta); k.Timepoint != string(samples.OnTreatment) {
		t.Errorf("coarse key = %v", k)
	}
	for _, bad := range []string{"Baseline", "Baseline>Week3", "Healthy>Baseline", "C2>C2", "Baseline>C100"} {
		if _, err := ParseComparison(bad); err == nil {
			t.Errorf("ParseComparison(%q): expected error", bad)
		}
	}
}

func collapsedFixture() *matrix.Collapsed {
	nan := math.NaN()
	return &matrix.Collapsed{
		Loci: []string{"CGI_chr1_1_2_A_1", "CGI_chr1_5_9_B_2", "CGI_chrX_1_2_C_3", "CGI_chr2_1_2_D_4"},
		Keys: []samples.Key{
			{Patient: "P1", Timepoint: "Baseline"}, {Patient: "P1", Timepoint: "Post-Treatment"},
			{Patient: "P2", Timepoint: "Baseline"}, {Patient: "P2", Timepoint: "Post-Treatment"},
			{Patient: "P3", Timepoint: "Baseline"},
		},
		Values: [][]float64{
			{1, 2, 1, 4, 9},
			{5, 1, 5, 3, 9},
			{0, 1, nan, 1, 9},
			{1, 1, 1, 1, 1},
		},
	}
}

func TestLoci(t *testing.T) {
	cmp := Comparison{From: "Baseline", To: "Post-Treatment", Label: "Baseline → Post-Tx"}
	results, err := Loci(collapsedFixture(), cmp, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	// chrX has one paired patient and is dropped; sorted ascending by delta
	want := []string{"CGI_chr1_5_9_B_2", "CGI_chr2_1_2_D_4", "CGI_chr1_1_2_A_1"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v", ids)
	}
	if !almost(results[0].AvgDelta, -3) || results[0].N != 2 || !almost(results[2].AvgDelta, 2) {
		t.Errorf("results = %+v", results)
	}

	top := Top(results, 2)
	if top[0].ID != "CGI_chr1_5_9_B_2" || top[1].ID != "CGI_chr1_1_2_A_1" {
		t.Errorf("Top = %+v", top)
	}
	if len(Top(results, 10)) != 3 {
		t.Errorf("Top should not pad")
	}
}

func TestGenes(t *testing.T) {
	gm := matrix.New([]string{"GENEA"}, []string{"P1_Baseline_a", "P1_Baseline_b", "P1_Off-tx", "P2_Baseline", "P2_Off-tx"})
	gm.Values[0] = []float64{1, 3, 4, 0, 1}
	metas, err := samples.BuildMetadata(gm.Samples, samples.NewPatientMatcher([]string{"P1", "P2"}))
	if err != nil {
		t.Fatal(err)
	}
	cmp := StandardComparisons()[2]
	results, err := Genes(gm, samples.Valid(metas, false), cmp, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// P1: 4-2, P2: 1-0
	if len(results) != 1 || !almost(results[0].AvgDelta, 1.5) {
		t.Errorf("results = %+v", results)
	}
}

func TestChromosomes(t *testing.T) {
	cmp := Comparison{From: "Baseline", To: "Post-Treatment", Label: "Baseline → Post-Tx"}
	got := Chromosomes(collapsedFixture(), cmp)
	if len(got) != 24 {
		t.Fatalf("len = %d", len(got))
	}
	// chr1 deltas: 1, 3, -4, -2
	if got[0].Chromosome != "1" || got[0].N != 4 || !almost(got[0].MeanDelta, -0.5) {
		t.Errorf("chr1 = %+v", got[0])
	}
	if got[1].MeanDelta != 0 || got[1].N != 2 {
		t.Errorf("chr2 = %+v", got[1])
	}
	if got[22].Chromosome != "X" || got[22].N != 1 || !almost(got[22].MeanDelta, 1) {
		t.Errorf("chrX = %+v", got[22])
	}
	if got[23].Chromosome != "Y" || got[23].MeanDelta != 0 || got[23].N != 0 || got[23].Comparison != cmp.Label {
		t.Errorf("chrY = %+v", got[23])
	}
}

func TestGeneSummary(t *testing.T) {
	results := []Result{
		{ID: "CGI_chr1_1_2_A_1", AvgDelta: 1},
		{ID: "CGI_chr1_3_4_A_2", AvgDelta: 3},
		{ID: "CGI_chr1_5_6_B_3", AvgDelta: -5},
		{ID: "CGI_chr1_7_8_4", AvgDelta: 9},
	}
	lookup := func(id string) string {
		l, err := matrix.ParseLocus(id)
		if err != nil || len(l.Genes) == 0 {
			return ""
		}
		return l.Genes[0]
	}
	all, multi := GeneSummary(results, lookup, 10)
	if len(all) != 2 || all[0].Gene != "A" || all[0].Count != 2 || !almost(all[0].MeanDelta, 2) {
		t.Errorf("all = %+v", all)
	}
	if len(multi) != 1 || multi[0].Gene != "A" {
		t.Errorf("multi = %+v", multi)
	}

	_, fallback := GeneSummary(results[2:], lookup, 1)
	if len(fallback) != 1 || fallback[0].Gene != "B" {
		t.Errorf("fallback = %+v", fallback)
	}
}

func TestRanks(t *testing.T) {
	m := matrix.New([]string{"A", "B", "C", "D"}, []string{"S1"})
	m.Values[0][0] = 10
	m.Values[1][0] = 30
	m.Values[2][0] = 10
	ranks := Ranks(m, 0)
	got := ranks.Column(0)
	if got[0] != 2 || got[1] != 1 || got[2] != 2 || !math.IsNaN(got[3]) {
		t.Errorf("ranks = %v", got)
	}
	capped := Ranks(m, 2)
	if c := capped.Column(0); c[0] != 2 || c[1] != 1 {
		t.Errorf("capped = %v", c)
	}
	if CappedCount(capped.Column(0), 2) != 2 {
		t.Errorf("CappedCount = %d", CappedCount(capped.Column(0), 2))
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, math.NaN(), 1, 3, 2})
	if s.Count != 4 || !almost(s.Mean, 2.5) || !almost(s.Median, 2.5) || s.Min != 1 || s.Max != 4 {
		t.Errorf("summary = %+v", s)
	}
	if !almost(s.SD, math.Sqrt(5.0/3.0)) {
		t.Errorf("sd = %v", s.SD)
	}
	if !almost(s.Q1, 1.75) || !almost(s.Q3, 3.25) {
		t.Errorf("quartiles = %v %v", s.Q1, s.Q3)
	}
	one := Summarize([]float64{7})
	if one.Median != 7 || !math.IsNaN(one.SD) {
		t.Errorf("single = %+v", one)
	}
	if empty := Summarize(nil); empty.Count != 0 || !math.IsNaN(empty.Mean) {
		t.Errorf("empty = %+v", empty)
	}
}
