package delta

import (
	"errors"
	"math"
	"sort"

	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/samples"
	"gonum.org/v1/gonum/stat"
)

// Loci computes one paired delta per row of c. Rows with fewer than
// MinPairs paired patients are left out. Results are sorted by AvgDelta.
func Loci(c *matrix.Collapsed, cmp Comparison, opts Options) ([]Result, error) {
	patients := c.Patients()
	var results []Result
	for i, id := range c.Loci {
		pairs := make([]Pair, 0, len(patients))
		for _, p := range patients {
			from, ok0 := c.Value(i, samples.Key{Patient: p, Timepoint: cmp.From})
			to, ok1 := c.Value(i, samples.Key{Patient: p, Timepoint: cmp.To})
			if ok0 && ok1 {
				pairs = append(pairs, Pair{Patient: p, From: from, To: to})
			}
		}
		r, err := Paired(id, pairs, opts)
		if errors.Is(err, ErrTooFewPairs) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].AvgDelta < results[b].AvgDelta })
	return results, nil
}

// Genes averages geneMatrix replicates per (patient, timepoint) and computes
// the paired delta per gene.
func Genes(geneMatrix *matrix.Matrix, metas []samples.Meta, cmp Comparison, opts Options) ([]Result, error) {
	return Loci(matrix.CollapseBy(geneMatrix, metas, cmp.KeyFunc(), matrix.MissingNaN), cmp, opts)
}

// Top returns the n results with the largest |AvgDelta|.
func Top(results []Result, n int) []Result {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return math.Abs(sorted[a].AvgDelta) > math.Abs(sorted[b].AvgDelta)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ------------------------------------------- Chromosomes ------------------------------------------- //

type ChromDelta struct {
	Chromosome string
	MeanDelta  float64
	N          int
	Comparison string
}

// Chromosomes pools every paired locus delta by chromosome and averages it.
// All of 1..22, X, Y are reported; chromosomes without data get 0.
func Chromosomes(c *matrix.Collapsed, cmp Comparison) []ChromDelta {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range c.Patients() {
		from := samples.Key{Patient: p, Timepoint: cmp.From}
		to := samples.Key{Patient: p, Timepoint: cmp.To}
		if c.KeyIndex(from) < 0 || c.KeyIndex(to) < 0 {
			continue
		}
		for i, id := range c.Loci {
			a, ok0 := c.Value(i, from)
			b, ok1 := c.Value(i, to)
			chrom := matrix.Chromosome(id)
			if !ok0 || !ok1 || chrom == "" {
				continue
			}
			sums[chrom] += b - a
			counts[chrom]++
		}
	}
	var out []ChromDelta
	for _, chrom := range matrix.ChromosomeOrder() {
		cd := ChromDelta{Chromosome: chrom, Comparison: cmp.Label, N: counts[chrom]}
		if cd.N > 0 {
			cd.MeanDelta = sums[chrom] / float64(cd.N)
		}
		out = append(out, cd)
	}
	return out
}

// ------------------------------------------- Gene summary ------------------------------------------- //

type GeneStat struct {
	Gene      string
	Count     int
	MeanDelta float64
}

// GeneSummary groups locus results by gene. It returns every gene and the
// genes with more than one affected locus sorted by MeanDelta; when no gene
// qualifies the topN genes by |MeanDelta| are returned instead.
func GeneSummary(results []Result, lookup func(string) string, topN int) (all, multi []GeneStat) {
	idx := make(map[string]int)
	sums := make(map[string]float64)
	for _, r := range results {
		g := lookup(r.ID)
		if g == "" {
			continue
		}
		if _, ok := idx[g]; !ok {
			idx[g] = len(all)
			all = append(all, GeneStat{Gene: g})
		}
		all[idx[g]].Count++
		sums[g] += r.AvgDelta
	}
	for i := range all {
		all[i].MeanDelta = sums[all[i].Gene] / float64(all[i].Count)
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].Gene < all[b].Gene })

	for _, gs := range all {
		if gs.Count > 1 {
			multi = append(multi, gs)
		}
	}
	if len(multi) > 0 {
		sort.SliceStable(multi, func(a, b int) bool { return multi[a].MeanDelta < multi[b].MeanDelta })
		return all, multi
	}
	multi = append([]GeneStat(nil), all...)
	sort.SliceStable(multi, func(a, b int) bool { return math.Abs(multi[a].MeanDelta) > math.Abs(multi[b].MeanDelta) })
	if topN >= 0 && len(multi) > topN {
		multi = multi[:topN]
	}
	return all, multi
}

// ------------------------------------------- Ranks ------------------------------------------- //

// Ranks ranks every column of m in descending order with ties sharing the
// lowest rank. Ranks at or beyond limit are set to limit; missing values stay NaN.
func Ranks(m *matrix.Matrix, limit int) *matrix.Matrix {
	out := matrix.New(append([]string(nil), m.Loci...), append([]string(nil), m.Samples...))
	for j := range m.Samples {
		col := m.Column(j)
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			rank := 1
			for _, w := range col {
				if !math.IsNaN(w) && w > v {
					rank++
				}
			}
			if limit > 0 && rank >= limit {
				rank = limit
			}
			out.Values[i][j] = float64(rank)
		}
	}
	return out
}

// CappedCount counts values equal to limit.
func CappedCount(values []float64, limit int) int {
	n := 0
	for _, v := range values {
		if v == float64(limit) {
			n++
		}
	}
	return n
}

// ------------------------------------------- Summary statistics ------------------------------------------- //

type Summary struct {
	Count  int
	Mean   float64
	Median float64
	SD     float64
	Min    float64
	Max    float64
	Q1     float64
	Q3     float64
}

// Summarize describes the non-missing values. SD is the sample standard
// deviation and is NaN for fewer than two values.
func Summarize(values []float64) Summary {
	var xs []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	s := Summary{Count: len(xs), Mean: math.NaN(), Median: math.NaN(), SD: math.NaN(), Min: math.NaN(), Max: math.NaN(), Q1: math.NaN(), Q3: math.NaN()}
	if len(xs) == 0 {
		return s
	}
	sort.Float64s(xs)
	s.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		s.SD = stat.StdDev(xs, nil)
	}
	s.Median = quantile(xs, 0.5)
	s.Q1 = quantile(xs, 0.25)
	s.Q3 = quantile(xs, 0.75)
	s.Min, s.Max = xs[0], xs[len(xs)-1]
	return s
}

// quantile interpolates linearly between order statistics of sorted xs.
func quantile(xs []float64, p float64) float64 {
	if len(xs) == 1 {
		return xs[0]
	}
	pos := p * float64(len(xs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return xs[lo] + (xs[hi]-xs[lo])*frac
}
