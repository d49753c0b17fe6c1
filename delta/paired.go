package delta

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/samples"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrTooFewPairs = errors.New("too few paired patients")

type Comparison struct {
	From  string
	To    string
	Label string
}

// StandardComparisons are Baseline->On-Tx, On-Tx->Post-Tx and Baseline->Post-Tx.
func StandardComparisons() []Comparison {
	return []Comparison{
		{From: string(samples.Baseline), To: string(samples.OnTreatment), Label: "Baseline → On-Tx"},
		{From: string(samples.OnTreatment), To: string(samples.PostTreatment), Label: "On-Tx → Post-Tx"},
		{From: string(samples.Baseline), To: string(samples.PostTreatment), Label: "Baseline → Post-Tx"},
	}
}

// ParseComparison reads "From>To". Each side is Baseline, On-Treatment,
// Post-Treatment, a treatment cycle C<n> or Off-Tx. A comparison naming a
// cycle or Off-Tx is cycle-resolved and its Post-Treatment side reads Off-Tx.
func ParseComparison(s string) (Comparison, error) {
	parts := strings.Split(s, ">")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return Comparison{}, fmt.Errorf("bad comparison %q (want From>To)", s)
	}
	from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	for _, side := range []string{from, to} {
		if !coarseLabel(side) && !detailedLabel(side) {
			return Comparison{}, fmt.Errorf("bad comparison %q: unknown timepoint %q (want Baseline, On-Treatment, Post-Treatment, C<n> or Off-Tx)", s, side)
		}
	}
	if detailedLabel(from) || detailedLabel(to) {
		from, to = offTx(from), offTx(to)
	}
	if from == to {
		return Comparison{}, fmt.Errorf("bad comparison %q: both sides are %s", s, from)
	}
	for _, c := range StandardComparisons() {
		if c.From == from && c.To == to {
			return c, nil
		}
	}
	return Comparison{From: from, To: to, Label: from + " → " + to}, nil
}

func coarseLabel(label string) bool {
	for _, tp := range samples.Order {
		if tp != samples.Healthy && label == string(tp) {
			return true
		}
	}
	return false
}

// detailedLabel matches Off-Tx and C followed by one or two digits.
func detailedLabel(label string) bool {
	if label == samples.OffTx {
		return true
	}
	if len(label) < 2 || len(label) > 3 || label[0] != 'C' {
		return false
	}
	for _, r := range label[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func offTx(label string) string {
	if label == string(samples.PostTreatment) {
		return samples.OffTx
	}
	return label
}

// Detailed reports whether c compares cycle-resolved timepoints.
func (c Comparison) Detailed() bool {
	return detailedLabel(c.From) || detailedLabel(c.To)
}

// KeyFunc groups samples by the timepoint labels c refers to.
func (c Comparison) KeyFunc() matrix.KeyFunc {
	if c.Detailed() {
		return matrix.ByDetailedTimepoint
	}
	return matrix.ByTimepoint
}

// Key is the "From>To" form used in config files and run logs.
func (c Comparison) Key() string {
	return c.From + ">" + c.To
}

// Slug is a filename-safe form such as Baseline_vs_Post-Treatment.
func (c Comparison) Slug() string {
	return strings.ReplaceAll(c.From+"_vs_"+c.To, " ", "_")
}

type Options struct {
	MinPairs     int
	Permutations int
	Seed         uint64
}

func (o Options) minPairs() int {
	if o.MinPairs < 2 {
		return 2
	}
	return o.MinPairs
}

type Pair struct {
	Patient string
	From    float64
	To      float64
}

// Result is the paired delta of one locus or gene.
type Result struct {
	ID       string
	AvgDelta float64
	N        int
	TStat    float64
	PValue   float64
	PermP    float64
	Deltas   []float64
	Patients []string
}

// Paired computes To-From per patient, their mean and a two-sided paired
// t-test. With Permutations > 0 a sign-flip permutation p-value is added,
// seeded from Seed and id so results do not depend on evaluation order.
func Paired(id string, pairs []Pair, opts Options) (Result, error) {
	r := Result{ID: id, TStat: math.NaN(), PValue: math.NaN(), PermP: math.NaN()}
	for _, p := range pairs {
		if math.IsNaN(p.From) || math.IsNaN(p.To) {
			continue
		}
		r.Deltas = append(r.Deltas, p.To-p.From)
		r.Patients = append(r.Patients, p.Patient)
	}
	r.N = len(r.Deltas)
	if r.N < opts.minPairs() {
		return r, fmt.Errorf("%w: %s has %d", ErrTooFewPairs, id, r.N)
	}
	r.AvgDelta = stat.Mean(r.Deltas, nil)
	r.TStat, r.PValue = pairedT(r.Deltas, r.AvgDelta)
	if opts.Permutations > 0 {
		r.PermP = signFlip(r.Deltas, r.AvgDelta, opts.Permutations, seedFor(opts.Seed, id))
	}
	return r, nil
}

func pairedT(deltas []float64, mean float64) (float64, float64) {
	n := float64(len(deltas))
	sd := stat.StdDev(deltas, nil)
	if sd == 0 || math.IsNaN(sd) {
		if mean == 0 {
			return math.NaN(), math.NaN()
		}
		return math.Copysign(math.Inf(1), mean), 0
	}
	t := mean / (sd / math.Sqrt(n))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	p := 2 * dist.Survival(math.Abs(t))
	return t, math.Min(p, 1)
}

func seedFor(seed uint64, id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return seed ^ h.Sum64()
}

// signFlip estimates P(|mean of sign-flipped deltas| >= |observed|).
func signFlip(deltas []float64, observed float64, b int, seed uint64) float64 {
	rng := rand.New(rand.NewSource(seed))
	obs := math.Abs(observed)
	hits := 0
	for i := 0; i < b; i++ {
		sum := 0.0
		for _, d := range deltas {
			if rng.Intn(2) == 0 {
				sum -= d
			} else {
				sum += d
			}
		}
		if math.Abs(sum/float64(len(deltas))) >= obs-1e-12 {
			hits++
		}
	}
	return float64(hits+1) / float64(b+1)
}
