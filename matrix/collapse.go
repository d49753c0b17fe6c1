package matrix

import (
	"math"
	"sort"

	"github.com/gmaffy/emseq-whisperer/samples"
)

type MissingPolicy int

const (
	MissingNaN MissingPolicy = iota
	MissingZero
)

// Collapsed holds loci x (patient, timepoint) values.
type Collapsed struct {
	Loci   []string
	Keys   []samples.Key
	Values [][]float64
}

// KeyFunc maps a sample to the group it is averaged into.
type KeyFunc func(samples.Meta) samples.Key

func ByTimepoint(m samples.Meta) samples.Key {
	return samples.Key{Patient: m.Patient, Timepoint: string(m.Timepoint)}
}

func ByDetailedTimepoint(m samples.Meta) samples.Key {
	return samples.Key{Patient: m.Patient, Timepoint: m.Detailed}
}

// Collapse averages replicate samples into one column per (patient, timepoint).
func Collapse(m *Matrix, metas []samples.Meta, policy MissingPolicy) *Collapsed {
	return CollapseBy(m, metas, ByTimepoint, policy)
}

// CollapseBy groups samples with key and takes the mean of the non-missing
// values of each group. Samples absent from m are ignored. With MissingZero,
// missing cells count as zero before averaging.
func CollapseBy(m *Matrix, metas []samples.Meta, key KeyFunc, policy MissingPolicy) *Collapsed {
	groups := make(map[samples.Key][]int)
	var keys []samples.Key
	for _, meta := range metas {
		j := m.SampleIndex(meta.Sample)
		if j < 0 {
			continue
		}
		k := key(meta)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], j)
	}
	SortKeys(keys)

	c := &Collapsed{Loci: append([]string(nil), m.Loci...), Keys: keys, Values: make([][]float64, len(m.Loci))}
	for i := range m.Loci {
		row := make([]float64, len(keys))
		for k, key := range keys {
			sum, n := 0.0, 0
			for _, j := range groups[key] {
				v := m.Values[i][j]
				if math.IsNaN(v) {
					if policy == MissingZero {
						n++
					}
					continue
				}
				sum += v
				n++
			}
			if n == 0 {
				row[k] = math.NaN()
			} else {
				row[k] = sum / float64(n)
			}
		}
		c.Values[i] = row
	}
	return c
}

// SortKeys orders by patient, then by timepoint order.
func SortKeys(keys []samples.Key) {
	sort.SliceStable(keys, func(a, b int) bool {
		if keys[a].Patient != keys[b].Patient {
			return keys[a].Patient < keys[b].Patient
		}
		return TimepointLess(keys[a].Timepoint, keys[b].Timepoint)
	})
}

func TimepointLess(a, b string) bool {
	ra, rb := samples.Timepoint(a).Rank(), samples.Timepoint(b).Rank()
	if ra != rb {
		return ra < rb
	}
	oa, ob := samples.DetailedOrder(a), samples.DetailedOrder(b)
	if oa != ob {
		return oa < ob
	}
	return a < b
}

func (c *Collapsed) KeyIndex(k samples.Key) int {
	for i, key := range c.Keys {
		if key == k {
			return i
		}
	}
	return -1
}

// Value returns the cell for locus row i and key, reporting false when the key
// is absent or the cell is missing.
func (c *Collapsed) Value(i int, k samples.Key) (float64, bool) {
	j := c.KeyIndex(k)
	if j < 0 {
		return math.NaN(), false
	}
	v := c.Values[i][j]
	return v, !math.IsNaN(v)
}

func (c *Collapsed) Patients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range c.Keys {
		if !seen[k.Patient] {
			seen[k.Patient] = true
			out = append(out, k.Patient)
		}
	}
	sort.Strings(out)
	return out
}

// Timepoints lists the distinct timepoints in order.
func (c *Collapsed) Timepoints() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range c.Keys {
		if !seen[k.Timepoint] {
			seen[k.Timepoint] = true
			out = append(out, k.Timepoint)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return TimepointLess(out[a], out[b]) })
	return out
}

// AsMatrix flattens keys to "patient|timepoint" sample names.
func (c *Collapsed) AsMatrix() *Matrix {
	names := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		names[i] = k.String()
	}
	return &Matrix{Loci: c.Loci, Samples: names, Values: c.Values}
}

// Table renders the values with "patient|timepoint" column names.
func (c *Collapsed) Table(label string) [][]string {
	return c.AsMatrix().Table(label)
}
