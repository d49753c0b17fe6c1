package analysis

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/gmaffy/emseq-whisperer/delta"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
)

// Options holds the settings shared by every analysis stage.
type Options struct {
	OutputDir       string
	PlotDir         string
	TopN            int
	RankCap         int
	MinLoci         int
	Aggregate       annotation.Aggregate
	Delta           delta.Options
	Comparisons     []delta.Comparison
	FillMissingZero bool
	Threads         int
}

func OptionsFromConfig(cfg utils.Config) (Options, error) {
	agg, err := annotation.ParseAggregate(cfg.Aggregate)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		OutputDir:       cfg.OutputDir,
		PlotDir:         cfg.PlotDir,
		TopN:            cfg.TopN,
		RankCap:         cfg.RankCap,
		MinLoci:         cfg.MinLoci,
		Aggregate:       agg,
		Delta:           delta.Options{MinPairs: cfg.MinPairs, Permutations: cfg.Permutations, Seed: cfg.Seed},
		FillMissingZero: cfg.FillMissingZero,
		Threads:         cfg.Threads,
	}
	for _, c := range cfg.Comparisons {
		cmp, err := delta.ParseComparison(c)
		if err != nil {
			return Options{}, err
		}
		opts.Comparisons = append(opts.Comparisons, cmp)
	}
	if len(opts.Comparisons) == 0 {
		opts.Comparisons = delta.StandardComparisons()
	}
	return opts, nil
}

func (o Options) threads() int {
	if o.Threads < 1 {
		return 1
	}
	return o.Threads
}

func (o Options) missingPolicy() matrix.MissingPolicy {
	if o.FillMissingZero {
		return matrix.MissingZero
	}
	return matrix.MissingNaN
}

// selectionComparison is the comparison used to pick top genes:
// Baseline -> Post-Treatment when requested, otherwise the first one.
func (o Options) selectionComparison() delta.Comparison {
	for _, c := range o.Comparisons {
		if c.From == string(samples.Baseline) && c.To == string(samples.PostTreatment) {
			return c
		}
	}
	return o.Comparisons[0]
}

// LoadMatcher reads the patient id list. An empty path returns a nil matcher,
// so patients are derived from sample names.
func LoadMatcher(path string) (*samples.PatientMatcher, error) {
	if path == "" {
		return nil, nil
	}
	ids, err := matrix.LoadPatientIDs(path)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %d patient ids from %s\n", len(ids), path)
	return samples.NewPatientMatcher(ids), nil
}

// loadMatrix reads the locus block of a fragment-count or ratio sheet.
func loadMatrix(path string) (*matrix.Matrix, error) {
	grid, err := matrix.ReadTable(path)
	if err != nil {
		return nil, err
	}
	m, err := matrix.FromTable(grid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// metadata classifies every sample column. A patient list must resolve each
// sample to at most one id; without one, ids come from the sample names.
func metadata(m *matrix.Matrix, pm *samples.PatientMatcher) ([]samples.Meta, error) {
	if pm != nil {
		if err := pm.CheckInjective(m.Samples); err != nil {
			return nil, fmt.Errorf("patient list: %w", err)
		}
	}
	metas, err := samples.BuildMetadata(m.Samples, pm)
	if err != nil {
		return nil, fmt.Errorf("patient matching: %w", err)
	}
	return metas, nil
}

// collapseFor averages replicates per patient and the timepoint labels each
// comparison refers to. Comparisons of the same kind share one collapse.
func collapseFor(m *matrix.Matrix, metas []samples.Meta, cmps []delta.Comparison, policy matrix.MissingPolicy) []*matrix.Collapsed {
	var coarse, detailed *matrix.Collapsed
	out := make([]*matrix.Collapsed, len(cmps))
	for i, cmp := range cmps {
		if cmp.Detailed() {
			if detailed == nil {
				detailed = matrix.CollapseBy(m, metas, matrix.ByDetailedTimepoint, policy)
			}
			out[i] = detailed
			continue
		}
		if coarse == nil {
			coarse = matrix.Collapse(m, metas, policy)
		}
		out[i] = coarse
	}
	return out
}

func writeWorkbook(path string, sheets []string, grids [][][]string, highlight bool) error {
	wb, err := report.NewWorkbook()
	if err != nil {
		return err
	}
	for i, name := range sheets {
		sheet, err := wb.AddSheet(name, grids[i])
		if err != nil {
			return err
		}
		if highlight {
			n, err := wb.HighlightINF(sheet)
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Printf("Highlighted %d division-by-zero cells in %s\n", n, sheet)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return wb.Save(path)
}

func formatFixed(v float64, prec int) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func resultRows(results []delta.Result, label string) [][]string {
	grid := [][]string{{label, "Avg_Delta", "n", "T-stat", "P-value", "Perm-P"}}
	for _, r := range results {
		grid = append(grid, []string{
			r.ID,
			matrix.FormatValue(r.AvgDelta),
			fmt.Sprint(r.N),
			matrix.FormatValue(r.TStat),
			matrix.FormatValue(r.PValue),
			matrix.FormatValue(r.PermP),
		})
	}
	return grid
}

func resultIDs(results []delta.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func resultDeltas(results []delta.Result) []float64 {
	vals := make([]float64, len(results))
	for i, r := range results {
		vals[i] = r.AvgDelta
	}
	return vals
}
