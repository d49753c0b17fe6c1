package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/components"

	"github.com/gmaffy/emseq-whisperer/delta"
	"github.com/gmaffy/emseq-whisperer/matrix"
	"github.com/gmaffy/emseq-whisperer/report"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
)

const trajectoryLabel = "Scaled Methylation Fragment Count Ratio"

// Trajectories is one value per sample followed across timepoints.
type Trajectories struct {
	Row        string
	Values     map[string]float64
	Samples    []samples.Meta
	Means      *matrix.Collapsed
	Patients   []string
	Timepoints map[string]delta.Summary
	Conditions map[string]delta.Summary
}

// sampleRow picks the row labelled label or, when label is empty, the first
// row under the header that is not a raw fragment total.
func sampleRow(grid [][]string, label string) (string, map[string]float64, error) {
	if len(grid) < 2 {
		return "", nil, fmt.Errorf("table has no data rows")
	}
	var row []string
	if label == "" {
		for _, r := range grid[1:] {
			if len(r) == 0 {
				continue
			}
			l := strings.TrimSpace(r[0])
			if l != matrix.Glob20Label && l != matrix.GlobMin80Label && l != matrix.TotalLabel {
				row = r
				break
			}
		}
		if row == nil {
			return "", nil, fmt.Errorf("table has only fragment total rows")
		}
	} else {
		for _, r := range grid[1:] {
			if len(r) > 0 && strings.TrimSpace(r[0]) == label {
				row = r
				break
			}
		}
		if row == nil {
			return "", nil, fmt.Errorf("no row labelled %q", label)
		}
	}
	values := make(map[string]float64)
	for j := 1; j < len(grid[0]); j++ {
		cell := ""
		if j < len(row) {
			cell = row[j]
		}
		values[strings.TrimSpace(grid[0][j])] = matrix.ParseValue(cell)
	}
	return strings.TrimSpace(row[0]), values, nil
}

var trajectoryOrder = []string{string(samples.Baseline), string(samples.OnTreatment), string(samples.PostTreatment)}

// GlobalTrajectories follows one row of the ratio matrix per sample across
// treatment timepoints. It writes sample metadata, per-patient counts and
// replicate tables, timepoint and condition statistics, and the trajectory
// plots.
func GlobalTrajectories(ratioPath, rowLabel string, pm *samples.PatientMatcher, opts Options) (*Trajectories, error) {
	grid, err := matrix.ReadTable(ratioPath)
	if err != nil {
		return nil, err
	}
	label, values, err := sampleRow(grid, rowLabel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ratioPath, err)
	}
	fmt.Printf("Following row %q across %d samples\n", label, len(values))

	names := make([]string, 0, len(values))
	for _, h := range grid[0][1:] {
		names = append(names, strings.TrimSpace(h))
	}
	m := matrix.New([]string{label}, names)
	for j, s := range names {
		m.Values[0][j] = values[s]
	}
	all, err := metadata(m, pm)
	if err != nil {
		return nil, err
	}
	valid := samples.Valid(all, false)
	tr := &Trajectories{Row: label, Values: values, Samples: valid}
	tr.Means = matrix.Collapse(m, valid, matrix.MissingNaN)

	// patients observed at more than one timepoint
	counts := make(map[string]int)
	for _, key := range tr.Means.Keys {
		if _, ok := tr.Means.Value(0, key); ok {
			counts[key.Patient]++
		}
	}
	for _, p := range tr.Means.Patients() {
		if counts[p] > 1 {
			tr.Patients = append(tr.Patients, p)
		}
	}

	tr.Timepoints = make(map[string]delta.Summary)
	for _, tp := range trajectoryOrder {
		var vals []float64
		for _, p := range tr.Patients {
			if v, ok := tr.Means.Value(0, samples.Key{Patient: p, Timepoint: tp}); ok {
				vals = append(vals, v)
			}
		}
		tr.Timepoints[tp] = delta.Summarize(vals)
	}
	tr.Conditions = make(map[string]delta.Summary)
	byCondition := conditionValues(all, values)
	for _, tp := range samples.Order {
		tr.Conditions[string(tp)] = delta.Summarize(byCondition[string(tp)])
	}

	if err := writeTrajectoryTables(tr, opts.OutputDir); err != nil {
		return nil, err
	}
	if err := plotTrajectories(tr, all, opts.PlotDir); err != nil {
		return nil, err
	}
	return tr, nil
}

func conditionValues(metas []samples.Meta, values map[string]float64) map[string][]float64 {
	out := make(map[string][]float64)
	for _, m := range metas {
		out[string(m.Timepoint)] = append(out[string(m.Timepoint)], values[m.Sample])
	}
	return out
}

func writeTrajectoryTables(tr *Trajectories, outDir string) error {
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	meta := [][]string{{"Sample", "Patient_ID", "Timepoint", "Replicate_ID"}}
	for _, m := range tr.Samples {
		meta = append(meta, []string{m.Sample, m.Patient, string(m.Timepoint), m.Replicate})
	}
	if err := report.WriteCSV(filepath.Join(outDir, "sample_metadata.csv"), meta); err != nil {
		return err
	}

	perPatient := [][]string{append([]string{"Patient_ID"}, trajectoryOrder...)}
	replicates := make(map[string][][]string)
	counts := make(map[samples.Key]int)
	for _, m := range tr.Samples {
		counts[samples.Key{Patient: m.Patient, Timepoint: string(m.Timepoint)}]++
		if replicates[m.Patient] == nil {
			replicates[m.Patient] = [][]string{{"Sample", "Timepoint", "Replicate_ID", "Scaled_Ratio"}}
		}
		replicates[m.Patient] = append(replicates[m.Patient],
			[]string{m.Sample, string(m.Timepoint), m.Replicate, matrix.FormatValue(tr.Values[m.Sample])})
	}
	patients := samples.Patients(tr.Samples)
	for _, p := range tr.Means.Patients() {
		row := []string{p}
		for _, tp := range trajectoryOrder {
			row = append(row, fmt.Sprint(counts[samples.Key{Patient: p, Timepoint: tp}]))
		}
		perPatient = append(perPatient, row)
	}
	if err := report.WriteCSV(filepath.Join(outDir, "per_patient_summary.csv"), perPatient); err != nil {
		return err
	}
	for _, p := range patients {
		if err := report.WriteCSV(filepath.Join(outDir, "per_patient_tables", p+".csv"), replicates[p]); err != nil {
			return err
		}
	}

	stats := [][]string{{"Timepoint", "count", "mean", "median", "std"}}
	for _, tp := range trajectoryOrder {
		s := tr.Timepoints[tp]
		stats = append(stats, []string{tp, fmt.Sprint(s.Count), matrix.FormatValue(s.Mean), matrix.FormatValue(s.Median), matrix.FormatValue(s.SD)})
	}
	if err := report.WriteCSV(filepath.Join(outDir, "summary_statistics.csv"), stats); err != nil {
		return err
	}

	cond := [][]string{{"Condition", "n", "Mean", "Median", "SD"}}
	for _, tp := range samples.Order {
		s := tr.Conditions[string(tp)]
		cond = append(cond, []string{string(tp), fmt.Sprint(s.Count), formatFixed(s.Mean, 2), formatFixed(s.Median, 2), formatFixed(s.SD, 2)})
	}
	return report.WriteCSV(filepath.Join(outDir, "condition_summary_stats.csv"), cond)
}

func plotTrajectories(tr *Trajectories, all []samples.Meta, plotDir string) error {
	lineDir := filepath.Join(plotDir, "lineplots")
	var series []report.Series
	for _, p := range tr.Patients {
		s := report.Series{Name: p}
		for _, tp := range trajectoryOrder {
			v, _ := tr.Means.Value(0, samples.Key{Patient: p, Timepoint: tp})
			s.Values = append(s.Values, v)
		}
		series = append(series, s)
		if err := report.LinePNG(filepath.Join(lineDir, "per_patient", p+".png"), "Patient: "+p, "Treatment Timepoint", trajectoryLabel, trajectoryOrder, []report.Series{s}); err != nil {
			return err
		}
	}
	avg := report.Series{Name: "Average"}
	var boxes []report.Box
	for _, tp := range trajectoryOrder {
		s := tr.Timepoints[tp]
		avg.Values = append(avg.Values, s.Mean)
	}
	byTimepoint := conditionValues(tr.Samples, tr.Values)
	for _, tp := range trajectoryOrder {
		s := delta.Summarize(byTimepoint[tp])
		boxes = append(boxes, report.Box{s.Min, s.Q1, s.Median, s.Q3, s.Max})
	}

	var chs []components.Charter
	if len(series) > 0 {
		if err := report.LinePNG(filepath.Join(lineDir, "methylation_longitudinal_plot.png"), "CpG Methylation Trajectories by Patient", "Treatment Timepoint", trajectoryLabel, trajectoryOrder, series); err != nil {
			return err
		}
		if err := report.LinePNG(filepath.Join(lineDir, "average_trajectory.png"), "Average Methylation Trajectory Across Patients", "Treatment Timepoint", trajectoryLabel, trajectoryOrder, []report.Series{avg}); err != nil {
			return err
		}
		chs = append(chs,
			report.LineChart("CpG Methylation Trajectories by Patient", "Treatment Timepoint", trajectoryLabel, trajectoryOrder, series),
			report.LineChart("Average Methylation Trajectory Across Patients", "Treatment Timepoint", trajectoryLabel, trajectoryOrder, []report.Series{avg}),
		)
	}
	chs = append(chs, report.BoxPlot("Distribution of Methylation by Timepoint", trajectoryLabel, trajectoryOrder, boxes))

	byCondition := conditionValues(all, tr.Values)
	var groups []string
	var values [][]float64
	for _, tp := range samples.Order {
		groups = append(groups, fmt.Sprintf("%s (n=%d)", tp, len(byCondition[string(tp)])))
		values = append(values, byCondition[string(tp)])
	}
	chs = append(chs, report.DotPlot("CpG Methylation by Condition", "CpG Methylation (Scaled Ratio)", groups, values))

	page := filepath.Join(plotDir, "global_trajectories.html")
	if err := report.RenderPage(page, chs...); err != nil {
		return err
	}
	fmt.Printf("Saved trajectory plots to: %s\n", plotDir)
	return nil
}
