package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/gmaffy/emseq-whisperer/utils"
)

const (
	StageSelect     = "SELECT_PATIENTS"
	StageMerge      = "MERGE_FILTERED"
	StageRatios     = "SCALED_RATIOS"
	StageAnnotation = "GENE_ANNOTATION"
	StageGeneMatrix = "GENE_MATRIX"
	StageGlobal     = "GLOBAL_TRAJECTORIES"
	StageLocus      = "LOCUS_DELTAS"
	StageGeneDeltas = "GENE_DELTAS"
	StageChromosome = "CHROMOSOME_DELTAS"
	StageRanks      = "GENE_RANKS"
)

// Families are the two fragment-count input families, matched by file name.
var Families = []string{"glob20", "globmin80"}

type runner struct {
	log    *utils.RunLog
	logged []utils.LogEntry
	resume bool
}

func (r *runner) stage(step, input string, fn func() error) error {
	if r.resume && utils.StageHasCompleted(r.logged, step, input) {
		fmt.Printf("%s (%s) has already completed. Skipping.\n", step, input)
		return nil
	}
	fmt.Printf("================================== %s Start ======================================\n\n", step)
	r.log.Started(step, input)
	if err := fn(); err != nil {
		r.log.Failed(step, input, err)
		return fmt.Errorf("%s: %w", step, err)
	}
	r.log.Completed(step, input)
	fmt.Printf("================================== %s End ======================================\n\n", step)
	return nil
}

// familyInputs returns the configured file of family or, when none is set,
// every table in the data directory whose name contains the family keyword.
func familyInputs(cfg utils.Config, family, patientFile string) ([]string, error) {
	explicit := cfg.Glob20
	if family == "globmin80" {
		explicit = cfg.GlobMin80
	}
	if explicit != "" {
		return []string{explicit}, nil
	}
	found, err := utils.FindFiles(cfg.DataDir, family, ".xlsx", ".csv", ".tsv", ".csv.gz")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range found {
		if f == patientFile {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// RunFromConfig runs every stage in order. With resume, stages recorded as
// completed in the run log are skipped.
func RunFromConfig(cfg utils.Config, resume bool) error {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(cfg.OutputDir); err != nil {
		return err
	}
	rl, err := utils.NewRunLog(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer rl.Close()
	r := &runner{log: rl, logged: utils.ParseLogFile(rl.Path), resume: resume}

	patientFile, err := utils.ResolveFile(cfg.PatientFile, cfg.DataDir, "patient", ".xlsx", ".csv")
	if err != nil {
		return fmt.Errorf("patient list: %w", err)
	}
	pm, err := LoadMatcher(patientFile)
	if err != nil {
		return err
	}

	// ------ Preprocessing ------ //
	merged := make(map[string]string)
	for _, family := range Families {
		inputs, err := familyInputs(cfg, family, patientFile)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			continue
		}
		selected := make([]string, len(inputs))
		selectedDir := filepath.Join(cfg.OutputDir, "selected")
		for i, in := range inputs {
			selected[i] = SelectedPath(in, selectedDir)
		}
		err = r.stage(StageSelect, family, func() error {
			_, err := SelectPatients(inputs, pm.IDs(), selectedDir)
			return err
		})
		if err != nil {
			return err
		}
		out := MergedPath(cfg.OutputDir, family)
		err = r.stage(StageMerge, family, func() error {
			_, err := MergeFiltered(selected, out)
			return err
		})
		if err != nil {
			return err
		}
		merged[family] = out
	}

	matrixPath := cfg.MatrixFile
	if merged["glob20"] != "" && merged["globmin80"] != "" {
		ratioPath := filepath.Join(cfg.OutputDir, RatioMatrixName)
		err = r.stage(StageRatios, "ALL", func() error {
			_, err := ScaledRatios(merged["glob20"], merged["globmin80"], cfg.OutputDir)
			return err
		})
		if err != nil {
			return err
		}
		if matrixPath == "" {
			matrixPath = ratioPath
		}
	} else {
		fmt.Println("Glob20 and GlobMin80 inputs not both found; skipping scaled ratios")
	}
	if matrixPath == "" {
		return fmt.Errorf("%w: no MatrixFile configured and no glob20/globmin80 inputs in %s", utils.ErrNoMatchingFile, cfg.DataDir)
	}

	geneMapPath := cfg.GeneMap
	if geneMapPath == "" {
		geneMapPath = filepath.Join(cfg.OutputDir, GeneMapName)
		err = r.stage(StageAnnotation, "ALL", func() error {
			_, err := GeneAnnotation(matrixPath, cfg.OutputDir)
			return err
		})
		if err != nil {
			return err
		}
	}

	geneMatrixPath := filepath.Join(cfg.OutputDir, GeneMatrixName)
	err = r.stage(StageGeneMatrix, "ALL", func() error {
		_, err := GeneMatrix(matrixPath, geneMapPath, geneMatrixPath, opts.Aggregate)
		return err
	})
	if err != nil {
		return err
	}

	// ------ Analyses ------ //
	globalPath := filepath.Join(cfg.OutputDir, GlobalMatrixName)
	if _, err := os.Stat(globalPath); err != nil {
		globalPath = matrixPath
	}
	err = r.stage(StageGlobal, "ALL", func() error {
		_, err := GlobalTrajectories(globalPath, "", pm, opts)
		return err
	})
	if err != nil {
		return err
	}
	err = r.stage(StageLocus, "ALL", func() error {
		gm, err := annotation.ReadGeneMap(geneMapPath)
		if err != nil {
			return err
		}
		_, err = LocusDeltas(matrixPath, pm, gm, opts)
		return err
	})
	if err != nil {
		return err
	}
	err = r.stage(StageGeneDeltas, "ALL", func() error {
		_, err := GeneDeltas(matrixPath, geneMapPath, pm, opts)
		return err
	})
	if err != nil {
		return err
	}
	err = r.stage(StageChromosome, "ALL", func() error {
		_, err := ChromosomeDeltas(matrixPath, pm, opts)
		return err
	})
	if err != nil {
		return err
	}
	err = r.stage(StageRanks, "ALL", func() error {
		_, err := GeneRanks(geneMatrixPath, pm, opts)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("All stages completed. Run log: %s\n", rl.Path)
	return nil
}
