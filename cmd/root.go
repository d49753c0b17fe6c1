/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/gmaffy/emseq-whisperer/samples"
	"github.com/gmaffy/emseq-whisperer/utils"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "emseq-whisperer",
	Short: "A toolkit for EM-seq CpG island methylation analysis",
	Long: `A toolkit for longitudinal EM-seq fragment-count analysis:
1.	Preprocessing: (patient selection, merging, scaled Glob20/GlobMin80 ratios)
2.	Gene annotation & gene-level methylation matrices
3.	Global trajectories per patient and condition
4.	Paired locus, gene and chromosome deltas across treatment timepoints
5.	Gene rank slope plots
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file ")
	rootCmd.PersistentFlags().StringP("datadir", "d", "data", "directory holding input spreadsheets and the patient list")
	rootCmd.PersistentFlags().StringP("outdir", "o", "output", "directory for tables")
	rootCmd.PersistentFlags().StringP("plotdir", "p", "plots", "directory for plots")
	rootCmd.PersistentFlags().StringP("patients", "P", "", "patient id list (default: first file in datadir containing 'patient')")
	rootCmd.PersistentFlags().IntP("threads", "t", 4, "comparisons computed in parallel")
}

// loadConfig reads the config file when given and lets explicitly set flags
// override it.
func loadConfig(cmd *cobra.Command) utils.Config {
	cfg := utils.DefaultConfig()
	if cfgFile != "" {
		var err error
		cfg, err = utils.ReadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Error reading config file: %v", err)
		}
	}
	flags := cmd.Flags()
	for _, f := range []struct {
		name string
		dst  *string
	}{{"datadir", &cfg.DataDir}, {"outdir", &cfg.OutputDir}, {"plotdir", &cfg.PlotDir}, {"patients", &cfg.PatientFile}} {
		if cfgFile != "" && !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			log.Fatalf("Error getting %s flag: %v", f.name, err)
		}
		if v != "" {
			*f.dst = v
		}
	}
	if cfgFile == "" || flags.Changed("threads") {
		threads, err := flags.GetInt("threads")
		if err != nil {
			log.Fatalf("Error getting threads flag: %v", err)
		}
		cfg.Threads = threads
	}
	return cfg
}

func loadOptions(cfg utils.Config) analysis.Options {
	opts, err := analysis.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Error in configuration: %v", err)
	}
	return opts
}

// findPatientMatcher loads the patient list from the config or datadir. With
// no -P and no list in the datadir it returns nil.
func findPatientMatcher(cfg utils.Config) (*samples.PatientMatcher, error) {
	path, err := utils.ResolveFile(cfg.PatientFile, cfg.DataDir, "patient", ".xlsx", ".csv")
	if cfg.PatientFile == "" && errors.Is(err, utils.ErrNoMatchingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding patient list: %w", err)
	}
	pm, err := analysis.LoadMatcher(path)
	if err != nil {
		return nil, fmt.Errorf("loading patient list: %w", err)
	}
	return pm, nil
}

// patientMatcher is findPatientMatcher for the analysis commands. A nil
// matcher derives patient ids from the sample names.
func patientMatcher(cfg utils.Config) *samples.PatientMatcher {
	pm, err := findPatientMatcher(cfg)
	if err != nil {
		log.Fatalf("Error %v", err)
	}
	if pm == nil {
		fmt.Printf("No patient list found in %s, deriving patient ids from sample names\n", cfg.DataDir)
	}
	return pm
}

// stringFlag reads a local string flag, exiting on lookup errors.
func stringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		log.Fatalf("Error getting %s flag: %v", name, err)
	}
	return v
}

// resolveInput returns path when set, otherwise the first file in dir whose
// name contains keyword.
func resolveInput(path, dir, keyword string) string {
	file, err := utils.ResolveFile(path, dir, keyword, ".xlsx", ".csv", ".tsv", ".csv.gz")
	if err != nil {
		log.Fatalf("Error finding %s input: %v", keyword, err)
	}
	return file
}

// matrixInput is the -m flag, the configured MatrixFile, or the scaled ratio
// matrix in the output directory.
func matrixInput(cmd *cobra.Command, cfg utils.Config) string {
	if m := stringFlag(cmd, "matrix"); m != "" {
		return m
	}
	if cfg.MatrixFile != "" {
		return cfg.MatrixFile
	}
	return filepath.Join(cfg.OutputDir, analysis.RatioMatrixName)
}
