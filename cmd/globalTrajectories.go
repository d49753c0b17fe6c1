/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// globalTrajectoriesCmd represents the globalTrajectories command
var globalTrajectoriesCmd = &cobra.Command{
	Use:   "globalTrajectories -m <ratio matrix> [--row <label>]",
	Short: "Follows one global methylation value per sample across timepoints",
	Long: `globalTrajectories takes one row of the ratio matrix (the first data row
unless --row is given), averages replicates per patient and timepoint, and
writes per-patient tables, summary statistics and trajectory plots.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		opts := loadOptions(cfg)
		row := stringFlag(cmd, "row")
		input := stringFlag(cmd, "matrix")
		if input == "" {
			input = filepath.Join(cfg.OutputDir, analysis.GlobalMatrixName)
			if _, err := os.Stat(input); err != nil {
				input = matrixInput(cmd, cfg)
			}
		}
		if _, err := analysis.GlobalTrajectories(input, row, patientMatcher(cfg), opts); err != nil {
			log.Fatalf("Error plotting global trajectories: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(globalTrajectoriesCmd)
	globalTrajectoriesCmd.Flags().StringP("matrix", "m", "", "ratio matrix (default: global_ratio_matrix.csv, else the scaled ratio matrix in outdir)")
	globalTrajectoriesCmd.Flags().String("row", "", "row label to follow (default: first data row)")
}
