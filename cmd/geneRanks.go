/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// geneRanksCmd represents the geneRanks command
var geneRanksCmd = &cobra.Command{
	Use:   "geneRanks -m <gene methylation matrix> [--cap 21]",
	Short: "Per-sample gene ranks and per-patient rank slope plots",
	Long: `geneRanks ranks genes within every sample (1 = most methylated), caps
ranks at --cap, and draws one slope chart per patient with two or more
timepoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		rankCap, err := cmd.Flags().GetInt("cap")
		if err != nil {
			log.Fatalf("Error getting cap flag: %v", err)
		}
		if cmd.Flags().Changed("cap") || cfgFile == "" {
			cfg.RankCap = rankCap
		}
		opts := loadOptions(cfg)
		geneMatrix := stringFlag(cmd, "matrix")
		if geneMatrix == "" {
			geneMatrix = filepath.Join(cfg.OutputDir, analysis.GeneMatrixName)
		}
		if _, err := analysis.GeneRanks(geneMatrix, patientMatcher(cfg), opts); err != nil {
			log.Fatalf("Error ranking genes: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(geneRanksCmd)
	geneRanksCmd.Flags().StringP("matrix", "m", "", "gene methylation matrix (default: gene_methylation_matrix.csv in outdir)")
	geneRanksCmd.Flags().Int("cap", 21, "ranks at or beyond this value are collapsed to it")
}
