/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// chrDeltasCmd represents the chrDeltas command
var chrDeltasCmd = &cobra.Command{
	Use:   "chrDeltas -m <methylation matrix>",
	Short: "Mean methylation change per chromosome for every comparison",
	Long: `chrDeltas pools the paired locus deltas of every comparison by chromosome
(1..22, X, Y) and writes chr_avg_summary.xlsx with an overlay chart.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		zero, err := cmd.Flags().GetBool("fill_zero")
		if err != nil {
			log.Fatalf("Error getting fill_zero flag: %v", err)
		}
		if cmd.Flags().Changed("fill_zero") {
			cfg.FillMissingZero = zero
		}
		opts := loadOptions(cfg)
		if _, err := analysis.ChromosomeDeltas(matrixInput(cmd, cfg), patientMatcher(cfg), opts); err != nil {
			log.Fatalf("Error computing chromosome deltas: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chrDeltasCmd)
	chrDeltasCmd.Flags().StringP("matrix", "m", "", "methylation matrix (default: scaled ratio matrix in outdir)")
	chrDeltasCmd.Flags().BoolP("fill_zero", "z", false, "treat missing cells as zero before averaging replicates")
}
