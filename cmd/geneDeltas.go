/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// geneDeltasCmd represents the geneDeltas command
var geneDeltasCmd = &cobra.Command{
	Use:   "geneDeltas -m <methylation matrix> -g <gene map>",
	Short: "Paired per-gene deltas with heatmaps and line plots of the top genes",
	Long: `geneDeltas averages the CpG loci of genes with at least MinLoci loci,
computes paired deltas and t-tests for every comparison, and plots the top
genes by |delta| overall and per patient.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		opts := loadOptions(cfg)
		geneMap := stringFlag(cmd, "genemap")
		if geneMap == "" {
			geneMap = resolveInput(cfg.GeneMap, cfg.OutputDir, "cgi_map")
		}
		if _, err := analysis.GeneDeltas(matrixInput(cmd, cfg), geneMap, patientMatcher(cfg), opts); err != nil {
			log.Fatalf("Error computing gene deltas: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(geneDeltasCmd)
	geneDeltasCmd.Flags().StringP("matrix", "m", "", "methylation matrix (default: scaled ratio matrix in outdir)")
	geneDeltasCmd.Flags().StringP("genemap", "g", "", "cgi_id/gene_name map (default: *cgi_map* in outdir)")
}
