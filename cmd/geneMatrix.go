/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"
	"path/filepath"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/spf13/cobra"
)

// geneMatrixCmd represents the geneMatrix command
var geneMatrixCmd = &cobra.Command{
	Use:   "geneMatrix -m <methylation matrix> -g <gene map>",
	Short: "Aggregates CpG loci into a gene x sample methylation matrix",
	Long: `geneMatrix assigns every locus whose label contains a mapped gene name to
that gene and aggregates the loci per sample (sum or mean).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		matrixPath := matrixInput(cmd, cfg)
		geneMap := stringFlag(cmd, "genemap")
		if geneMap == "" {
			geneMap = resolveInput(cfg.GeneMap, cfg.OutputDir, "cgi_map")
		}
		agg := stringFlag(cmd, "aggregate")
		if agg == "" {
			agg = cfg.Aggregate
		}
		how, err := annotation.ParseAggregate(agg)
		if err != nil {
			log.Fatalf("Error getting aggregate flag: %v", err)
		}
		out := filepath.Join(cfg.OutputDir, analysis.GeneMatrixName)
		if _, err := analysis.GeneMatrix(matrixPath, geneMap, out, how); err != nil {
			log.Fatalf("Error building gene matrix: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(geneMatrixCmd)
	geneMatrixCmd.Flags().StringP("matrix", "m", "", "methylation matrix (default: scaled ratio matrix in outdir)")
	geneMatrixCmd.Flags().StringP("genemap", "g", "", "cgi_id/gene_name map (default: *cgi_map* in outdir)")
	geneMatrixCmd.Flags().StringP("aggregate", "a", "", "sum or mean (default from config: sum)")
}
