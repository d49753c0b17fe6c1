/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/gmaffy/emseq-whisperer/annotation"
	"github.com/spf13/cobra"
)

// locusDeltasCmd represents the locusDeltas command
var locusDeltasCmd = &cobra.Command{
	Use:   "locusDeltas -m <methylation matrix> -g <gene map>",
	Short: "Paired per-CpG-island deltas with top-N plots, GFF tracks and bubble plots",
	Long: `locusDeltas computes the paired per-locus change of every comparison,
tests it with a paired t-test, and bundles the tables, bar plots and GFF tracks
into top-10-differential-methylation-plots.zip.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		opts := loadOptions(cfg)
		geneMap := stringFlag(cmd, "genemap")
		if geneMap == "" {
			geneMap = resolveInput(cfg.GeneMap, cfg.OutputDir, "cgi_map")
		}
		gm, err := annotation.ReadGeneMap(geneMap)
		if err != nil {
			log.Fatalf("Error reading gene map: %v", err)
		}
		if _, err := analysis.LocusDeltas(matrixInput(cmd, cfg), patientMatcher(cfg), gm, opts); err != nil {
			log.Fatalf("Error computing locus deltas: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(locusDeltasCmd)
	locusDeltasCmd.Flags().StringP("matrix", "m", "", "methylation matrix (default: scaled ratio matrix in outdir)")
	locusDeltasCmd.Flags().StringP("genemap", "g", "", "cgi_id/gene_name map (default: *cgi_map* in outdir)")
}
