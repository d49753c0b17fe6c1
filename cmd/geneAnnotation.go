/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// geneAnnotationCmd represents the geneAnnotation command
var geneAnnotationCmd = &cobra.Command{
	Use:   "geneAnnotation -m <methylation matrix>",
	Short: "Builds the structured gene annotation and the cgi_id/gene_name map",
	Long: `geneAnnotation parses CGI_chr<N>_<start>_<end>_<genes> labels into a
structured annotation table and melts it into gene_cgi_map.csv.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		matrixPath := matrixInput(cmd, cfg)
		if _, err := analysis.GeneAnnotation(matrixPath, cfg.OutputDir); err != nil {
			log.Fatalf("Error building gene annotation: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(geneAnnotationCmd)
	geneAnnotationCmd.Flags().StringP("matrix", "m", "", "methylation matrix (default: scaled ratio matrix in outdir)")
}
