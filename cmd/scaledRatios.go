/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/spf13/cobra"
)

// scaledRatiosCmd represents the scaledRatios command
var scaledRatiosCmd = &cobra.Command{
	Use:   "scaledRatios --glob20 <merged glob20> --globmin80 <merged globmin80>",
	Short: "Computes Glob20/GlobMin80 x 100000 per locus and sample",
	Long: `scaledRatios divides the Glob20 fragment counts by the GlobMin80 counts of
every shared locus and sample, scaled by 100000. Division by zero is written as
INF and highlighted in the workbook.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		g20 := stringFlag(cmd, "glob20")
		if g20 == "" {
			g20 = cfg.Glob20
		}
		gm80 := stringFlag(cmd, "globmin80")
		if gm80 == "" {
			gm80 = cfg.GlobMin80
		}
		if g20 == "" {
			g20 = analysis.MergedPath(cfg.OutputDir, "glob20")
		}
		if gm80 == "" {
			gm80 = analysis.MergedPath(cfg.OutputDir, "globmin80")
		}
		if _, err := analysis.ScaledRatios(g20, gm80, cfg.OutputDir); err != nil {
			log.Fatalf("Error computing scaled ratios: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(scaledRatiosCmd)
	scaledRatiosCmd.Flags().String("glob20", "", "merged Glob20 spreadsheet")
	scaledRatiosCmd.Flags().String("globmin80", "", "merged GlobMin80 spreadsheet")
}
