/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/gmaffy/emseq-whisperer/utils"
	"github.com/spf13/cobra"
)

// mergeFilteredCmd represents the mergeFiltered command
var mergeFilteredCmd = &cobra.Command{
	Use:   "mergeFiltered -f <glob20|globmin80> [-i <filtered file> ...]",
	Short: "Merges filtered spreadsheets of one family on their Header column",
	Long: `mergeFiltered outer-joins the filtered spreadsheets of a family on the
Header column and writes merged_output_<family>.xlsx to the output directory.
Without -i, every selected file of the family in the output directory is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		family := stringFlag(cmd, "family")
		out := stringFlag(cmd, "out")
		inputs, err := cmd.Flags().GetStringSlice("input")
		if err != nil {
			log.Fatalf("Error getting input flag: %v", err)
		}
		if len(inputs) == 0 {
			inputs, err = utils.FindFiles(cfg.OutputDir, family, analysis.SelectedSuffix)
			if err != nil {
				log.Fatalf("Error listing %s: %v", cfg.OutputDir, err)
			}
		}
		if out == "" {
			out = analysis.MergedPath(cfg.OutputDir, family)
		}
		if _, err := analysis.MergeFiltered(inputs, out); err != nil {
			log.Fatalf("Error merging files: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(mergeFilteredCmd)
	mergeFilteredCmd.Flags().StringP("family", "f", "glob20", "input family (glob20 or globmin80)")
	mergeFilteredCmd.Flags().StringSliceP("input", "i", nil, "filtered spreadsheet(s)")
	mergeFilteredCmd.Flags().String("out", "", "merged workbook path")
}
