/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/gmaffy/emseq-whisperer/analysis"
	"github.com/gmaffy/emseq-whisperer/utils"
	"github.com/spf13/cobra"
)

// selectPatientsCmd represents the selectPatients command
var selectPatientsCmd = &cobra.Command{
	Use:   "selectPatients -i <filter file> [-i <filter file> ...]",
	Short: "Keeps only the sample columns of listed patients",
	Long: `selectPatients reads every input spreadsheet and keeps the label column
plus the columns whose names contain a patient id from the patient list.
Without -i, every Glob20/GlobMin80 spreadsheet in the data directory is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		inputs, err := cmd.Flags().GetStringSlice("input")
		if err != nil {
			log.Fatalf("Error getting input flag: %v", err)
		}
		if len(inputs) == 0 {
			for _, family := range analysis.Families {
				found, err := utils.FindFiles(cfg.DataDir, family, ".xlsx", ".csv", ".tsv", ".csv.gz")
				if err != nil {
					log.Fatalf("Error listing %s: %v", cfg.DataDir, err)
				}
				inputs = append(inputs, found...)
			}
		}
		if len(inputs) == 0 {
			log.Fatalf("No input files given or found in %s", cfg.DataDir)
		}
		pm, err := findPatientMatcher(cfg)
		if err != nil {
			log.Fatalf("Error %v", err)
		}
		if pm == nil {
			log.Fatalf("selectPatients needs a patient list: pass -P or add a file containing 'patient' to %s", cfg.DataDir)
		}
		written, err := analysis.SelectPatients(inputs, pm.IDs(), cfg.OutputDir)
		if err != nil {
			log.Fatalf("Error selecting patients: %v", err)
		}
		fmt.Printf("Wrote %d filtered files to %s\n", len(written), cfg.OutputDir)
	},
}

func init() {
	rootCmd.AddCommand(selectPatientsCmd)
	selectPatientsCmd.Flags().StringSliceP("input", "i", nil, "input spreadsheet(s)")
}
