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

// runAllCmd represents the runAll command
var runAllCmd = &cobra.Command{
	Use:   "runAll -c <config file> [--resume | --stamp]",
	Short: "Runs preprocessing and every analysis stage",
	Long: `runAll selects patients, merges and scales the Glob20/GlobMin80 inputs,
builds the gene map and gene matrix, and runs every analysis. Stages are
recorded in emseq.log in the output directory; --resume skips stages already
recorded as completed. --stamp writes the run into a new time-stamped
directory under the output directory instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		resume, err := cmd.Flags().GetBool("resume")
		if err != nil {
			log.Fatalf("Error getting resume flag: %v", err)
		}
		stamp, err := cmd.Flags().GetBool("stamp")
		if err != nil {
			log.Fatalf("Error getting stamp flag: %v", err)
		}
		if stamp {
			if resume {
				log.Fatalf("--resume and --stamp cannot be combined")
			}
			cfg.OutputDir, err = utils.CreateResultsDir(cfg.OutputDir, "emseq-run")
			if err != nil {
				log.Fatalf("%v", err)
			}
		}
		if err := analysis.RunFromConfig(cfg, resume); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runAllCmd)
	runAllCmd.Flags().BoolP("resume", "r", false, "skip stages completed in a previous run")
	runAllCmd.Flags().BoolP("stamp", "s", false, "write tables into a new time-stamped directory under the output directory")
}
