package cmd

import (
	"github.com/spf13/cobra"
)

var (
	runProfileName string
	runOutputDir   string
	runThresholds  string
	runPrint       bool
	runExemplars   bool
)

var runProfileCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit one profile against its exports or the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		p, err := loadProfile(runProfileName)
		if err != nil {
			return err
		}
		res, err := runProfile(cmd.Context(), c, p, auditOptions{
			OutputDir:      runOutputDir,
			ThresholdsFile: runThresholds,
			Exemplars:      runExemplars,
		}, defaultAuditDeps)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res, runPrint)
	},
}

func init() {
	rootCmd.AddCommand(runProfileCmd)
	runProfileCmd.Flags().StringVarP(&runProfileName, "profile", "p", "", "profile name")
	runProfileCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "output directory (default from config)")
	runProfileCmd.Flags().StringVar(&runThresholds, "thresholds", "", "YAML file of field: percent threshold overrides")
	runProfileCmd.Flags().BoolVar(&runPrint, "print", false, "print every table as Markdown")
	runProfileCmd.Flags().BoolVar(&runExemplars, "exemplars", false, "fetch exemplar messages and write the HL7 error document")
}
