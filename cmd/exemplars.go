package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/report"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exOutputPath string
)

var exemplarsCmd = &cobra.Command{
	Use:   "exemplars <findings.json>",
	Short: "Fetch exemplar messages for a previous run's findings",
	Long: `Fetch the stored message behind every threshold anomaly and date-order violation
recorded in a findings file and write them to <lab>_HL7_Error.docx next to it.
Accessions the message store cannot return are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		f, err := report.LoadFindings(args[0])
		if err != nil {
			return err
		}
		if len(f.Anomalies) == 0 && len(f.Violations) == 0 {
			fmt.Println("(no findings; nothing to fetch)")
			return nil
		}
		store, err := defaultAuditDeps.newMessages(c)
		if err != nil {
			return err
		}
		doc, skipped := report.Exemplars(cmd.Context(), store, log.With("run_id", f.RunID), f.Anomalies, f.Violations)
		out := exOutputPath
		if out == "" {
			out = filepath.Join(filepath.Dir(args[0]), utils.SafeName(f.Lab)+"_HL7_Error.docx")
		}
		if err := doc.Save(out); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		fmt.Printf("✓ Exemplar document written: %s\n", out)
		if len(skipped) > 0 {
			fmt.Printf("⚠ %d exemplar message(s) could not be fetched: %s\n", len(skipped), strings.Join(skipped, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exemplarsCmd)
	exemplarsCmd.Flags().StringVarP(&exOutputPath, "output", "o", "", "document path (default next to the findings file)")
}
