package cmd

import (
	"errors"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/spf13/cobra"
)

var (
	anaDemographic string
	anaLaboratory  string
	anaLab         string
	anaProfile     string
	anaTerms       []string
	anaOutputDir   string
	anaThresholds  string
	anaPrint       bool
	anaExemplars   bool
	anaDelimiter   string
	anaEncoding    string
	anaSheetName   string
	anaSheetIndex  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit a pair of demographic and laboratory export files (CSV/TSV/XLSX)",
	Long: `Audit a pair of export files. The demographic export needs the Incident_ID column
and the laboratory export the IncidentID column; both are joined on them. Rows are kept
when the Laboratory (demographic) or HL7FILENAME (laboratory) column contains any match
term. The workbook <lab>_data_quality_reports.xlsx and <lab>_findings.json are written
to the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		var p *profile.Profile
		if anaProfile != "" {
			if p, err = loadProfile(anaProfile); err != nil {
				return err
			}
		}
		lab := strings.TrimSpace(anaLab)
		terms := anaTerms
		if p != nil {
			if lab == "" {
				lab = p.Name
			}
			if len(terms) == 0 {
				terms = p.Terms
			}
		}
		if lab == "" {
			return errors.New("--lab or --profile is required")
		}
		opt := auditOptions{
			OutputDir:      anaOutputDir,
			ThresholdsFile: anaThresholds,
			Exemplars:      anaExemplars,
			Sheet:          anaSheetName,
			SheetIndex:     anaSheetIndex,
			Delimiter:      anaDelimiter,
			Encoding:       anaEncoding,
		}
		provider, err := newFileProvider(c, anaDemographic, anaLaboratory, opt)
		if err != nil {
			return err
		}
		thresholds, err := thresholdOverrides(c, p, anaThresholds)
		if err != nil {
			return err
		}
		res, err := runAudit(cmd.Context(), c, provider, lab, terms, thresholds, opt, defaultAuditDeps)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res, anaPrint)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaDemographic, "demographic", "", "demographic export (CSV/TSV/XLSX)")
	analyzeCmd.Flags().StringVar(&anaLaboratory, "laboratory", "", "laboratory export (CSV/TSV/XLSX)")
	analyzeCmd.Flags().StringVar(&anaLab, "lab", "", "lab name used for output file names")
	analyzeCmd.Flags().StringVarP(&anaProfile, "profile", "p", "", "take lab name, terms and thresholds from a profile")
	analyzeCmd.Flags().StringSliceVarP(&anaTerms, "term", "t", nil, "facility match term (repeatable, at most 5)")
	analyzeCmd.Flags().StringVarP(&anaOutputDir, "output", "o", "", "output directory (default from config)")
	analyzeCmd.Flags().StringVar(&anaThresholds, "thresholds", "", "YAML file of field: percent threshold overrides")
	analyzeCmd.Flags().BoolVar(&anaPrint, "print", false, "print every table as Markdown")
	analyzeCmd.Flags().BoolVar(&anaExemplars, "exemplars", false, "fetch exemplar messages and write the HL7 error document")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe' (auto-detect if omitted)")
	analyzeCmd.Flags().StringVar(&anaEncoding, "encoding", "", "CSV character set, e.g. windows-1252 (default UTF-8)")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to read")
	analyzeCmd.Flags().IntVar(&anaSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
