package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/spf13/cobra"
)

var (
	thrProfileName string
	thrClear       bool
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold <field> [percent]",
	Short: "Set or clear a per-field completeness threshold for a profile",
	Long: `Set or clear a per-field completeness threshold for a profile. A field whose
completeness falls below its threshold gets one exemplar record in the
Threshold_Errors sheet. Unset fields use the defaults (100, or 95 for the
ordering facility address fields).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field := args[0]
		defaults := audit.DefaultThresholds(audit.DefaultDemographicSchema(), audit.DefaultLaboratorySchema())
		if _, ok := defaults[field]; !ok {
			return fmt.Errorf("unknown field %q (known: %v)", field, sortedKeys(defaults))
		}
		p, err := loadProfile(thrProfileName)
		if err != nil {
			return err
		}
		if thrClear {
			delete(p.Thresholds, field)
		} else {
			if len(args) < 2 {
				return fmt.Errorf("percent is required unless --clear is set")
			}
			pct, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid percent %q: %w", args[1], err)
			}
			if err := p.SetThreshold(field, pct); err != nil {
				return err
			}
		}
		if err := p.Save(); err != nil {
			return err
		}
		if thrClear {
			fmt.Printf("✓ Cleared threshold for %s (default %.0f)\n", field, defaults[field])
		} else {
			fmt.Printf("✓ Threshold for %s set to %s\n", field, args[1])
		}
		return nil
	},
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(thresholdCmd)
	thresholdCmd.Flags().StringVarP(&thrProfileName, "profile", "p", "", "profile name")
	thresholdCmd.Flags().BoolVar(&thrClear, "clear", false, "clear the override and fall back to the default")
}
