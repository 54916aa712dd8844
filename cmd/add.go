package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	addProfileName string
	addRemove      bool
)

var addCmd = &cobra.Command{
	Use:   "add <term>",
	Short: "Add a facility match term to a profile",
	Long: `Add a facility match term to a profile. A record belongs to the lab when its
Laboratory (demographic) or HL7FILENAME (laboratory) column contains any term,
ignoring case. A profile holds at most five terms.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := args[0]
		p, err := loadProfile(addProfileName)
		if err != nil {
			return err
		}
		if addRemove {
			if !p.RemoveTerm(term) {
				return fmt.Errorf("match term %q not found in profile %s", term, p.Name)
			}
		} else if err := p.AddTerm(term); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		if addRemove {
			fmt.Printf("✓ Match term removed: %s\n", term)
		} else {
			fmt.Printf("✓ Match term added: %s\n", term)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addProfileName, "profile", "p", "", "profile name")
	addCmd.Flags().BoolVar(&addRemove, "remove", false, "remove the term instead of adding it")
}
