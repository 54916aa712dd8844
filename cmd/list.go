package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/spf13/cobra"
)

var (
	listProfileName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit profiles, or the settings of one profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listProfileName != "" {
			p, err := loadProfile(listProfileName)
			if err != nil {
				return err
			}
			printProfile(p)
			return nil
		}
		root, err := defaultProfilesDir()
		if err != nil {
			return err
		}
		profiles, err := profile.List(root)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("(no profiles)")
			return nil
		}
		for _, p := range profiles {
			terms := "(all facilities)"
			if len(p.Terms) > 0 {
				terms = strings.Join(p.Terms, ", ")
			}
			fmt.Printf("- %s: %s\n", p.Name, terms)
		}
		return nil
	},
}

func printProfile(p *profile.Profile) {
	fmt.Printf("name: %s\n", p.Name)
	if p.Description != "" {
		fmt.Printf("description: %s\n", p.Description)
	}
	fmt.Printf("id: %s\n", p.ID)
	if len(p.Terms) == 0 {
		fmt.Println("terms: (none)")
	} else {
		fmt.Printf("terms: %s\n", strings.Join(p.Terms, ", "))
	}
	if p.Exports.HasFiles() {
		fmt.Printf("demographic export: %s\n", p.Exports.Demographic)
		fmt.Printf("laboratory export: %s\n", p.Exports.Laboratory)
	}
	if p.Schedule != "" {
		fmt.Printf("schedule: %s\n", p.Schedule)
	}
	if len(p.Thresholds) > 0 {
		fields := make([]string, 0, len(p.Thresholds))
		for f := range p.Thresholds {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		fmt.Println("thresholds:")
		for _, f := range fields {
			fmt.Printf("  %s: %g\n", f, p.Thresholds[f])
		}
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listProfileName, "profile", "p", "", "show the settings of one profile")
}
