package cmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/KaramelBytes/dqaudit-cli/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abAll         bool
	abConcurrency int
	abOutputDir   string
	abThresholds  string
	abExemplars   bool
	abQuiet       bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch [profiles...]",
	Short: "Audit several profiles concurrently",
	Long: `Audit several profiles concurrently. A failing profile does not stop the others;
every failure is reported at the end and the command exits non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		profiles, err := selectProfiles(abAll, args)
		if err != nil {
			return err
		}

		opt := auditOptions{OutputDir: abOutputDir, ThresholdsFile: abThresholds, Exemplars: abExemplars}
		out := cmd.OutOrStdout()
		var mu sync.Mutex
		total := len(profiles)
		results := make([]*report.Result, total)
		failures := make([]error, total)

		g, ctx := errgroup.WithContext(cmd.Context())
		if abConcurrency > 0 {
			g.SetLimit(abConcurrency)
		}
		for i, p := range profiles {
			g.Go(func() error {
				if !abQuiet {
					mu.Lock()
					fmt.Fprintf(out, "[%d/%d] Auditing %s...\n", i+1, total, p.Name)
					mu.Unlock()
				}
				res, err := runProfile(ctx, c, p, opt, defaultAuditDeps)
				if err != nil {
					failures[i] = fmt.Errorf("%s: %w", p.Name, err)
					log.Error("profile audit failed", "profile", p.Name, "error", err)
					return nil
				}
				results[i] = res
				return nil
			})
		}
		// Workers record failures instead of returning them.
		_ = g.Wait()

		for i, res := range results {
			if res == nil {
				continue
			}
			if !abQuiet {
				fmt.Fprintf(out, "%s:\n", profiles[i].Name)
				_ = printResult(out, res, false)
			}
		}
		if err := errors.Join(failures...); err != nil {
			return fmt.Errorf("batch audit failed:\n%w", err)
		}
		if !abQuiet {
			fmt.Fprintf(out, "✓ Audited %d profile(s)\n", total)
		}
		return nil
	},
}

// selectProfiles loads the named profiles, or all of them with all set.
func selectProfiles(all bool, names []string) ([]*profile.Profile, error) {
	if all == (len(names) > 0) {
		return nil, errors.New("pass profile names or --all, not both")
	}
	var profiles []*profile.Profile
	if all {
		root, err := defaultProfilesDir()
		if err != nil {
			return nil, err
		}
		if profiles, err = profile.List(root); err != nil {
			return nil, err
		}
	}
	seen := map[string]struct{}{}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		p, err := loadProfile(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return nil, errors.New("no profiles to audit")
	}
	return profiles, nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().BoolVar(&abAll, "all", false, "audit every profile")
	analyzeBatchCmd.Flags().IntVar(&abConcurrency, "concurrency", 4, "maximum profiles audited at once (0 = unlimited)")
	analyzeBatchCmd.Flags().StringVarP(&abOutputDir, "output", "o", "", "output directory (default from config)")
	analyzeBatchCmd.Flags().StringVar(&abThresholds, "thresholds", "", "YAML file of field: percent threshold overrides")
	analyzeBatchCmd.Flags().BoolVar(&abExemplars, "exemplars", false, "fetch exemplar messages and write the HL7 error document")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
