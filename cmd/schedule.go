package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cfgpkg "github.com/KaramelBytes/dqaudit-cli/internal/config"
	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// scheduleParser accepts five-field specs, an optional leading seconds field
// and descriptors such as @daily.
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var (
	schAll       bool
	schSpec      string
	schOutputDir string
	schExemplars bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [profiles...]",
	Short: "Run profile audits on their cron schedules until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		profiles, err := selectProfiles(schAll, args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cr, names, err := buildSchedule(ctx, c, profiles, schSpec, auditOptions{OutputDir: schOutputDir, Exemplars: schExemplars}, defaultAuditDeps)
		if err != nil {
			return err
		}
		cr.Start()
		for _, e := range cr.Entries() {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Scheduled %s: next run %s\n", names[e.ID], e.Next.Format("2006-01-02 15:04:05"))
		}
		<-ctx.Done()
		log.Info("stopping scheduler; waiting for running audits")
		<-cr.Stop().Done()
		return nil
	},
}

// buildSchedule registers one job per profile. spec overrides every profile's
// own schedule. The returned map names the profile behind each entry.
func buildSchedule(ctx context.Context, c *cfgpkg.Global, profiles []*profile.Profile, spec string, opt auditOptions, deps auditDeps) (*cron.Cron, map[cron.EntryID]string, error) {
	cl := cronLogger{log}
	cr := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	names := map[cron.EntryID]string{}
	for _, p := range profiles {
		s := spec
		if s == "" {
			s = p.Schedule
		}
		if s == "" {
			log.Warn("profile has no schedule; skipping", "profile", p.Name)
			continue
		}
		id, err := cr.AddFunc(s, func() { runScheduled(ctx, c, p, opt, deps) })
		if err != nil {
			return nil, nil, fmt.Errorf("schedule %s: %w", p.Name, err)
		}
		names[id] = p.Name
	}
	if len(names) == 0 {
		return nil, nil, errors.New("no profile has a schedule (set one with 'init --schedule' or pass --spec)")
	}
	return cr, names, nil
}

func runScheduled(ctx context.Context, c *cfgpkg.Global, p *profile.Profile, opt auditOptions, deps auditDeps) {
	l := log.With("profile", p.Name)
	l.Info("scheduled audit starting")
	res, err := runProfile(ctx, c, p, opt, deps)
	if err != nil {
		l.Error("scheduled audit failed", "error", err)
		return
	}
	l.Info("scheduled audit complete",
		"run_id", res.RunID,
		"workbook", res.WorkbookPath,
		"date_violations", len(res.Violations),
		"threshold_anomalies", len(res.Anomalies),
		"skipped_exemplars", len(res.Skipped))
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&schAll, "all", false, "schedule every profile")
	scheduleCmd.Flags().StringVar(&schSpec, "spec", "", "cron spec applied to every selected profile")
	scheduleCmd.Flags().StringVarP(&schOutputDir, "output", "o", "", "output directory (default from config)")
	scheduleCmd.Flags().BoolVar(&schExemplars, "exemplars", false, "fetch exemplar messages and write the HL7 error document")
}
