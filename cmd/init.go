package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	initDescription string
	initTerms       []string
	initDemoExport  string
	initLabExport   string
	initSchedule    string
)

var initCmd = &cobra.Command{
	Use:   "init <lab-name>",
	Short: "Create an audit profile for a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("lab name is required")
		}
		root, err := defaultProfilesDir()
		if err != nil {
			return err
		}
		dir := profile.Dir(root, name)
		// Refuse to overwrite an existing profile.
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(dir, "profile.json")); err == nil {
				return fmt.Errorf("profile already exists at %s", dir)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("inspect profile directory: %w", err)
			}
			if len(entries) > 0 {
				return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize profile", dir)
			}
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat profile directory: %w", err)
		}
		if initSchedule != "" {
			if _, err := scheduleParser.Parse(initSchedule); err != nil {
				return fmt.Errorf("invalid --schedule %q: %w", initSchedule, err)
			}
		}
		if (initDemoExport == "") != (initLabExport == "") {
			return errors.New("--demographic and --laboratory must be set together")
		}
		for _, path := range []*string{&initDemoExport, &initLabExport} {
			if *path == "" {
				continue
			}
			abs, err := filepath.Abs(*path)
			if err != nil {
				return fmt.Errorf("resolve export path: %w", err)
			}
			*path = abs
		}
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
		p := profile.New(name, initDescription, dir)
		for _, t := range initTerms {
			if err := p.AddTerm(t); err != nil {
				return err
			}
		}
		p.Exports = profile.Exports{Demographic: initDemoExport, Laboratory: initLabExport}
		p.Schedule = initSchedule
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Profile initialized: %s\n", dir)
		return nil
	},
}

// defaultProfilesDir resolves the configured profiles directory, expanding a
// leading ~ and creating it when missing.
func defaultProfilesDir() (string, error) {
	c, err := loadedConfig()
	if err != nil {
		return "", err
	}
	dir := c.ProfilesDir
	if dir == "" {
		return "", errors.New("profiles_dir is not configured")
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = strings.TrimPrefix(dir, "~")
		dir = strings.TrimPrefix(dir, string(os.PathSeparator))
		dir = strings.TrimPrefix(dir, "/")
		dir = filepath.Join(home, dir)
	}
	dir = filepath.Clean(dir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func loadProfile(name string) (*profile.Profile, error) {
	if name == "" {
		return nil, errors.New("--profile is required")
	}
	root, err := defaultProfilesDir()
	if err != nil {
		return nil, err
	}
	return profile.Resolve(root, name)
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initDescription, "desc", "d", "", "profile description")
	initCmd.Flags().StringSliceVarP(&initTerms, "term", "t", nil, "facility match term (repeatable, at most 5)")
	initCmd.Flags().StringVar(&initDemoExport, "demographic", "", "demographic export file audited instead of the database")
	initCmd.Flags().StringVar(&initLabExport, "laboratory", "", "laboratory export file audited instead of the database")
	initCmd.Flags().StringVar(&initSchedule, "schedule", "", "cron spec for 'dqaudit schedule' (e.g. \"0 6 * * 1\")")
}
