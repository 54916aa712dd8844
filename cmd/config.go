package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/dqaudit-cli/internal/config"
	"github.com/KaramelBytes/dqaudit-cli/internal/logger"
	"github.com/KaramelBytes/dqaudit-cli/internal/source"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set dqaudit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("source_driver: %s\n", cfg.SourceDriver)
		fmt.Printf("source_dsn: %s\n", mask(cfg.SourceDSN))
		fmt.Printf("demographic_table: %s\n", cfg.DemographicTable)
		fmt.Printf("laboratory_table: %s\n", cfg.LaboratoryTable)
		fmt.Printf("demographic_filter_column: %s\n", cfg.DemographicFilterColumn)
		fmt.Printf("laboratory_filter_column: %s\n", cfg.LaboratoryFilterColumn)
		fmt.Printf("output_dir: %s\n", cfg.OutputDir)
		fmt.Printf("profiles_dir: %s\n", cfg.ProfilesDir)
		if cfg.ThresholdsFile != "" {
			fmt.Printf("thresholds_file: %s\n", cfg.ThresholdsFile)
		}
		if cfg.MessageStoreURL != "" {
			fmt.Printf("message_store_url: %s\n", cfg.MessageStoreURL)
			fmt.Printf("message_store_token: %s\n", mask(cfg.MessageStoreToken))
		}
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Printf("retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	switch key {
	case "source_driver":
		d, err := source.NormalizeDriver(val)
		if err != nil {
			return err
		}
		c.SourceDriver = d
	case "source_dsn":
		c.SourceDSN = val
	case "demographic_table":
		c.DemographicTable = val
	case "laboratory_table":
		c.LaboratoryTable = val
	case "demographic_filter_column":
		c.DemographicFilterColumn = val
	case "laboratory_filter_column":
		c.LaboratoryFilterColumn = val
	case "output_dir":
		c.OutputDir = val
	case "profiles_dir":
		c.ProfilesDir = val
	case "thresholds_file":
		c.ThresholdsFile = val
	case "message_store_url":
		c.MessageStoreURL = val
	case "message_store_token":
		c.MessageStoreToken = val
	case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
		i, err := atoi()
		if err != nil {
			return err
		}
		switch key {
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			c.RetryBaseDelayMs = i
		default:
			c.RetryMaxDelayMs = i
		}
	case "log_level":
		if _, err := logger.ParseLevel(val); err != nil {
			return err
		}
		c.LogLevel = val
	case "log_format":
		if val != "text" && val != "json" {
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s (known: %v)", key, cfgpkg.Keys)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
