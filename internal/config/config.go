package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DQAUDIT_SOURCE_DSN.
const EnvPrefix = "DQAUDIT"

// Global configuration structure.
type Global struct {
	// Record source
	SourceDriver            string `mapstructure:"source_driver" yaml:"source_driver"`
	SourceDSN               string `mapstructure:"source_dsn" yaml:"source_dsn"`
	DemographicTable        string `mapstructure:"demographic_table" yaml:"demographic_table"`
	LaboratoryTable         string `mapstructure:"laboratory_table" yaml:"laboratory_table"`
	DemographicFilterColumn string `mapstructure:"demographic_filter_column" yaml:"demographic_filter_column"`
	LaboratoryFilterColumn  string `mapstructure:"laboratory_filter_column" yaml:"laboratory_filter_column"`

	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
	ProfilesDir    string `mapstructure:"profiles_dir" yaml:"profiles_dir"`
	ThresholdsFile string `mapstructure:"thresholds_file" yaml:"thresholds_file"`

	// Message store
	MessageStoreURL   string `mapstructure:"message_store_url" yaml:"message_store_url"`
	MessageStoreToken string `mapstructure:"message_store_token" yaml:"message_store_token"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists every settable key, in file order.
var Keys = []string{
	"source_driver", "source_dsn", "demographic_table", "laboratory_table",
	"demographic_filter_column", "laboratory_filter_column",
	"output_dir", "profiles_dir", "thresholds_file",
	"message_store_url", "message_store_token",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"log_level", "log_format",
}

// Dir returns ~/.dqaudit.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dqaudit"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dqaudit/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_driver", "postgres")
	v.SetDefault("demographic_table", "Disease Incident Export")
	v.SetDefault("laboratory_table", "Laboratory Information (system)")
	v.SetDefault("demographic_filter_column", "Laboratory")
	v.SetDefault("laboratory_filter_column", "HL7FILENAME")
	v.SetDefault("output_dir", ".")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// AutomaticEnv only applies to keys viper already knows about.
	for _, k := range Keys {
		_ = v.BindEnv(k)
	}

	var dir string
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		d, err := Dir()
		if err != nil {
			return nil, err
		}
		dir = d
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.ProfilesDir == "" {
		if dir == "" {
			d, err := Dir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		c.ProfilesDir = filepath.Join(dir, "profiles")
	}
	return &c, nil
}
