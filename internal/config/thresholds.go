package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadThresholds reads a YAML mapping of field name to minimum percent
// complete. An empty path yields no overrides.
func LoadThresholds(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	var out map[string]float64
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	for k, v := range out {
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("threshold for %s must be between 0 and 100, got %v", k, v)
		}
	}
	return out, nil
}
