package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.SourceDriver)
	assert.Equal(t, "Disease Incident Export", c.DemographicTable)
	assert.Equal(t, "HL7FILENAME", c.LaboratoryFilterColumn)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".dqaudit", "profiles"), c.ProfilesDir)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source_driver: sqlite\nsource_dsn: export.db\nretry_max_attempts: 5\n"), 0o644))
	t.Setenv("DQAUDIT_SOURCE_DSN", "override.db")
	t.Setenv("DQAUDIT_LOG_FORMAT", "json")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.SourceDriver)
	assert.Equal(t, "override.db", c.SourceDSN)
	assert.Equal(t, 5, c.RetryMaxAttempts)
	assert.Equal(t, "json", c.LogFormat)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := &Global{SourceDriver: "sqlite", MessageStoreURL: "http://store", HTTPTimeoutSec: 9}
	require.NoError(t, Save(in, path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://store", out.MessageStoreURL)
	assert.Equal(t, 9, out.HTTPTimeoutSec)
}

func TestLoadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Race: 90\nFACILITYZIP: 80.5\n"), 0o644))
	th, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Race": 90, "FACILITYZIP": 80.5}, th)

	none, err := LoadThresholds("")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, os.WriteFile(path, []byte("Race: 120\n"), 0o644))
	_, err = LoadThresholds(path)
	assert.Error(t, err)
}
