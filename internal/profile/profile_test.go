package profile_test

import (
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileSaveLoad(t *testing.T) {
	dir := t.TempDir()
	p := profile.New("North Lab", "weekly audit", profile.Dir(dir, "North Lab"))
	require.NoError(t, p.AddTerm("north"))
	require.NoError(t, p.AddTerm("NWL"))
	require.NoError(t, p.SetThreshold("Race", 90))
	require.NoError(t, p.Save())

	got, err := profile.Resolve(dir, "North Lab")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, []string{"north", "NWL"}, got.Terms)
	assert.Equal(t, 90.0, got.Thresholds["Race"])
	assert.Equal(t, filepath.Join(dir, "North_Lab"), got.RootDir())

	byDir, err := profile.Resolve(dir, got.RootDir())
	require.NoError(t, err)
	assert.Equal(t, p.ID, byDir.ID)
}

func TestAddTermLimits(t *testing.T) {
	p := profile.New("x", "", t.TempDir())
	for _, term := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, p.AddTerm(term))
	}
	assert.Error(t, p.AddTerm("f"))
	assert.Error(t, p.AddTerm("A"))
	assert.Error(t, p.AddTerm(" "))
	assert.True(t, p.RemoveTerm("C"))
	assert.False(t, p.RemoveTerm("zzz"))
	assert.Equal(t, []string{"a", "b", "d", "e"}, p.Terms)
}

func TestSetThresholdRange(t *testing.T) {
	p := profile.New("x", "", t.TempDir())
	assert.Error(t, p.SetThreshold("Race", 101))
	assert.Error(t, p.SetThreshold("Race", -1))
	assert.Error(t, p.SetThreshold("", 50))
	assert.NoError(t, p.SetThreshold("Race", 0))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"South", "East"} {
		require.NoError(t, profile.New(name, "", profile.Dir(dir, name)).Save())
	}
	ps, err := profile.List(dir)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "East", ps[0].Name)

	none, err := profile.List(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
