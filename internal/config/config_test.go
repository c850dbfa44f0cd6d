package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "clip", cfg.EmbedBackend)
	assert.Equal(t, 512, cfg.IndexDimension)
	assert.Equal(t, 3.0, cfg.Sensitivity)
	assert.Equal(t, 30, cfg.Window)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCENESEEK_SENSITIVITY", "2.5")
	t.Setenv("SCENESEEK_PG_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Sensitivity)
	assert.Equal(t, "db.internal", cfg.IndexConfig().Host)
}

func TestApplyTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensitivity: 2.0\nwindow: 10\nmin_scene_len: 5\nmin_score: 0.1\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyTuning(path))

	sc := cfg.SegmenterConfig()
	assert.Equal(t, 2.0, sc.Sensitivity)
	assert.Equal(t, 10, sc.Window)
	assert.Equal(t, 5, sc.MinSceneLen)
	assert.Equal(t, 0.1, sc.MinScore)
}

func TestApplyTuningPartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensitivity: 1.5\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyTuning(path))

	sc := cfg.SegmenterConfig()
	assert.Equal(t, 1.5, sc.Sensitivity)
	assert.Equal(t, 30, sc.Window, "unset keys keep their prior values")
}

func TestApplyTuningMissingFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.ApplyTuning("/does/not/exist.yaml"))
}
