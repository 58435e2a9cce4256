package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesDefaultsForAbsentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("display_mode = \"manual\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DisplayModeManual, cfg.DisplayMode)
	assert.Equal(t, 500, cfg.DisplayDelayMS)
	assert.Equal(t, Default().Decorations.Lifetime, cfg.Decorations.Lifetime)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("display_mode = [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "display_mode = \"sideways\"\ndisplay_delay_ms = -10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DisplayModeSelected, cfg.DisplayMode)
	assert.Equal(t, 500, cfg.DisplayDelayMS)
	assert.Equal(t, 2, cfg.Decorations.UnderlineThickness)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.DisplayMode = DisplayModeDisabled
	cfg.ServerPath = "/opt/rustowl/bin/rustowl"
	cfg.Decorations.HighlightBackground = true

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDisplayModeCycle(t *testing.T) {
	assert.Equal(t, DisplayModeManual, DisplayModeSelected.Cycle())
	assert.Equal(t, DisplayModeDisabled, DisplayModeManual.Cycle())
	assert.Equal(t, DisplayModeSelected, DisplayModeDisabled.Cycle())
}

func TestDisplayDelay(t *testing.T) {
	cfg := Config{DisplayDelayMS: 250}
	assert.Equal(t, 250*time.Millisecond, cfg.DisplayDelay())

	cfg.DisplayDelayMS = 0
	assert.Equal(t, 500*time.Millisecond, cfg.DisplayDelay())
}
