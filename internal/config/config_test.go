package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Tasks.DefaultPriority)
	assert.Equal(t, 2.5, cfg.Tasks.DefaultEffort)
	assert.Equal(t, 0.7, cfg.Tasks.DefaultConfidence)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, time.Monday, cfg.WeekStart())
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("display:\n  theme: light\n"))
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.Display.Theme)
	assert.Equal(t, "comfortable", cfg.Display.Density)
	assert.Equal(t, 7, cfg.Tasks.SoonDays)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	_, err := config.FromYAML([]byte("tasks:\n  default_priority: 9\n"))
	assert.Error(t, err)
	_, err = config.FromYAML([]byte("time:\n  timezone: Mars/Olympus\n"))
	assert.Error(t, err)
	_, err = config.FromYAML([]byte("display: [unterminated"))
	assert.Error(t, err)
}

func TestSetAndSave(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Set("accent", "green"))
	assert.Equal(t, "#4CC38A", cfg.Display.AccentColor)
	require.NoError(t, cfg.Set("presenter", "true"))
	require.NoError(t, cfg.Set("density", "compact"))
	assert.Error(t, cfg.Set("theme", "neon"))
	require.NoError(t, cfg.Set("theme", "light"))
	assert.Error(t, cfg.Set("nope", "1"))

	require.NoError(t, config.Save(dir, cfg))
	_, err = os.Stat(config.Path(dir))
	require.NoError(t, err)

	loaded, err := config.Load(dir)
	require.NoError(t, err)
	assert.True(t, loaded.Display.PresenterMode)
	assert.Equal(t, "compact", loaded.Display.Density)
	assert.Equal(t, "light", loaded.Display.Theme)
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load(t.TempDir())
	assert.Error(t, err)
}
