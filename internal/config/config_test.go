package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locomotion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
library:
  modes: ["./walk", "./run"]
  idle: ./idle
  rotation_tolerance: 10
character:
  start_position: [1, 0, 2]
  contact_velocity_threshold: 25
blend:
  half_life: 0.2
server:
  port: "9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"./walk", "./run"}, cfg.Library.Modes)
	assert.Equal(t, "./idle", cfg.Library.Idle)
	assert.Equal(t, 10.0, cfg.Library.RotationTolerance)
	assert.Equal(t, 7.0, cfg.Library.TranslationTolerance, "unset fields keep defaults")
	assert.Equal(t, [3]float64{1, 0, 2}, cfg.Character.StartPosition)
	assert.Equal(t, 25.0, cfg.Character.ContactVelocityThreshold)
	assert.Equal(t, [2]string{"LeftToe", "RightToe"}, cfg.Character.ContactJoints)
	assert.Equal(t, 0.2, cfg.Blend.HalfLife)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")
	t.Setenv(EnvPort, "7000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvWatch, "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Server.Watch)
}

func TestLoadEnvPath(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeConfig(t, "library: [unclosed"))
	assert.Error(t, err)

	t.Setenv(EnvWatch, "sometimes")
	_, err = Load(writeConfig(t, ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no modes", func(c *Config) { c.Library.Modes = nil }},
		{"empty mode", func(c *Config) { c.Library.Modes = []string{""} }},
		{"no idle", func(c *Config) { c.Library.Idle = "" }},
		{"negative tolerance", func(c *Config) { c.Library.RotationTolerance = -1 }},
		{"short segments", func(c *Config) { c.Library.MinSegmentFrames = 1 }},
		{"idle window of one", func(c *Config) { c.Library.IdleSegmentFrames = 1 }},
		{"zero threshold", func(c *Config) { c.Character.ContactVelocityThreshold = 0 }},
		{"vertical direction", func(c *Config) { c.Character.StartDirection = [3]float64{0, 1, 0} }},
		{"zero half-life", func(c *Config) { c.Blend.HalfLife = 0 }},
		{"no port", func(c *Config) { c.Server.Port = "" }},
		{"empty joint", func(c *Config) { c.Character.FacingJoints[1] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
