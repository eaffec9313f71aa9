package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_MissingFileIsEmpty(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.False(t, s.Paired())
	assert.False(t, s.Active)
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), AppName, "config.yaml")
	token := "dev-token"

	require.NoError(t, SaveSettings(path, &Settings{DeviceToken: &token, BackendURL: "https://relay.example", Active: true}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "device_token: dev-token")
	assert.Contains(t, string(raw), "active: true")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.True(t, s.Paired())
	assert.Equal(t, "dev-token", *s.DeviceToken)
	assert.Equal(t, "https://relay.example", s.BackendURL)
}

func TestLoadSettings_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active: [unterminated"), 0o600))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestDefaultSettingsPath_HonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := DefaultSettingsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, AppName, "config.yaml"), path)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("AFK_BACKEND_URL", "http://localhost:8080")
	t.Setenv("AFK_DEBUG", "true")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", e.BackendURL)
	assert.True(t, e.Debug)
}
