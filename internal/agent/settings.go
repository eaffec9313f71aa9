package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	AppName           = "claude-afk"
	DefaultBackendURL = "https://claude-afk.treeleaf.dev"
)

// Settings is the persisted pairing state.
type Settings struct {
	DeviceToken *string `yaml:"device_token,omitempty"`
	BackendURL  string  `yaml:"backend_url,omitempty"`
	Active      bool    `yaml:"active"`
}

func (s *Settings) Paired() bool {
	return s.DeviceToken != nil && *s.DeviceToken != ""
}

// Env is read from the process environment on every run.
type Env struct {
	BackendURL string `env:"AFK_BACKEND_URL"`
	Debug      bool   `env:"AFK_DEBUG"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// DefaultSettingsPath honours XDG_CONFIG_HOME through os.UserConfigDir.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, AppName, "config.yaml"), nil
}

// LoadSettings returns zero Settings when the file does not exist yet.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &s, nil
}

// SaveSettings writes owner-only; the file holds the device credential.
func SaveSettings(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
