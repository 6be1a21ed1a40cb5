package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"ev-go/internal/config"
)

// Defaults are the application paths and overrides taken from the
// environment:
//   - EV_CONFIG_PATH: config file location (default: ~/.config/ev.toml)
//   - EV_HOME: base directory for ev data (default: ~/.local/share/ev)
//   - EV_ACTOR: actor recorded on ledger events, overriding the config
//   - EV_VAULT_ROOT: vault root, overriding the config
//   - EV_LOG_LEVEL: minimum log level (default: INFO)
type Defaults struct {
	ConfigPath string     `env:"EV_CONFIG_PATH"`
	BaseDir    string     `env:"EV_HOME"`
	Actor      string     `env:"EV_ACTOR"`
	VaultRoot  string     `env:"EV_VAULT_ROOT"`
	LogLevel   slog.Level `env:"EV_LOG_LEVEL" envDefault:"INFO"`
}

// LogDir is where logs go when the config does not say.
func (d *Defaults) LogDir() string {
	return filepath.Join(d.BaseDir, "log")
}

// GetDefaults reads the environment and fills in home-relative paths for
// anything unset.
func GetDefaults() (*Defaults, error) {
	var d Defaults
	if err := env.Parse(&d); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if d.ConfigPath == "" || d.BaseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if d.ConfigPath == "" {
			d.ConfigPath = filepath.Join(homeDir, ".config", "ev.toml")
		}
		if d.BaseDir == "" {
			d.BaseDir = filepath.Join(homeDir, ".local", "share", "ev")
		}
	}
	return &d, nil
}

// Apply copies the environment overrides onto cfg.
func (d *Defaults) Apply(cfg *config.Config) {
	if d.Actor != "" {
		cfg.Actor = d.Actor
	}
	if d.VaultRoot != "" {
		cfg.VaultRoot = d.VaultRoot
	}
	if cfg.LogDir == "" {
		cfg.LogDir = d.LogDir()
	}
}
