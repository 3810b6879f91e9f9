// SPDX-License-Identifier: MPL-2.0

// Package config assembles the run configuration from defaults, an optional
// YAML config file, and environment variables, in ascending precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for config directory layout.
	AppName = "secup"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
)

// Config is the resolved run configuration. Flag-driven toggles are merged
// in by the CLI layer after loading; nothing here mutates after startup.
type Config struct {
	InstallPrefix string `mapstructure:"install_prefix"`
	GitHubToken   string `mapstructure:"github_token"`

	DryRun     bool `mapstructure:"-"`
	UpdateOnly bool `mapstructure:"-"`
	Verbose    bool `mapstructure:"-"`
}

// ConfigDir returns the secup configuration directory, honoring
// $XDG_CONFIG_HOME and defaulting to ~/.config.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, AppName), nil
}

// DefaultInstallPrefix returns the per-user installation directory.
func DefaultInstallPrefix() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "bin"), nil
}

// Load builds the configuration. Precedence, lowest to highest: built-in
// defaults, the optional config file at <config-dir>/config.yaml, then
// environment variables (SECUP_INSTALL_PREFIX, SECUP_GITHUB_TOKEN, with
// GITHUB_TOKEN accepted as the conventional token variable).
func Load() (*Config, error) {
	v := viper.New()

	defaultPrefix, err := DefaultInstallPrefix()
	if err != nil {
		return nil, err
	}
	v.SetDefault("install_prefix", defaultPrefix)
	v.SetDefault("github_token", "")

	v.SetEnvPrefix("SECUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// GITHUB_TOKEN is the conventional variable; SECUP_GITHUB_TOKEN wins
	// when both are set.
	if err := v.BindEnv("github_token", "SECUP_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cfgDir)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.InstallPrefix, err = expandHome(cfg.InstallPrefix)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// EnsurePrefix verifies the install prefix exists (creating it if needed)
// and is writable. Called once before any tool is processed; dry runs skip
// it because they never write.
func EnsurePrefix(prefix string) error {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return fmt.Errorf("creating install prefix %s: %w", prefix, err)
	}

	probe, err := os.CreateTemp(prefix, ".secup-writable-*")
	if err != nil {
		return fmt.Errorf("install prefix %s is not writable: %w", prefix, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return nil
}

// expandHome resolves a leading "~/" in path against the user's home
// directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
