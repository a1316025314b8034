// Package config loads the layered promptgate configuration, grounded on
// the teacher's config.Load: defaults, overridden by a global file, overridden
// by a project-local file, overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full, unmarshalled server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Session SessionConfig `mapstructure:"session"`
	Gate    GateConfig    `mapstructure:"gate"`
}

// ServerConfig configures the HTTP transport (interfaces/http).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig configures the zap logger (infrastructure/logger).
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// PathsConfig locates on-disk prompt/gate authoring trees and runtime state
// (spec §6 on-disk layout). When MCP_SERVER_ROOT is set, Load points
// PromptsRoot and GatesRoot at its prompts/ and gates/ subdirectories;
// MCP_RESOURCES_PATH is not read.
type PathsConfig struct {
	PromptsRoot    string `mapstructure:"prompts_root"`
	GatesRoot      string `mapstructure:"gates_root"`
	RuntimeStateDir string `mapstructure:"runtime_state_dir"`
}

// SessionConfig tunes the chain session manager (C6).
type SessionConfig struct {
	StaleAfter string `mapstructure:"stale_after"` // duration string, e.g. "24h"
}

// GateConfig tunes gate evaluation defaults (C3).
type GateConfig struct {
	DefaultMaxAttempts int `mapstructure:"default_max_attempts"`
}

// EnvPrefix is the prefix for environment-variable overrides
// (PROMPTGATE_SERVER_PORT, PROMPTGATE_LOG_LEVEL, ...).
const EnvPrefix = "PROMPTGATE"

// AppDirName names the per-user global config directory, ~/.promptgate.
const AppDirName = ".promptgate"

// GlobalDir returns the user's global promptgate config directory.
func GlobalDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, AppDirName)
}

// Load builds a Config by layering, from lowest to highest priority:
// built-in defaults, ~/.promptgate/config.yaml, ./config.yaml, and
// PROMPTGATE_* environment variables (spec SPEC_FULL.md ambient stack).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(GlobalDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	if localPath := "./config.yaml"; fileExists(localPath) {
		local := viper.New()
		local.SetConfigFile(localPath)
		if err := local.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(local.AllSettings()); err != nil {
				return nil, fmt.Errorf("failed to merge local config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if root := os.Getenv("MCP_SERVER_ROOT"); root != "" {
		cfg.Paths.PromptsRoot = filepath.Join(root, "prompts")
		cfg.Paths.GatesRoot = filepath.Join(root, "gates")
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8790)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("paths.prompts_root", "prompts")
	v.SetDefault("paths.gates_root", "gates")
	v.SetDefault("paths.runtime_state_dir", "runtime-state")

	v.SetDefault("session.stale_after", "24h")

	v.SetDefault("gate.default_max_attempts", 2)
}
