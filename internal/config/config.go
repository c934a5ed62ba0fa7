// Package config loads the greeter configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the greeter application configuration.
type Config struct {
	Users    UsersConfig    `yaml:"users"`
	Sessions SessionsConfig `yaml:"sessions"`
	State    StateConfig    `yaml:"state"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// UsersConfig locates the account database and its filter policy file.
type UsersConfig struct {
	PasswdPath string `yaml:"passwd_path"`
	ConfPath   string `yaml:"conf_path"`
}

// SessionsConfig locates the session descriptor directory.
type SessionsConfig struct {
	Dir string `yaml:"dir"`
}

// StateConfig locates the greeter state database.
type StateConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Users: UsersConfig{
			PasswdPath: "/etc/passwd",
			ConfPath:   "/etc/lumin/users.conf",
		},
		Sessions: SessionsConfig{Dir: "/usr/share/xsessions"},
		State:    StateConfig{Path: "/var/lib/lumin/greeter.db"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration from a file, filling unset fields with
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}
