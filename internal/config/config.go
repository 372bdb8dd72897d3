package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds start-up parameters. File values are overridden by CLI flags.
type Config struct {
	// Tool is the pymobiledevice3 invocation vector.
	Tool []string `toml:"tool"`

	// HTTP transport.
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Token string `toml:"token"`

	// LogDurationSeconds is the default get_logs capture window.
	LogDurationSeconds int `toml:"log_duration_seconds"`

	Verbose bool `toml:"verbose"`
}

func Default() *Config {
	return &Config{
		Tool:               []string{"python3", "-m", "pymobiledevice3"},
		Host:               "0.0.0.0",
		Port:               8080,
		LogDurationSeconds: 5,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".idevice-mcp.toml"), nil
}

// Load reads a TOML config file, falling back to defaults when path is empty
// and no per-user file exists. An explicitly given path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}
