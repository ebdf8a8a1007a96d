// Package config loads the client configuration from a YAML file with
// sensible defaults for local development.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the settings the CLI wires into the streaming client.
type Config struct {
	// BaseURL is the producer endpoint serving /chat_stream.
	BaseURL string `yaml:"base_url"`
	// Transport selects the push-connection flavor: "http" or "ws".
	Transport string `yaml:"transport"`
	// LogLevel is a zerolog level name (debug, info, warn, ...).
	LogLevel string `yaml:"log_level"`
	// TurnLogPath points at the SQLite turn log; empty disables persistence.
	TurnLogPath string `yaml:"turn_log"`
	// FrameDelayMs paces the dev producer's scripted stream.
	FrameDelayMs int `yaml:"frame_delay_ms"`
}

func Default() Config {
	return Config{
		BaseURL:      "http://localhost:8000",
		Transport:    "http",
		LogLevel:     "info",
		FrameDelayMs: 200,
	}
}

// Load reads a YAML config file on top of the defaults. A missing path
// returns the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is empty")
	}
	switch c.Transport {
	case "http", "ws":
	default:
		return errors.Errorf("config: unknown transport %q", c.Transport)
	}
	return nil
}
