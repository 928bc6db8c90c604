// Package config loads .pythion.yml settings. Flags override file
// values, the file overrides defaults, and the API key comes from the
// environment only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".pythion.yml"

// Config holds the tunables a run needs.
type Config struct {
	Model          string   `yaml:"model"`
	BaseURL        string   `yaml:"base_url"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Workers        int      `yaml:"workers"`
	IgnoreDirs     []string `yaml:"ignore_dirs"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Model:          "gpt-4o-mini",
		TimeoutSeconds: 30,
		Workers:        8,
	}
}

// Load reads the config file at path over the defaults. A missing file
// is fine unless the user named it explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Workers < 1 {
		return cfg, fmt.Errorf("config %s: workers must be at least 1", path)
	}
	if cfg.TimeoutSeconds < 1 {
		return cfg, fmt.Errorf("config %s: timeout_seconds must be at least 1", path)
	}
	return cfg, nil
}

// Timeout returns the request timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIKey returns the API key from the environment. It is never read
// from the config file.
func APIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EnvBaseURL returns the endpoint override from the environment, used
// when neither flag nor file set one.
func EnvBaseURL() string {
	return os.Getenv("OPENAI_BASE_URL")
}
