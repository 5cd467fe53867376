package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration. Flags override it.
type Config struct {
	Addr      string `yaml:"addr"`
	Templates string `yaml:"templates"`
	Page      string `yaml:"page"`
	Codec     string `yaml:"codec"`
	LogLevel  string `yaml:"log_level"`

	Client ClientConfig `yaml:"client"`
}

// ClientConfig configures the render command.
type ClientConfig struct {
	BaseURL   string `yaml:"base_url"`
	Endpoint  string `yaml:"endpoint"`
	Cable     string `yaml:"cable"`
	Transport string `yaml:"transport"`
}

func defaultConfig() Config {
	return Config{
		Addr:      ":8080",
		Templates: "templates",
		Codec:     "json",
		LogLevel:  "info",
		Client: ClientConfig{
			BaseURL:   "http://localhost:8080",
			Transport: "http",
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}
