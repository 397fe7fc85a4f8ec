package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type config struct {
	DatabaseURL      string        `env:"DATABASE_URL" yaml:"database_url"`
	HTTPAddr         string        `env:"HTTP_ADDR" yaml:"http_addr"`
	LogLevel         string        `env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat        string        `env:"LOG_FORMAT" yaml:"log_format"`
	CatalogFile      string        `env:"CATALOG_FILE" yaml:"catalog_file"`
	SnapshotLookback time.Duration `env:"SNAPSHOT_LOOKBACK" yaml:"snapshot_lookback"`
	AutoMigrate      bool          `env:"AUTO_MIGRATE" yaml:"auto_migrate"`
	OutboxInterval   time.Duration `env:"OUTBOX_INTERVAL" yaml:"outbox_interval"`
}

func defaultConfig() config {
	return config{
		HTTPAddr:         ":8080",
		LogLevel:         "info",
		LogFormat:        "json",
		SnapshotLookback: 24 * time.Hour,
		OutboxInterval:   5 * time.Second,
	}
}

// loadConfig applies defaults, then the YAML file named by CONFIG_FILE, then
// environment variables.
func loadConfig(environ map[string]string) (config, error) {
	cfg := defaultConfig()
	if path := environ["CONFIG_FILE"]; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = environ["PG_DSN"]
	}
	if cfg.DatabaseURL == "" {
		return config{}, errors.New("DATABASE_URL or PG_DSN is required")
	}
	if cfg.SnapshotLookback <= 0 {
		return config{}, errors.New("SNAPSHOT_LOOKBACK must be positive")
	}
	if cfg.OutboxInterval < 0 {
		return config{}, errors.New("OUTBOX_INTERVAL must not be negative")
	}
	return cfg, nil
}
