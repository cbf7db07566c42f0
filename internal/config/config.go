package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Catalog sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"TRIVIA_PORT"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`
	Catalog struct {
		Source         string `yaml:"source" env:"TRIVIA_CATALOG_SOURCE"`
		NamesPath      string `yaml:"names_path" env:"TRIVIA_CATALOG_NAMES"`
		DataPath       string `yaml:"data_path" env:"TRIVIA_CATALOG_DATA"`
		CategoriesPath string `yaml:"categories_path" env:"TRIVIA_CATALOG_CATEGORIES"`
		TTL            string `yaml:"ttl" env:"TRIVIA_CATALOG_TTL"`
	} `yaml:"catalog"`
	Assets struct {
		ImageDir     string `yaml:"image_dir" env:"TRIVIA_IMAGE_DIR"`
		BaseURL      string `yaml:"base_url" env:"TRIVIA_IMAGE_BASE_URL"`
		DefaultImage string `yaml:"default_image" env:"TRIVIA_DEFAULT_IMAGE"`
	} `yaml:"assets"`
	Store struct {
		Driver     string `yaml:"driver" env:"TRIVIA_STORE_DRIVER"`
		SQLitePath string `yaml:"sqlite_path" env:"TRIVIA_SQLITE_PATH"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr" env:"TRIVIA_REDIS_ADDR"`
		Password string `yaml:"password" env:"TRIVIA_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"TRIVIA_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"TRIVIA_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"postgres"`
}

// Load reads YAML config from path, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = SourceFile
	}
	if c.Assets.BaseURL == "" {
		c.Assets.BaseURL = "/images"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/trivia.db"
	}
}

// Validate checks the combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.NamesPath == "" || c.Catalog.DataPath == "" {
			return fmt.Errorf("catalog names_path and data_path are required for the file source")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if (c.Store.Driver == DriverPostgres || c.Catalog.Source == SourcePostgres) && c.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
