package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/teenpatti.db"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	SeedUsers   []string `env:"SEED_USERS" envSeparator:","`
	SeedBalance int64    `env:"SEED_BALANCE" envDefault:"10000"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return cfg, fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}
