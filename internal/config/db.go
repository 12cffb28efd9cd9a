package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	Driver          string `envconfig:"DRIVER" default:"postgres"`
	Host            string `envconfig:"HOST" default:"postgres"`
	Port            int    `envconfig:"PORT" default:"5432"`
	User            string `envconfig:"USER" default:"courts"`
	Password        string `envconfig:"PASSWORD" default:"courts"`
	Name            string `envconfig:"NAME" default:"courts_db"`
	SSLMode         string `envconfig:"SSLMODE" default:"disable"`
	TimeZone        string `envconfig:"TIMEZONE" default:"Europe/Berlin"`
	SQLitePath      string `envconfig:"SQLITE_PATH" default:"courts.db"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifeTime int    `envconfig:"CONN_MAX_LIFETIME_MIN" default:"30"` // минут
}

// LoadDBConfig читает переменные DB_*.
func LoadDBConfig() (*DBConfig, error) {
	var cfg DBConfig
	if err := envconfig.Process("DB", &cfg); err != nil {
		return nil, fmt.Errorf("load db config: %w", err)
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))

	// минимальная валидация
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.Host == "" || cfg.User == "" || cfg.Name == "" {
			return nil, fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("invalid DB config: DB_SQLITE_PATH must not be empty")
		}
	default:
		return nil, fmt.Errorf("invalid DB config: unknown driver %q", cfg.Driver)
	}

	return &cfg, nil
}

// DSN собирает строку подключения к Postgres.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
		c.TimeZone,
	)
}
