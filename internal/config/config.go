package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Drivers accepted in WARD_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the configuration values for the application.
type Config struct {
	ListenPort  string
	Driver      string
	DatabaseURL string
	SQLitePath  string
	Location    *time.Location
	Categories  []string
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ListenPort:  firstNonEmpty(getenv("LISTEN_PORT"), getenv("PORT"), "8080"),
		Driver:      strings.ToLower(firstNonEmpty(getenv("WARD_DRIVER"), DriverSQLite)),
		DatabaseURL: firstNonEmpty(getenv("DATABASE_URL"), "postgres://localhost:5432/controlh?sslmode=disable"),
		SQLitePath:  firstNonEmpty(getenv("WARD_SQLITE_PATH"), "controlh.db"),
		Location:    time.Local,
	}

	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("WARD_DRIVER %q: must be %s or %s", cfg.Driver, DriverSQLite, DriverPostgres)
	}

	if tz := getenv("WARD_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("WARD_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	if cats := getenv("WARD_CATEGORIES"); cats != "" {
		for _, c := range strings.Split(cats, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Categories = append(cfg.Categories, c)
			}
		}
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
