package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	applog "expensetrack/internal/log"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Backend selects durable storage: "file" or "sqlite".
	// Environment variable: EXPENSES_BACKEND
	Backend string `koanf:"EXPENSES_BACKEND"`

	// FilePath is the JSON storage file used by the file backend.
	// Environment variable: EXPENSES_FILE
	FilePath string `koanf:"EXPENSES_FILE"`

	// SQLitePath is the database used by the sqlite backend.
	// Environment variable: EXPENSES_SQLITE_PATH
	SQLitePath string `koanf:"EXPENSES_SQLITE_PATH"`

	// SQLiteBusyRetries is the number of save attempts while the database is locked.
	// Environment variable: EXPENSES_SQLITE_BUSY_RETRIES
	SQLiteBusyRetries int `koanf:"EXPENSES_SQLITE_BUSY_RETRIES"`

	// CategoriesFile holds the category catalog.
	// Environment variable: EXPENSES_CATEGORIES_FILE
	CategoriesFile string `koanf:"EXPENSES_CATEGORIES_FILE"`

	// Environment variable: LOG_LEVEL
	LogLevel string `koanf:"LOG_LEVEL"`

	// LogFormat is "text" or "json".
	// Environment variable: LOG_FORMAT
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Backend:           BackendFile,
		FilePath:          "expenses.json",
		SQLitePath:        "./data/expenses.db",
		SQLiteBusyRetries: 3,
		CategoriesFile:    "categories.json",
		LogLevel:          "WARN",
		LogFormat:         "text",
	}
}

// Load reads the configuration from the environment over the defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{BackendFile, BackendSQLite}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.Backend == BackendFile && strings.TrimSpace(c.FilePath) == "" {
		errors = append(errors, "expenses file path cannot be empty when using file backend")
	}

	if c.Backend == BackendSQLite {
		if strings.TrimSpace(c.SQLitePath) == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
		if c.SQLiteBusyRetries < 1 || c.SQLiteBusyRetries > 20 {
			errors = append(errors, fmt.Sprintf("invalid sqlite busy retries %d: must be between 1 and 20", c.SQLiteBusyRetries))
		}
	}

	if strings.TrimSpace(c.CategoriesFile) == "" {
		errors = append(errors, "categories file path cannot be empty")
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// StoragePath returns the location of the selected backend.
func (c *Config) StoragePath() string {
	if c.Backend == BackendSQLite {
		return c.SQLitePath
	}
	return c.FilePath
}

// LogConfig converts the logging settings for internal/log. Call Validate first.
func (c *Config) LogConfig() applog.Config {
	lc := applog.DefaultConfig()
	if level, err := applog.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.JSON = c.LogFormat == "json"
	return lc
}
