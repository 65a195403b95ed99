// Package config loads the service configuration from defaults, an optional
// TOML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Supported datastore drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config is the complete service configuration.
type Config struct {
	Port            int           `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string      `toml:"allowed_origins"`

	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig describes how to reach the datastore. Only the fields
// relevant to Driver are read.
type DatabaseConfig struct {
	Driver string `toml:"driver"`

	// postgres
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	Schema   string `toml:"schema"`
	SSLMode  string `toml:"sslmode"`

	// sqlite
	Path string `toml:"path"`

	// mongo
	URI        string `toml:"uri"`
	Collection string `toml:"collection"`

	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	AutoMigrate     bool          `toml:"auto_migrate"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is console or json.
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Port:            8080,
		ShutdownTimeout: 5 * time.Second,
		AllowedOrigins:  []string{"https://*", "http://*"},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			Name:            "todo",
			SSLMode:         "disable",
			Path:            "todo.db",
			URI:             "mongodb://localhost:27017",
			Collection:      "todos",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present; CONFIG_FILE, when set, names a TOML file applied
// over the defaults; environment variables win over both.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes a TOML file on top of the current values; keys missing
// from the file keep their defaults. Durations are written as "10s".
func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if err := envDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return err
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	setString(&c.Database.Driver, os.Getenv("BLUEPRINT_DB_DRIVER"))
	setString(&c.Database.Host, os.Getenv("BLUEPRINT_DB_HOST"))
	setString(&c.Database.Port, os.Getenv("BLUEPRINT_DB_PORT"))
	setString(&c.Database.Username, os.Getenv("BLUEPRINT_DB_USERNAME"))
	setString(&c.Database.Password, os.Getenv("BLUEPRINT_DB_PASSWORD"))
	setString(&c.Database.Name, os.Getenv("BLUEPRINT_DB_DATABASE"))
	setString(&c.Database.Schema, os.Getenv("BLUEPRINT_DB_SCHEMA"))
	setString(&c.Database.SSLMode, os.Getenv("BLUEPRINT_DB_SSLMODE"))
	setString(&c.Database.Path, os.Getenv("BLUEPRINT_DB_PATH"))
	setString(&c.Database.URI, os.Getenv("BLUEPRINT_DB_URI"))
	setString(&c.Database.Collection, os.Getenv("BLUEPRINT_DB_COLLECTION"))
	if err := envInt("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns); err != nil {
		return err
	}
	if err := envInt("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns); err != nil {
		return err
	}
	if err := envDuration("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime); err != nil {
		return err
	}
	if err := envBool("DB_AUTO_MIGRATE", &c.Database.AutoMigrate); err != nil {
		return err
	}

	setString(&c.Log.Level, os.Getenv("LOG_LEVEL"))
	setString(&c.Log.Format, os.Getenv("LOG_FORMAT"))
	return envBool("LOG_ADD_SOURCE", &c.Log.AddSource)
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DSN builds the libpq-style connection string used for postgres.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
	if d.Schema != "" {
		dsn += " search_path=" + d.Schema
	}
	return dsn
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
