// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Session   SessionConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings for postgres or sqlite.
type DatabaseConfig struct {
	Driver     string // postgres | sqlite
	DSNRaw     string // DATABASE_DSN override
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	Debug      bool
}

// Migration modes for AppConfig.Migrations.
const (
	MigrateAuto = "auto"
	MigrateSQL  = "sql"
	MigrateOff  = "off"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations string
	Seed       bool

	// AdminEmail and AdminPassword bootstrap a first admin user when both are set.
	AdminEmail    string
	AdminPassword string
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // json | text
}

// SchedulerConfig drives the recurring transaction job.
type SchedulerConfig struct {
	Cron         string
	RunOnStart   bool
	CatchUpLimit int
}

// CacheConfig sizes the role cache used by authorization checks.
type CacheConfig struct {
	RoleTTL  time.Duration
	RoleSize int
}

// DSN returns the PostgreSQL connection string in key=value format,
// or DATABASE_DSN when set.
func (d DatabaseConfig) DSN() string {
	if d.DSNRaw != "" {
		return d.DSNRaw
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	if strings.HasPrefix(d.DSNRaw, "postgres://") || strings.HasPrefix(d.DSNRaw, "postgresql://") {
		return d.DSNRaw
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// IsPostgres reports whether the postgres driver is selected.
func (d DatabaseConfig) IsPostgres() bool { return d.Driver != "sqlite" }

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSNRaw:     strings.Trim(strings.TrimSpace(os.Getenv("DATABASE_DSN")), "\"'"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "backoffice"),
			Password:   getEnv("DB_PASSWORD", "backoffice"),
			DBName:     getEnv("DB_NAME", "backoffice"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "backoffice.db"),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnvChoice("MIGRATIONS", MigrateAuto, MigrateAuto, MigrateSQL, MigrateOff),
			Seed:          getEnvBool("DB_SEED", true),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			TTL:    getEnvDuration("SESSION_TTL", 14*24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Scheduler: SchedulerConfig{
			Cron:         getEnv("SCHEDULER_CRON", "0 2 * * *"),
			RunOnStart:   getEnvBool("SCHEDULER_RUN_ON_START", false),
			CatchUpLimit: getEnvInt("SCHEDULER_CATCH_UP_LIMIT", 366),
		},
		Cache: CacheConfig{
			RoleTTL:  getEnvDuration("ROLE_CACHE_TTL", 5*time.Minute),
			RoleSize: getEnvInt("ROLE_CACHE_SIZE", 1024),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses a Go duration string ("5m", "336h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvChoice returns the lower-cased value when it is one of allowed.
// Legacy boolean values map "1/true/yes" to sql and "0/false/no" to auto.
func getEnvChoice(key, defaultValue string, allowed ...string) string {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "1", "true", "yes":
		return MigrateSQL
	case "0", "false", "no":
		return defaultValue
	}
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return defaultValue
}
