package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Transfer TransferConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	Migrate         bool
}

type AuthConfig struct {
	JWTSecret string
}

// TransferConfig tunes the transfer engine.
type TransferConfig struct {
	LockTimeout   time.Duration
	UnitTimeout   time.Duration
	MaxConcurrent int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string // debug, info, warn, error
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	maxOpenConns := getEnvAsInt("DB_MAX_OPEN_CONNS", 25)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:        getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("STORE_DRIVER", StoreDriverPostgres),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "funds"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "10m"),
			Migrate:         getEnvAsBool("DB_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Transfer: TransferConfig{
			LockTimeout:   getEnvAsDuration("TRANSFER_LOCK_TIMEOUT", "5s"),
			UnitTimeout:   getEnvAsDuration("TRANSFER_UNIT_TIMEOUT", "10s"),
			MaxConcurrent: getEnvAsInt("TRANSFER_MAX_CONCURRENT", maxOpenConns),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("max open connections must be positive, got %d", c.Database.MaxOpenConns)
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required with the %s store", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("invalid store driver: %s (must be %s or %s)", c.Database.Driver, StoreDriverPostgres, StoreDriverMemory)
	}

	if c.Transfer.LockTimeout <= 0 {
		return fmt.Errorf("transfer lock timeout must be positive")
	}
	if c.Transfer.UnitTimeout < c.Transfer.LockTimeout {
		return fmt.Errorf("transfer unit timeout (%s) must be >= lock timeout (%s)", c.Transfer.UnitTimeout, c.Transfer.LockTimeout)
	}
	if c.Transfer.MaxConcurrent <= 0 {
		return fmt.Errorf("transfer max concurrent must be positive, got %d", c.Transfer.MaxConcurrent)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
