package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Redis      RedisConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RateLimitRPS bounds requests per second per client IP
	RateLimitRPS   int
	RateLimitBurst int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for the lifecycle event stream
// (EventStoreDB/KurrentDB).
type EventStoreConfig struct {
	Host     string
	Port     int
	Insecure bool
	Enabled  bool
}

func (e EventStoreConfig) ConnectionString() string {
	scheme := "esdb"
	tls := "true"
	if e.Insecure {
		tls = "false"
	}
	return fmt.Sprintf("%s://%s:%d?tls=%s", scheme, e.Host, e.Port, tls)
}

// RedisConfig holds configuration for the report cache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Enabled    bool
	TTLSeconds int
}

type AuthConfig struct {
	// JWTSecret verifies tokens minted by the external session provider
	JWTSecret string
	Issuer    string
}

func Load() (*Config, error) {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "cas"),
			Password: getEnv("DB_PASSWORD", "cas"),
			Database: getEnv("DB_NAME", "cas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Enabled:  getEnvBool("EVENTSTORE_ENABLED", true),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			Enabled:    getEnvBool("REDIS_ENABLED", false),
			TTLSeconds: getEnvInt("REDIS_REPORT_TTL_SECONDS", 60),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", "cas-auth"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
