package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	TwelveAPIKey        string        `env:"TWELVE_API_KEY"` // built-in default credential
	TwelveBaseURL       string        `env:"TWELVE_BASE_URL" envDefault:"https://api.twelvedata.com"`
	Symbol              string        `env:"SYMBOL" envDefault:"EURUSD"`
	CandleCount         int           `env:"CANDLE_COUNT" envDefault:"50"`
	MaxRetries          int           `env:"MAX_RETRIES" envDefault:"3"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10"` // seconds
	RequestsPerSec      int           `env:"REQUESTS_PER_SEC" envDefault:"5"`
	TimeframePace       time.Duration `env:"TIMEFRAME_PACE_MS" envDefault:"1200"`
	Settings            SettingsConfig
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"console"`
	LogFile             string        `env:"LOG_FILE"`
	HTTPAddr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"300"` // seconds
}

// SettingsConfig selects and configures the settings store holding the key pool.
type SettingsConfig struct {
	Backend       string `env:"SETTINGS_BACKEND" envDefault:"memory"` // memory, postgres, sqlite, mongo, redis
	Name          string `env:"SETTINGS_NAME" envDefault:"marketData"`
	DatabaseURL   string `env:"DATABASE_URL"` // takes precedence over the DB_* parts
	DBHost        string `env:"DB_HOST"`
	DBPort        string `env:"DB_PORT" envDefault:"5432"`
	DBUser        string `env:"DB_USER"`
	DBPassword    string `env:"DB_PASSWORD"`
	DBName        string `env:"DB_NAME"`
	DBSSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"marketfeed.db"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"marketfeed"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.TwelveAPIKey = strings.TrimSpace(os.Getenv("TWELVE_API_KEY"))
	cfg.TwelveBaseURL = getEnvWithDefault("TWELVE_BASE_URL", "https://api.twelvedata.com")
	cfg.Symbol = getEnvWithDefault("SYMBOL", "EURUSD")
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 50)
	cfg.MaxRetries = getEnvIntWithDefault("MAX_RETRIES", 3)
	cfg.RequestTimeout = time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 10)) * time.Second
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)
	cfg.TimeframePace = time.Duration(getEnvIntWithDefault("TIMEFRAME_PACE_MS", 1200)) * time.Millisecond

	cfg.Settings.Backend = strings.ToLower(getEnvWithDefault("SETTINGS_BACKEND", "memory"))
	cfg.Settings.Name = getEnvWithDefault("SETTINGS_NAME", "marketData")
	cfg.Settings.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Settings.DBHost = os.Getenv("DB_HOST")
	cfg.Settings.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.Settings.DBUser = os.Getenv("DB_USER")
	cfg.Settings.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.Settings.DBName = os.Getenv("DB_NAME")
	cfg.Settings.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.Settings.SQLitePath = getEnvWithDefault("SQLITE_PATH", "marketfeed.db")
	cfg.Settings.MongoURI = os.Getenv("MONGODB_URI")
	cfg.Settings.MongoDatabase = getEnvWithDefault("MONGODB_DATABASE", "marketfeed")
	cfg.Settings.RedisAddr = getEnvWithDefault("REDIS_ADDR", "localhost:6379")
	cfg.Settings.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Settings.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvWithDefault("LOG_FORMAT", "console")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.HealthCheckInterval = time.Duration(getEnvIntWithDefault("HEALTH_CHECK_INTERVAL", 300)) * time.Second

	if cfg.TwelveAPIKey == "" {
		log.Warn().Msg("TWELVE_API_KEY not set, key pool relies on persisted credentials only")
	}

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using default")
	}
	return defaultValue
}
