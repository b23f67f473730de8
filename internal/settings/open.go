package settings

import (
	"context"
	"fmt"

	"github.com/Alias1177/marketfeed/internal/config"
	"github.com/rs/zerolog/log"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.SettingsConfig) (Store, error) {
	logger := log.With().Str("component", "settings").Str("backend", cfg.Backend).Logger()

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "", "memory":
		store = NewMemoryStore()
	case "postgres":
		dsn := cfg.DatabaseURL
		if dsn == "" && cfg.DBHost != "" {
			dsn = ConnectionParams{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				User:     cfg.DBUser,
				Password: cfg.DBPassword,
				DBName:   cfg.DBName,
				SSLMode:  cfg.DBSSLMode,
			}.DSN()
		}
		store, err = NewPostgresStore(ctx, dsn)
	case "sqlite":
		store, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case "mongo":
		store, err = NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "redis":
		store, err = DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s settings store: %w", cfg.Backend, err)
	}

	logger.Info().Msg("Settings store ready")
	return store, nil
}
