// Package app wires configuration into the market-data components.
package app

import (
	"context"
	"fmt"

	"github.com/Alias1177/marketfeed/internal/api/twelvedata"
	"github.com/Alias1177/marketfeed/internal/config"
	"github.com/Alias1177/marketfeed/internal/keypool"
	"github.com/Alias1177/marketfeed/internal/marketdata"
	"github.com/Alias1177/marketfeed/internal/settings"
	"github.com/Alias1177/marketfeed/internal/synthetic"
)

// App holds the assembled components of one process.
type App struct {
	Config       *config.Config
	Store        settings.Store
	Pool         *keypool.Pool
	Provider     *twelvedata.Client
	Generator    *synthetic.Generator
	Fetcher      *marketdata.Fetcher
	Orchestrator *marketdata.Orchestrator
	Health       *marketdata.HealthChecker
}

// New opens the settings store, loads the key pool and builds the fetch pipeline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}

	pool := keypool.New(store, cfg.TwelveAPIKey, keypool.WithSettingsName(cfg.Settings.Name))
	pool.Load(ctx)

	generator := synthetic.New()
	provider := twelvedata.NewClient(twelvedata.ClientOptions{
		BaseURL:        cfg.TwelveBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		FillerVolume:   generator.FillerVolume,
	})
	fetcher := marketdata.NewFetcher(pool, provider)

	return &App{
		Config:    cfg,
		Store:     store,
		Pool:      pool,
		Provider:  provider,
		Generator: generator,
		Fetcher:   fetcher,
		Orchestrator: marketdata.NewOrchestrator(fetcher, generator, marketdata.OrchestratorOptions{
			Pace:       cfg.TimeframePace,
			MaxRetries: cfg.MaxRetries,
		}),
		Health: marketdata.NewHealthChecker(pool, provider),
	}, nil
}

// Close releases the settings store.
func (a *App) Close() error {
	return a.Store.Close()
}
