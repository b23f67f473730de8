// Package marketdata acquires candle series from the provider through a rotating key pool,
// falls back to synthetic data per timeframe, and reports key health.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/marketfeed/internal/api/twelvedata"
	"github.com/Alias1177/marketfeed/internal/keypool"
	"github.com/Alias1177/marketfeed/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxRetries is the retry budget of a single series fetch.
const DefaultMaxRetries = 3

// KeyPool is the subset of the key pool the fetcher and health checker use.
type KeyPool interface {
	EnsureLoaded(ctx context.Context)
	Rotate() string
	Len() int
	Snapshot() ([]string, int)
}

// Provider issues requests against the market-data API with an explicit key.
type Provider interface {
	TimeSeries(ctx context.Context, apiKey, symbol, interval string, outputSize int) ([]models.Candle, error)
	Probe(ctx context.Context, apiKey, symbol string) error
	Usage(ctx context.Context, apiKey string) (map[string]any, error)
}

// Fetcher retrieves one candle series, rotating keys before every attempt.
type Fetcher struct {
	pool     KeyPool
	provider Provider
	logger   zerolog.Logger
}

var _ models.SeriesFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher over pool and provider.
func NewFetcher(pool KeyPool, provider Provider) *Fetcher {
	return &Fetcher{
		pool:     pool,
		provider: provider,
		logger:   log.With().Str("component", "series_fetcher").Logger(),
	}
}

// Fetch returns up to count candles of symbol at interval, oldest first.
//
// Each attempt uses the next key in rotation. Transient provider failures are retried
// up to maxRetries times while the pool holds more than one key. Configuration and
// data-integrity failures are returned at once.
func (f *Fetcher) Fetch(ctx context.Context, symbol, interval string, count, maxRetries int) ([]models.Candle, error) {
	f.pool.EnsureLoaded(ctx)

	if f.pool.Len() == 0 {
		return nil, fmt.Errorf("%w: no API keys configured", ErrConfiguration)
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is blank", ErrConfiguration)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	providerSymbol := twelvedata.ProviderSymbol(symbol)
	logger := f.logger.With().Str("symbol", providerSymbol).Str("interval", interval).Logger()

	var (
		candles []models.Candle
		attempt int
	)
	operation := func() error {
		attempt++
		key := f.pool.Rotate()

		result, err := f.provider.TimeSeries(ctx, key, providerSymbol, interval, count)
		if err == nil {
			candles = result
			return nil
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("key_id", keypool.Fingerprint(key)).
			Msg("Series fetch attempt failed")

		switch {
		case errors.Is(err, twelvedata.ErrInvalidCandle):
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrDataIntegrity, err))
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case f.pool.Len() <= 1:
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(maxRetries)), ctx)
	notify := func(err error, _ time.Duration) {
		logger.Debug().Int("attempt", attempt).Msg("Retrying with next API key")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("fetching %s %s after %d attempt(s): %w", providerSymbol, interval, attempt, err)
	}

	logger.Debug().Int("count", len(candles)).Int("attempts", attempt).Msg("Series fetched")
	return candles, nil
}
