package marketdata

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/Alias1177/marketfeed/internal/synthetic"
	"github.com/Alias1177/marketfeed/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPace is the delay between consecutive timeframe requests.
const DefaultPace = 1200 * time.Millisecond

// OrchestratorOptions tunes a multi-timeframe fetch. Values are used as given:
// a zero Pace disables pacing and zero MaxRetries disables retries.
type OrchestratorOptions struct {
	Pace       time.Duration
	MaxRetries int
}

// Orchestrator fetches every fixed timeframe of a symbol, one request at a time.
type Orchestrator struct {
	fetcher    models.SeriesFetcher
	generator  *synthetic.Generator
	pace       time.Duration
	maxRetries int
	logger     zerolog.Logger
}

// NewOrchestrator creates an orchestrator that substitutes generator output for failed timeframes.
func NewOrchestrator(fetcher models.SeriesFetcher, generator *synthetic.Generator, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		generator:  generator,
		pace:       opts.Pace,
		maxRetries: opts.MaxRetries,
		logger:     log.With().Str("component", "timeframe_orchestrator").Logger(),
	}
}

// FetchAll returns candles for every timeframe in models.Timeframes.
//
// Requests run sequentially with the configured pace between them to stay under the
// provider's per-second limit. A failed timeframe is filled with synthetic candles and
// its reason recorded in Failures. When every timeframe failed, the fully synthetic
// result is returned together with an error matching ErrAllTimeframesFailed.
func (o *Orchestrator) FetchAll(ctx context.Context, symbol string, candleCount int) (*models.MultiTimeframeResult, error) {
	count := models.ClampCount(candleCount)
	base := synthetic.BasePriceFor(symbol)
	result := models.NewMultiTimeframeResult(symbol)
	logger := o.logger.With().Str("symbol", symbol).Int("count", count).Logger()

	for i, tf := range models.Timeframes {
		if i > 0 {
			if err := pause(ctx, o.pace); err != nil {
				return nil, fmt.Errorf("fetching %s timeframes: %w", symbol, err)
			}
		}

		candles, err := o.fetcher.Fetch(ctx, symbol, tf.Interval(), count, o.maxRetries)
		if err == nil && len(candles) == 0 {
			err = fmt.Errorf("no candles returned")
		}
		if err != nil {
			logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("Timeframe failed, using synthetic data")
			result.Failures[tf] = err.Error()
			result.Candles[tf] = o.generator.Generate(count, base)
			continue
		}
		result.Candles[tf] = candles
	}

	if len(result.RealTimeframes()) == 0 {
		logger.Error().Msg("All timeframes failed, result is synthetic")
		return result, &AggregateError{Symbol: symbol, Failures: maps.Clone(result.Failures)}
	}

	logger.Info().Int("failed", len(result.Failures)).Msg("Timeframes fetched")
	return result, nil
}

// pause waits for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
