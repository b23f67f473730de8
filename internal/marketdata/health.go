package marketdata

import (
	"context"
	"errors"

	"github.com/Alias1177/marketfeed/internal/api/twelvedata"
	"github.com/Alias1177/marketfeed/internal/keypool"
	"github.com/Alias1177/marketfeed/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HealthChecker probes keys without touching the pool's rotation cursor.
type HealthChecker struct {
	pool        KeyPool
	provider    Provider
	probeSymbol string
	logger      zerolog.Logger
}

// NewHealthChecker creates a checker probing twelvedata.ProbeSymbol.
func NewHealthChecker(pool KeyPool, provider Provider) *HealthChecker {
	return &HealthChecker{
		pool:        pool,
		provider:    provider,
		probeSymbol: twelvedata.ProbeSymbol,
		logger:      log.With().Str("component", "health_checker").Logger(),
	}
}

// TestConnection reports whether any key in the pool can reach the provider.
// Keys are tried in rotation order starting at the current one; the first
// valid answer wins.
func (h *HealthChecker) TestConnection(ctx context.Context) bool {
	h.pool.EnsureLoaded(ctx)
	keys, cursor := h.pool.Snapshot()
	if len(keys) == 0 {
		h.logger.Warn().Msg("Connection test skipped, key pool is empty")
		return false
	}

	for i := range keys {
		key := keys[(cursor+i)%len(keys)]
		err := h.provider.Probe(ctx, key, h.probeSymbol)
		if err == nil {
			h.logger.Info().Str("key_id", keypool.Fingerprint(key)).Msg("Connection test succeeded")
			return true
		}
		h.logger.Warn().Err(err).Str("key_id", keypool.Fingerprint(key)).Msg("Connection test failed for key")
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// KeyStatuses probes every key independently and returns masked health records in pool order.
func (h *HealthChecker) KeyStatuses(ctx context.Context) []models.KeyStatus {
	h.pool.EnsureLoaded(ctx)
	keys, _ := h.pool.Snapshot()

	statuses := make([]models.KeyStatus, 0, len(keys))
	for _, key := range keys {
		status := models.KeyStatus{Key: keypool.Mask(key)}

		err := h.provider.Probe(ctx, key, h.probeSymbol)
		status.Status = probeState(err)
		if err != nil {
			status.Error = err.Error()
		}

		if usage, err := h.provider.Usage(ctx, key); err == nil {
			status.Usage = usage
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// probeState maps a probe outcome to a key state. Answers from the provider
// (error payloads, HTTP status codes) mark the key as failing; transport problems
// and unexpected shapes say nothing about the key itself.
func probeState(err error) models.KeyState {
	if err == nil {
		return models.KeyActive
	}
	var perr *twelvedata.ProviderError
	if !errors.As(err, &perr) {
		return models.KeyUnknown
	}
	switch perr.Kind {
	case twelvedata.KindBadKey, twelvedata.KindBadRequest, twelvedata.KindRateLimit, twelvedata.KindProvider:
		return models.KeyError
	case twelvedata.KindHTTP:
		if perr.Code != 0 {
			return models.KeyError
		}
	}
	return models.KeyUnknown
}
