package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Alias1177/marketfeed/models"
)

var (
	// ErrConfiguration reports unusable inputs: an empty key pool or a blank symbol. Never retried.
	ErrConfiguration = errors.New("market data configuration error")
	// ErrDataIntegrity reports a provider response that broke the candle contract. Never retried.
	ErrDataIntegrity = errors.New("market data integrity error")
	// ErrAllTimeframesFailed reports that every timeframe of a multi-timeframe fetch is synthetic.
	ErrAllTimeframesFailed = errors.New("all timeframes failed")
)

// AggregateError carries the per-timeframe failure reasons behind ErrAllTimeframesFailed.
type AggregateError struct {
	Symbol   string
	Failures map[models.Timeframe]string
}

// Error implements the error interface
func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for tf, reason := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", tf, reason))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s for %s (%s)", ErrAllTimeframesFailed, e.Symbol, strings.Join(parts, "; "))
}

// Is matches ErrAllTimeframesFailed.
func (e *AggregateError) Is(target error) bool {
	return target == ErrAllTimeframesFailed
}
