package models

import "context"

// SeriesFetcher fetches a single candle series for one interval.
type SeriesFetcher interface {
	Fetch(ctx context.Context, symbol, interval string, count, maxRetries int) ([]Candle, error)
}
