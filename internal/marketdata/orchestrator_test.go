package marketdata

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/marketfeed/internal/synthetic"
	"github.com/Alias1177/marketfeed/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	symbol     string
	interval   string
	count      int
	maxRetries int
	at         time.Time
}

// stubFetcher answers per interval and records every call.
type stubFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	answers map[string]func(count int) ([]models.Candle, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, symbol, interval string, count, maxRetries int) ([]models.Candle, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{symbol, interval, count, maxRetries, time.Now()})
	answer := s.answers[interval]
	s.mu.Unlock()

	if answer == nil {
		return nil, errors.New("rate limited")
	}
	return answer(count)
}

func realCandles(count int) ([]models.Candle, error) {
	out := make([]models.Candle, count)
	for i := range out {
		out[i] = models.Candle{Datetime: "2024-01-02 10:00:00", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7}
	}
	return out, nil
}

func newTestOrchestrator(f models.SeriesFetcher, pace time.Duration) *Orchestrator {
	return NewOrchestrator(f, synthetic.NewWithSeed(1), OrchestratorOptions{Pace: pace, MaxRetries: 3})
}

func TestFetchAllEveryTimeframeFails(t *testing.T) {
	f := &stubFetcher{}
	o := newTestOrchestrator(f, 0)

	result, err := o.FetchAll(context.Background(), "EURUSD", 50)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllTimeframesFailed)
	var agg *AggregateError
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Failures, 4)

	require.NotNil(t, result)
	assert.Empty(t, result.RealTimeframes())
	for _, tf := range models.Timeframes {
		assert.Len(t, result.Candles[tf], 50, tf)
		assert.True(t, result.Synthetic(tf), tf)
		assert.Equal(t, "rate limited", result.Failures[tf])
		assertRandomWalk(t, result.Candles[tf], synthetic.BasePriceFor("EURUSD"))
	}
}

// assertRandomWalk checks the shape of generated candles: the walk starts at base,
// each candle opens at the previous close, prices carry 4 decimals and high/low bracket the body.
func assertRandomWalk(t *testing.T, candles []models.Candle, base float64) {
	t.Helper()
	require.NotEmpty(t, candles)
	assert.Equal(t, base, candles[0].Open, "walk starts at the base price")

	for i, c := range candles {
		if i > 0 {
			assert.Equal(t, candles[i-1].Close, c.Open, "candle %d opens at previous close", i)
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			scaled := v * 1e4
			assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "candle %d price %v has more than 4 decimals", i, v)
		}
		assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close), "candle %d low", i)
		assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close), "candle %d high", i)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	f := &stubFetcher{answers: map[string]func(int) ([]models.Candle, error){
		"5min":  realCandles,
		"15min": realCandles,
		"1h":    realCandles,
	}}
	o := newTestOrchestrator(f, 0)

	result, err := o.FetchAll(context.Background(), "EURUSD", 20)
	require.NoError(t, err)

	assert.Equal(t, []models.Timeframe{models.Timeframe5Min, models.Timeframe15Min, models.Timeframe1H}, result.RealTimeframes())
	assert.True(t, result.Synthetic(models.Timeframe4H))
	assert.Len(t, result.Candles[models.Timeframe4H], 20)
	assert.Len(t, result.Failures, 1)
	assert.False(t, result.Demo)
	for _, tf := range result.RealTimeframes() {
		assert.Equal(t, int64(7), result.Candles[tf][0].Volume, "real data passed through")
	}
}

func TestFetchAllRequestsEveryTimeframeInOrder(t *testing.T) {
	f := &stubFetcher{answers: map[string]func(int) ([]models.Candle, error){
		"5min": realCandles, "15min": realCandles, "1h": realCandles, "4h": realCandles,
	}}
	o := newTestOrchestrator(f, 0)

	_, err := o.FetchAll(context.Background(), "XAUUSD", 10)
	require.NoError(t, err)

	require.Len(t, f.calls, 4)
	var intervals []string
	for _, c := range f.calls {
		intervals = append(intervals, c.interval)
		assert.Equal(t, "XAUUSD", c.symbol)
		assert.Equal(t, 10, c.count)
		assert.Equal(t, 3, c.maxRetries)
	}
	assert.Equal(t, []string{"5min", "15min", "1h", "4h"}, intervals)
}

func TestFetchAllClampsCount(t *testing.T) {
	for _, requested := range []int{0, -5, 51, 500} {
		f := &stubFetcher{}
		o := newTestOrchestrator(f, 0)

		result, _ := o.FetchAll(context.Background(), "EURUSD", requested)

		for _, c := range f.calls {
			assert.Equal(t, models.MaxCandlesPerTimeframe, c.count, "requested %d", requested)
		}
		assert.Len(t, result.Candles[models.Timeframe5Min], models.MaxCandlesPerTimeframe)
	}
}

func TestFetchAllEmptySeriesIsAFailure(t *testing.T) {
	empty := func(int) ([]models.Candle, error) { return nil, nil }
	f := &stubFetcher{answers: map[string]func(int) ([]models.Candle, error){
		"5min": empty, "15min": realCandles, "1h": realCandles, "4h": realCandles,
	}}
	o := newTestOrchestrator(f, 0)

	result, err := o.FetchAll(context.Background(), "EURUSD", 5)
	require.NoError(t, err)
	assert.True(t, result.Synthetic(models.Timeframe5Min))
	assert.Len(t, result.Candles[models.Timeframe5Min], 5)
}

func TestFetchAllPacesRequests(t *testing.T) {
	const pace = 30 * time.Millisecond
	f := &stubFetcher{answers: map[string]func(int) ([]models.Candle, error){
		"5min": realCandles, "15min": realCandles, "1h": realCandles, "4h": realCandles,
	}}
	o := newTestOrchestrator(f, pace)

	_, err := o.FetchAll(context.Background(), "EURUSD", 5)
	require.NoError(t, err)

	require.Len(t, f.calls, 4)
	for i := 1; i < len(f.calls); i++ {
		gap := f.calls[i].at.Sub(f.calls[i-1].at)
		assert.GreaterOrEqual(t, gap, pace, "gap before call %d", i)
	}
}

func TestFetchAllStopsWhenContextEnds(t *testing.T) {
	f := &stubFetcher{}
	o := newTestOrchestrator(f, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := o.FetchAll(ctx, "EURUSD", 5)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.calls, 1, "no request after the context ended")
}

func TestAggregateErrorMessage(t *testing.T) {
	err := &AggregateError{Symbol: "EURUSD", Failures: map[models.Timeframe]string{
		models.Timeframe4H:    "b",
		models.Timeframe15Min: "a",
	}}
	assert.Equal(t, "all timeframes failed for EURUSD (15min: a; 4h: b)", err.Error())
	assert.True(t, errors.Is(err, ErrAllTimeframesFailed))
	assert.False(t, errors.Is(err, ErrConfiguration))
}
