package synthetic

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/marketfeed/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimals(v float64, places int) bool {
	scaled := v * math.Pow10(places)
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func TestGenerateBracketsOpenAndClose(t *testing.T) {
	g := NewWithSeed(42)
	candles := g.Generate(50, 2000)

	require.Len(t, candles, 50)
	for i, c := range candles {
		assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close), "candle %d low", i)
		assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close), "candle %d high", i)
		assert.GreaterOrEqual(t, c.Volume, int64(1000))
		assert.Less(t, c.Volume, int64(11000))
		if i > 0 {
			assert.Equal(t, candles[i-1].Close, c.Open, "candle %d opens at previous close", i)
		}
	}
}

func TestGeneratePrecision(t *testing.T) {
	tests := []struct {
		name   string
		base   float64
		places int
	}{
		{name: "forex uses 4 places", base: 1.08, places: 4},
		{name: "boundary uses 4 places", base: 100, places: 4},
		{name: "indexed uses 2 places", base: 2000, places: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, c := range NewWithSeed(7).Generate(30, tt.base) {
				for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
					assert.True(t, decimals(v, tt.places), "%v has more than %d decimals", v, tt.places)
				}
			}
		})
	}
}

func TestGenerateTimestampsOldestFirst(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 7, 30, 0, time.UTC)
	g := NewWithSeed(1).WithClock(func() time.Time { return now })

	candles := g.Generate(3, 1.1)

	require.Len(t, candles, 3)
	assert.Equal(t, "2024-03-01 11:55:00", candles[0].Datetime)
	assert.Equal(t, "2024-03-01 12:00:00", candles[1].Datetime)
	assert.Equal(t, "2024-03-01 12:05:00", candles[2].Datetime)
}

func TestGenerateEdgeCases(t *testing.T) {
	g := NewWithSeed(3)
	assert.Empty(t, g.Generate(0, 100))
	assert.Empty(t, g.Generate(-5, 100))

	candles := g.Generate(5, -1)
	require.Len(t, candles, 5)
	assert.InDelta(t, DefaultBasePrice, candles[0].Open, 0.0001)
}

func TestBasePriceFor(t *testing.T) {
	tests := []struct {
		symbol string
		want   float64
	}{
		{"XAUUSD", 2000},
		{"XAU/USD", 2000},
		{"EURUSD", 1.08},
		{"EURJPY", 150},
		{"btcusd", 60000},
		{"UNKNOWN", DefaultBasePrice},
		{"", DefaultBasePrice},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, BasePriceFor(tt.symbol))
		})
	}
}

func TestDemoPopulatesEveryTimeframe(t *testing.T) {
	result := NewWithSeed(9).Demo("XAUUSD", 80)

	assert.True(t, result.Demo)
	assert.Equal(t, "XAUUSD", result.Symbol)
	for _, tf := range models.Timeframes {
		assert.Len(t, result.Candles[tf], models.MaxCandlesPerTimeframe, "timeframe %s", tf)
		assert.True(t, result.Synthetic(tf))
	}
	assert.Empty(t, result.RealTimeframes())
}

func TestFillerVolumeRange(t *testing.T) {
	g := NewWithSeed(11)
	for i := 0; i < 100; i++ {
		v := g.FillerVolume()
		assert.GreaterOrEqual(t, v, int64(1000))
		assert.Less(t, v, int64(11000))
	}
}
