package models

// Timeframe identifies one of the fixed sampling intervals fetched for a symbol.
type Timeframe string

const (
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe1H    Timeframe = "1h"
	Timeframe4H    Timeframe = "4h"
)

// Timeframes lists every timeframe in fetch order.
var Timeframes = []Timeframe{Timeframe5Min, Timeframe15Min, Timeframe1H, Timeframe4H}

// MaxCandlesPerTimeframe caps the outputsize requested per timeframe to respect provider quota.
const MaxCandlesPerTimeframe = 50

// Interval returns the provider interval token for the timeframe.
func (tf Timeframe) Interval() string {
	switch tf {
	case Timeframe5Min:
		return "5min"
	case Timeframe15Min:
		return "15min"
	case Timeframe1H:
		return "1h"
	case Timeframe4H:
		return "4h"
	}
	return string(tf)
}

// ParseTimeframe resolves a timeframe from its name.
func ParseTimeframe(s string) (Timeframe, bool) {
	for _, tf := range Timeframes {
		if string(tf) == s {
			return tf, true
		}
	}
	return "", false
}

// ClampCount bounds a requested candle count to (0, MaxCandlesPerTimeframe].
func ClampCount(count int) int {
	if count <= 0 || count > MaxCandlesPerTimeframe {
		return MaxCandlesPerTimeframe
	}
	return count
}
