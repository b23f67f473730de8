package models

// DatetimeLayout is the timestamp layout used by the provider for candle datetimes.
const DatetimeLayout = "2006-01-02 15:04:05"

// Candle represents a single price candle
type Candle struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

// MultiTimeframeResult holds candles for every fixed timeframe of one symbol.
// Candles are ordered oldest first.
type MultiTimeframeResult struct {
	Symbol   string                 `json:"symbol"`
	Candles  map[Timeframe][]Candle `json:"candles"`
	Failures map[Timeframe]string   `json:"failures,omitempty"` // timeframe -> reason the slot is synthetic
	Demo     bool                   `json:"demo"`
}

// NewMultiTimeframeResult returns an empty result for symbol.
func NewMultiTimeframeResult(symbol string) *MultiTimeframeResult {
	return &MultiTimeframeResult{
		Symbol:   symbol,
		Candles:  make(map[Timeframe][]Candle, len(Timeframes)),
		Failures: make(map[Timeframe]string),
	}
}

// Synthetic reports whether the timeframe slot was filled with generated data.
func (r *MultiTimeframeResult) Synthetic(tf Timeframe) bool {
	if r.Demo {
		return true
	}
	_, failed := r.Failures[tf]
	return failed
}

// RealTimeframes returns the timeframes, in fixed order, that carry provider data.
func (r *MultiTimeframeResult) RealTimeframes() []Timeframe {
	var tfs []Timeframe
	for _, tf := range Timeframes {
		if len(r.Candles[tf]) > 0 && !r.Synthetic(tf) {
			tfs = append(tfs, tf)
		}
	}
	return tfs
}

// KeyState is the health classification of a single credential.
type KeyState string

const (
	KeyActive  KeyState = "active"
	KeyError   KeyState = "error"
	KeyUnknown KeyState = "unknown"
)

// KeyStatus is a per-credential health record safe for display.
type KeyStatus struct {
	Key    string         `json:"key"` // masked
	Status KeyState       `json:"status"`
	Usage  map[string]any `json:"usage,omitempty"`
	Error  string         `json:"error,omitempty"`
}
