package twelvedata

import "strings"

// symbolTable maps internal symbols to Twelve Data notation.
var symbolTable = map[string]string{
	"EURUSD": "EUR/USD",
	"GBPUSD": "GBP/USD",
	"USDJPY": "USD/JPY",
	"AUDUSD": "AUD/USD",
	"USDCAD": "USD/CAD",
	"USDCHF": "USD/CHF",
	"NZDUSD": "NZD/USD",
	"EURGBP": "EUR/GBP",
	"EURJPY": "EUR/JPY",
	"GBPJPY": "GBP/JPY",
	"AUDCAD": "AUD/CAD",
	"EURCAD": "EUR/CAD",
	"XAUUSD": "XAU/USD",
	"XAGUSD": "XAG/USD",
	"BTCUSD": "BTC/USD",
	"ETHUSD": "ETH/USD",
	"US30":   "DJI",
	"NAS100": "NDX",
	"SPX500": "SPX",
}

// ProbeSymbol is an always-liquid symbol used for connection checks.
const ProbeSymbol = "EUR/USD"

// ProviderSymbol translates an internal symbol to provider notation.
// Unknown symbols pass through unchanged.
func ProviderSymbol(symbol string) string {
	if mapped, ok := symbolTable[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return mapped
	}
	return symbol
}
