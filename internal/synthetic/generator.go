// Package synthetic produces plausible OHLCV data used when no provider data is available.
package synthetic

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Alias1177/marketfeed/models"
	"github.com/shopspring/decimal"
)

// Step is the spacing between generated candles.
const Step = 5 * time.Minute

// DefaultBasePrice anchors symbols missing from the lookup table.
const DefaultBasePrice = 100.0

// basePrices maps symbol substrings to realistic anchor prices. Order matters:
// the first matching substring wins, so metals and crypto come before currency legs.
var basePrices = []struct {
	match string
	price float64
}{
	{"XAU", 2000},
	{"XAG", 25},
	{"BTC", 60000},
	{"ETH", 3000},
	{"US30", 38000},
	{"NAS100", 17500},
	{"SPX", 5000},
	{"JPY", 150},
	{"EUR", 1.08},
	{"GBP", 1.27},
	{"AUD", 0.66},
	{"NZD", 0.61},
	{"CAD", 1.36},
	{"CHF", 0.88},
}

// BasePriceFor returns the anchor price for symbol.
func BasePriceFor(symbol string) float64 {
	s := strings.ToUpper(symbol)
	for _, bp := range basePrices {
		if strings.Contains(s, bp.match) {
			return bp.price
		}
	}
	return DefaultBasePrice
}

// Generator builds random-walk candle series. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// New returns a generator seeded from the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// WithClock replaces the time source used for candle timestamps.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces count candles anchored at basePrice, oldest first.
// Each open equals the previous close; high and low always bracket open and close.
func (g *Generator) Generate(count int, basePrice float64) []models.Candle {
	if count <= 0 {
		return nil
	}
	if basePrice <= 0 || math.IsNaN(basePrice) || math.IsInf(basePrice, 0) {
		basePrice = DefaultBasePrice
	}

	places := int32(2)
	if basePrice <= 100 {
		places = 4
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	end := g.now().UTC().Truncate(Step)
	candles := make([]models.Candle, 0, count)
	prevClose := round(basePrice, places)

	for i := 0; i < count; i++ {
		open := prevClose
		cls := round(open+(g.rnd.Float64()*2-1)*0.02*basePrice, places)
		high := round(math.Max(open, cls)+g.rnd.Float64()*0.01*basePrice, places)
		low := round(math.Min(open, cls)-g.rnd.Float64()*0.01*basePrice, places)

		ts := end.Add(-time.Duration(count-1-i) * Step)
		candles = append(candles, models.Candle{
			Datetime: ts.Format(models.DatetimeLayout),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   int64(1000 + g.rnd.Intn(10000)),
		})
		prevClose = cls
	}
	return candles
}

// FillerVolume returns a random volume in [1000, 11000) for candles the provider sent without one.
func (g *Generator) FillerVolume() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(1000 + g.rnd.Intn(10000))
}

// Demo returns a fully synthetic result with every timeframe populated.
func (g *Generator) Demo(symbol string, count int) *models.MultiTimeframeResult {
	count = models.ClampCount(count)
	base := BasePriceFor(symbol)

	result := models.NewMultiTimeframeResult(symbol)
	result.Demo = true
	for _, tf := range models.Timeframes {
		result.Candles[tf] = g.Generate(count, base)
	}
	return result
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
