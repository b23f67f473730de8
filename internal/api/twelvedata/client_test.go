package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	newestFirstResponse = `{
		"meta": {"symbol": "EUR/USD", "interval": "5min"},
		"values": [
			{"datetime": "2024-01-02 10:10:00", "open": "1.0930", "high": "1.0940", "low": "1.0920", "close": "1.0935", "volume": "120"},
			{"datetime": "2024-01-02 10:05:00", "open": "1.0920", "high": "1.0932", "low": "1.0915", "close": "1.0930"},
			{"datetime": "2024-01-02 10:00:00", "open": 1.0910, "high": 1.0925, "low": 1.0905, "close": 1.0920, "volume": 80}
		],
		"status": "ok"
	}`
	priceResponse      = `{"price": "1.0875"}`
	emptyValues        = `{"meta": {}, "values": [], "status": "ok"}`
	badCandleResponse  = `{"values": [{"datetime": "2024-01-02 10:00:00", "open": "n/a", "high": "1", "low": "1", "close": "1"}]}`
	missingDataShape   = `{"meta": {"symbol": "EUR/USD"}, "status": "ok"}`
	invalidJSON        = `{"values": [`
	usageResponse      = `{"timestamp": "2024-01-02 10:00:00", "current_usage": 3, "plan_limit": 8}`
	testKey            = "test-key-0123456789"
	testSymbol         = "EUR/USD"
	testInterval       = "5min"
	testOutputSize     = 3
	constantFillVolume = int64(4242)
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientOptions{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		RequestsPerSec: -1,
		FillerVolume:   func() int64 { return constantFillVolume },
	})
	return c, srv
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestTimeSeriesSendsQuery(t *testing.T) {
	var got url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series", r.URL.Path)
		got = r.URL.Query()
		w.Write([]byte(newestFirstResponse))
	})

	_, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, testOutputSize)
	require.NoError(t, err)

	assert.Equal(t, testSymbol, got.Get("symbol"))
	assert.Equal(t, testInterval, got.Get("interval"))
	assert.Equal(t, "3", got.Get("outputsize"))
	assert.Equal(t, testKey, got.Get("apikey"))
	assert.Equal(t, "JSON", got.Get("format"))
}

func TestTimeSeriesReturnsOldestFirst(t *testing.T) {
	c, _ := newTestClient(t, respond(newestFirstResponse))

	candles, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, testOutputSize)
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, "2024-01-02 10:00:00", candles[0].Datetime)
	assert.Equal(t, "2024-01-02 10:05:00", candles[1].Datetime)
	assert.Equal(t, "2024-01-02 10:10:00", candles[2].Datetime)

	assert.Equal(t, 1.0910, candles[0].Open, "numeric fields accepted")
	assert.Equal(t, int64(80), candles[0].Volume)
	assert.Equal(t, constantFillVolume, candles[1].Volume, "missing volume filled")
	assert.Equal(t, 1.0935, candles[2].Close, "string fields parsed")
	assert.Equal(t, int64(120), candles[2].Volume)
}

func TestTimeSeriesSinglePrice(t *testing.T) {
	c, _ := newTestClient(t, respond(priceResponse))
	fixed := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	candles, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, 1)
	require.NoError(t, err)
	require.Len(t, candles, 1)

	cndl := candles[0]
	assert.Equal(t, "2024-01-02 10:00:00", cndl.Datetime)
	for _, v := range []float64{cndl.Open, cndl.High, cndl.Low, cndl.Close} {
		assert.Equal(t, 1.0875, v)
	}
}

func TestTimeSeriesErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantCode int
	}{
		{name: "bad parameters", body: `{"status":"error","code":400,"message":"symbol not found"}`, wantKind: KindBadRequest, wantCode: 400},
		{name: "bad key", body: `{"status":"error","code":401,"message":"apikey is incorrect"}`, wantKind: KindBadKey, wantCode: 401},
		{name: "rate limit code", body: `{"status":"error","code":429,"message":"slow down"}`, wantKind: KindRateLimit, wantCode: 429},
		{name: "quota message", body: `{"status":"error","code":403,"message":"You have run out of API credits for the current minute."}`, wantKind: KindRateLimit, wantCode: 403},
		{name: "other provider error", body: `{"status":"error","code":500,"message":"internal"}`, wantKind: KindProvider, wantCode: 500},
		{name: "http failure", status: http.StatusServiceUnavailable, body: `oops`, wantKind: KindHTTP, wantCode: 503},
		{name: "http 429", status: http.StatusTooManyRequests, body: ``, wantKind: KindRateLimit, wantCode: 429},
		{name: "malformed json", body: invalidJSON, wantKind: KindMalformed},
		{name: "missing data", body: missingDataShape, wantKind: KindMalformed},
		{name: "empty values", body: emptyValues, wantKind: KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				w.Write([]byte(tt.body))
			})

			_, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, testOutputSize)

			var perr *ProviderError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.wantKind, perr.Kind)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.True(t, IsKind(err, tt.wantKind))
			assert.False(t, errors.Is(err, ErrInvalidCandle))
		})
	}
}

func TestTimeSeriesInvalidCandle(t *testing.T) {
	c, _ := newTestClient(t, respond(badCandleResponse))

	_, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCandle)
	assert.Contains(t, err.Error(), "open")

	var perr *ProviderError
	assert.False(t, errors.As(err, &perr), "integrity failures are not provider errors")
}

func TestTimeSeriesNonFinitePrice(t *testing.T) {
	c, _ := newTestClient(t, respond(`{"values":[{"datetime":"x","open":"NaN","high":"1","low":"1","close":"1"}]}`))

	_, err := c.TimeSeries(context.Background(), testKey, testSymbol, testInterval, 1)
	assert.ErrorIs(t, err, ErrInvalidCandle)
}

func TestProbe(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("outputsize"))
			assert.Equal(t, "1min", r.URL.Query().Get("interval"))
			w.Write([]byte(newestFirstResponse))
		})
		assert.NoError(t, c.Probe(context.Background(), testKey, ProbeSymbol))
	})

	t.Run("valid price", func(t *testing.T) {
		c, _ := newTestClient(t, respond(priceResponse))
		assert.NoError(t, c.Probe(context.Background(), testKey, ProbeSymbol))
	})

	t.Run("error payload", func(t *testing.T) {
		c, _ := newTestClient(t, respond(`{"status":"error","code":401,"message":"bad key"}`))
		assert.True(t, IsKind(c.Probe(context.Background(), testKey, ProbeSymbol), KindBadKey))
	})

	t.Run("no data", func(t *testing.T) {
		c, _ := newTestClient(t, respond(missingDataShape))
		assert.True(t, IsKind(c.Probe(context.Background(), testKey, ProbeSymbol), KindEmpty))
	})
}

func TestUsage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api_usage", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("apikey"))
		w.Write([]byte(usageResponse))
	})

	usage, err := c.Usage(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, float64(3), usage["current_usage"])

	bad, _ := newTestClient(t, respond(`{"status":"error","code":401,"message":"bad key"}`))
	_, err = bad.Usage(context.Background(), testKey)
	assert.True(t, IsKind(err, KindBadKey))
}

func TestProviderSymbol(t *testing.T) {
	tests := map[string]string{
		"EURUSD":   "EUR/USD",
		"eurusd":   "EUR/USD",
		"XAUUSD":   "XAU/USD",
		"EUR/USD":  "EUR/USD",
		"AAPL":     "AAPL",
		"UNMAPPED": "UNMAPPED",
	}
	for in, want := range tests {
		assert.Equal(t, want, ProviderSymbol(in), in)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := classifyPayload(401, "apikey is incorrect")
	assert.Equal(t, "twelvedata bad_key (code 401): apikey is incorrect", err.Error())
}
