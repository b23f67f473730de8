package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpClient "github.com/Alias1177/marketfeed/internal/platform/http"
	"github.com/Alias1177/marketfeed/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Twelve Data REST endpoint.
const DefaultBaseURL = "https://api.twelvedata.com"

const (
	timeSeriesPath = "/time_series"
	apiUsagePath   = "/api_usage"
)

// Client is the TwelveData API client. The API key is supplied per call so a
// key pool can rotate credentials between requests.
type Client struct {
	baseURL      string
	httpClient   *httpClient.Client
	fillerVolume func() int64
	now          func() time.Time
	logger       zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec int // negative disables client-side limiting
	// FillerVolume supplies a volume for candles the provider sent without one.
	FillerVolume func() int64
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:        options.RequestTimeout,
		RequestsPerSec: options.RequestsPerSec,
	}

	// Apply defaults if not set
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.FillerVolume == nil {
		options.FillerVolume = func() int64 { return 0 }
	}

	return &Client{
		baseURL:      strings.TrimRight(options.BaseURL, "/"),
		httpClient:   httpClient.NewClient(httpOpts),
		fillerVolume: options.FillerVolume,
		now:          time.Now,
		logger:       log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// timeSeriesResponse covers the three shapes time_series can answer with:
// a values array, a single price quote, or an error payload.
type timeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Meta    struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []map[string]any `json:"values"`
	Price  any              `json:"price"`
}

// TimeSeries fetches up to outputSize candles for symbol in the provider's notation.
// The result is ordered oldest first.
func (c *Client) TimeSeries(ctx context.Context, apiKey, symbol, interval string, outputSize int) ([]models.Candle, error) {
	c.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("outputsize", outputSize).
		Msg("Fetching candles")

	data, err := c.timeSeries(ctx, apiKey, symbol, interval, outputSize)
	if err != nil {
		return nil, err
	}

	if data.Values == nil {
		if data.Price != nil {
			return c.quoteCandle(data.Price)
		}
		return nil, &ProviderError{Kind: KindMalformed, Message: "response has neither values nor price"}
	}
	if len(data.Values) == 0 {
		return nil, &ProviderError{Kind: KindEmpty, Message: "empty data returned"}
	}

	// Provider returns newest first; walk backwards for oldest first.
	candles := make([]models.Candle, 0, len(data.Values))
	for i := len(data.Values) - 1; i >= 0; i-- {
		candle, err := c.parseCandle(data.Values[i])
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		candles = append(candles, candle)
	}

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// Probe issues the smallest possible time_series request and reports whether
// the key produced a structurally valid answer.
func (c *Client) Probe(ctx context.Context, apiKey, symbol string) error {
	data, err := c.timeSeries(ctx, apiKey, symbol, "1min", 1)
	if err != nil {
		return err
	}
	if len(data.Values) == 0 && data.Price == nil {
		return &ProviderError{Kind: KindEmpty, Message: "probe returned no data"}
	}
	return nil
}

// Usage returns the provider's usage report for apiKey as an opaque document.
func (c *Client) Usage(ctx context.Context, apiKey string) (map[string]any, error) {
	body, err := c.get(ctx, apiUsagePath, url.Values{"apikey": {apiKey}})
	if err != nil {
		return nil, err
	}

	var usage map[string]any
	if err := json.Unmarshal(body, &usage); err != nil {
		return nil, &ProviderError{Kind: KindMalformed, Message: "parsing usage JSON", Err: err}
	}
	if perr := payloadError(usage["status"], usage["code"], usage["message"]); perr != nil {
		return nil, perr
	}
	return usage, nil
}

func (c *Client) timeSeries(ctx context.Context, apiKey, symbol, interval string, outputSize int) (*timeSeriesResponse, error) {
	params := url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {strconv.Itoa(outputSize)},
		"apikey":     {apiKey},
		"format":     {"JSON"},
	}
	body, err := c.get(ctx, timeSeriesPath, params)
	if err != nil {
		return nil, err
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", truncate(body)).Msg("Error parsing JSON")
		return nil, &ProviderError{Kind: KindMalformed, Message: "parsing JSON", Err: err}
	}

	if data.Status == "error" || data.Code >= 400 {
		c.logger.Warn().Int("code", data.Code).Str("message", data.Message).Msg("Twelve Data API error")
		return nil, classifyPayload(data.Code, data.Message)
	}
	return &data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, err := c.httpClient.Get(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		perr := &ProviderError{Kind: KindHTTP, Err: err}
		var statusErr *httpClient.HTTPStatusError
		if errors.As(err, &statusErr) {
			perr.Code = statusErr.StatusCode
			if statusErr.StatusCode == 429 {
				perr.Kind = KindRateLimit
			}
		}
		return nil, perr
	}
	return body, nil
}

func (c *Client) quoteCandle(raw any) ([]models.Candle, error) {
	price, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("price %v: %w", raw, ErrInvalidCandle)
	}
	return []models.Candle{{
		Datetime: c.now().UTC().Format(models.DatetimeLayout),
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		Volume:   c.fillerVolume(),
	}}, nil
}

func (c *Client) parseCandle(v map[string]any) (models.Candle, error) {
	candle := models.Candle{}
	candle.Datetime, _ = v["datetime"].(string)

	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &candle.Open},
		{"high", &candle.High},
		{"low", &candle.Low},
		{"close", &candle.Close},
	}
	for _, f := range fields {
		price, ok := toFloat(v[f.name])
		if !ok {
			return models.Candle{}, fmt.Errorf("%s %s=%v: %w", candle.Datetime, f.name, v[f.name], ErrInvalidCandle)
		}
		*f.dst = price
	}

	if volume, ok := toFloat(v["volume"]); ok && volume >= 0 {
		candle.Volume = int64(volume)
	} else {
		candle.Volume = c.fillerVolume()
	}
	return candle, nil
}

// toFloat accepts JSON numbers and numeric strings; the result is always finite.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// payloadError detects an error payload in a loosely typed response.
func payloadError(status, code, message any) *ProviderError {
	s, _ := status.(string)
	c, _ := code.(float64)
	if s != "error" && c < 400 {
		return nil
	}
	m, _ := message.(string)
	return classifyPayload(int(c), m)
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
