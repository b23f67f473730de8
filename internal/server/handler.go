// Package server exposes market data and key administration over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/marketfeed/internal/keypool"
	"github.com/Alias1177/marketfeed/internal/marketdata"
	"github.com/Alias1177/marketfeed/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	marketdataBasePath = "/api/v1/marketdata"
	demoBasePath       = "/api/v1/demo"
	adminBasePath      = "/api/v1/admin"

	requestIDHeader = "X-Request-ID"
)

var (
	errMissingKey       = errors.New("key is required")
	errUnknownTimeframe = errors.New("unknown timeframe")
	errInvalidCount     = errors.New("count must be an integer")
)

// MultiFetcher fetches every timeframe of a symbol.
type MultiFetcher interface {
	FetchAll(ctx context.Context, symbol string, candleCount int) (*models.MultiTimeframeResult, error)
}

// DemoSource produces fully synthetic results.
type DemoSource interface {
	Demo(symbol string, count int) *models.MultiTimeframeResult
}

// KeyAdmin mutates the key pool.
type KeyAdmin interface {
	Keys() []string
	Add(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) (bool, error)
}

// HealthProber checks provider reachability.
type HealthProber interface {
	TestConnection(ctx context.Context) bool
	KeyStatuses(ctx context.Context) []models.KeyStatus
}

// SnapshotSource returns the last scheduled key health snapshot.
type SnapshotSource interface {
	Latest() ([]models.KeyStatus, time.Time)
}

// Deps bundles the components served by the handler.
type Deps struct {
	Orchestrator MultiFetcher
	Fetcher      models.SeriesFetcher
	Demo         DemoSource
	Keys         KeyAdmin
	Health       HealthProber
	Snapshots    SnapshotSource
	MaxRetries   int
}

type Handler struct {
	router *gin.Engine
	deps   Deps
	logger zerolog.Logger
}

func NewHandler(deps Deps) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router: router,
		deps:   deps,
		logger: log.With().Str("component", "http_server").Logger(),
	}
	router.Use(h.requestLogger())
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	md := h.router.Group(marketdataBasePath)
	{
		md.GET("/:symbol", h.getAllTimeframes)
		md.GET("/:symbol/:timeframe", h.getSeries)
	}

	h.router.GET(demoBasePath+"/:symbol", h.getDemo)

	admin := h.router.Group(adminBasePath)
	{
		admin.GET("/keys", h.listKeys)
		admin.POST("/keys", h.addKey)
		admin.DELETE("/keys", h.removeKey)
		admin.GET("/connection", h.testConnection)
	}
}

// requestLogger tags every request with an ID and logs its outcome.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		h.logger.Info().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	}
}

// Market data handlers

type multiTimeframeResponse struct {
	*models.MultiTimeframeResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) getAllTimeframes(c *gin.Context) {
	count, err := parseCount(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.deps.Orchestrator.FetchAll(c.Request.Context(), c.Param("symbol"), count)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, multiTimeframeResponse{MultiTimeframeResult: result})
	case errors.Is(err, marketdata.ErrAllTimeframesFailed) && result != nil:
		result.Demo = true
		c.JSON(http.StatusOK, multiTimeframeResponse{MultiTimeframeResult: result, Error: err.Error()})
	default:
		writeError(c, http.StatusInternalServerError, err)
	}
}

func (h *Handler) getSeries(c *gin.Context) {
	tf, ok := models.ParseTimeframe(c.Param("timeframe"))
	if !ok {
		writeError(c, http.StatusBadRequest, errUnknownTimeframe)
		return
	}
	count, err := parseCount(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	symbol := c.Param("symbol")
	candles, err := h.deps.Fetcher.Fetch(c.Request.Context(), symbol, tf.Interval(), models.ClampCount(count), h.deps.MaxRetries)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, marketdata.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		writeError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "timeframe": tf, "candles": candles})
}

func (h *Handler) getDemo(c *gin.Context) {
	count, err := parseCount(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Demo.Demo(c.Param("symbol"), count))
}

// Admin handlers

type keyRequest struct {
	Key string `json:"key"`
}

func (h *Handler) listKeys(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh || h.deps.Snapshots == nil {
		c.JSON(http.StatusOK, gin.H{
			"keys":       h.deps.Health.KeyStatuses(c.Request.Context()),
			"checked_at": time.Now().UTC(),
		})
		return
	}

	statuses, at := h.deps.Snapshots.Latest()
	if at.IsZero() {
		masked := make([]models.KeyStatus, 0)
		for _, k := range h.deps.Keys.Keys() {
			masked = append(masked, models.KeyStatus{Key: keypool.Mask(k), Status: models.KeyUnknown})
		}
		statuses = masked
	}
	c.JSON(http.StatusOK, gin.H{"keys": statuses, "checked_at": at})
}

func (h *Handler) addKey(c *gin.Context) {
	key, ok := bindKey(c)
	if !ok {
		return
	}
	added, err := h.deps.Keys.Add(c.Request.Context(), key)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if !added {
		c.JSON(http.StatusConflict, gin.H{"added": false, "key": keypool.Mask(key)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": true, "key": keypool.Mask(key)})
}

func (h *Handler) removeKey(c *gin.Context) {
	key, ok := bindKey(c)
	if !ok {
		return
	}
	removed, err := h.deps.Keys.Remove(c.Request.Context(), key)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		c.JSON(http.StatusConflict, gin.H{"removed": false, "key": keypool.Mask(key)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true, "key": keypool.Mask(key)})
}

func (h *Handler) testConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": h.deps.Health.TestConnection(c.Request.Context())})
}

func bindKey(c *gin.Context) (string, bool) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return "", false
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		writeError(c, http.StatusBadRequest, errMissingKey)
		return "", false
	}
	return key, true
}

// parseCount reads the optional count query parameter; zero means the default.
func parseCount(c *gin.Context) (int, error) {
	raw := c.Query("count")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidCount
	}
	return n, nil
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
