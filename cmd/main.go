package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alias1177/marketfeed/internal/app"
	"github.com/Alias1177/marketfeed/internal/config"
	"github.com/Alias1177/marketfeed/internal/logging"
	"github.com/Alias1177/marketfeed/internal/marketdata"
	"github.com/Alias1177/marketfeed/internal/synthetic"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run fetches every timeframe and writes the result as JSON to out. It returns the exit code;
// deferred cleanup always runs before the process exits.
func run(args []string, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	fs := flag.NewFlagSet("marketfeed", flag.ContinueOnError)
	symbol := fs.String("symbol", cfg.Symbol, "symbol to fetch, e.g. EURUSD")
	count := fs.Int("count", cfg.CandleCount, "candles per timeframe (max 50)")
	demo := fs.Bool("demo", false, "print synthetic data without calling the provider")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	closer := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer closer.Close()

	if *demo {
		return printJSON(out, synthetic.New().Demo(*symbol, *count))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.Close()

	result, err := a.Orchestrator.FetchAll(ctx, *symbol, *count)
	switch {
	case errors.Is(err, marketdata.ErrAllTimeframesFailed):
		log.Warn().Err(err).Msg("Provider unavailable, printing synthetic data")
		result.Demo = true
	case err != nil:
		log.Error().Err(err).Msg("Fetch failed")
		return 1
	}

	log.Info().
		Str("symbol", result.Symbol).
		Int("real_timeframes", len(result.RealTimeframes())).
		Bool("demo", result.Demo).
		Msg("Fetch complete")
	return printJSON(out, result)
}

func printJSON(out io.Writer, v any) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode result")
		return 1
	}
	return 0
}
