package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/marketfeed/internal/app"
	"github.com/Alias1177/marketfeed/internal/config"
	"github.com/Alias1177/marketfeed/internal/logging"
	"github.com/Alias1177/marketfeed/internal/scheduler"
	"github.com/Alias1177/marketfeed/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run serves until ctx ends and returns the exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	closer := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer closer.Close()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.Close()

	sched := scheduler.New(a.Health, a.Pool, cfg.HealthCheckInterval, cfg.RequestTimeout)
	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start scheduler")
		return 1
	}
	defer sched.Stop()

	gin.SetMode(gin.ReleaseMode)
	handler := server.NewHandler(server.Deps{
		Orchestrator: a.Orchestrator,
		Fetcher:      a.Fetcher,
		Demo:         a.Generator,
		Keys:         a.Pool,
		Health:       a.Health,
		Snapshots:    sched,
		MaxRetries:   cfg.MaxRetries,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return 1
	}
	return 0
}
