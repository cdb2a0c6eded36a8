package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/rosenstahl/weather-risk-service/internal/adapter/geocode"
	"github.com/rosenstahl/weather-risk-service/internal/adapter/httpapi"
	"github.com/rosenstahl/weather-risk-service/internal/adapter/ipgeo"
	"github.com/rosenstahl/weather-risk-service/internal/adapter/openmeteo"
	"github.com/rosenstahl/weather-risk-service/internal/cache"
	"github.com/rosenstahl/weather-risk-service/internal/config"
	"github.com/rosenstahl/weather-risk-service/internal/fetch"
	"github.com/rosenstahl/weather-risk-service/internal/location"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
	"github.com/rosenstahl/weather-risk-service/internal/scheduler"
	"github.com/rosenstahl/weather-risk-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var responseCache cache.Cache
	if cfg.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		responseCache = cache.NewRedis(client, logger)
		logger.Info("using redis response cache", "addr", cfg.RedisAddr)
	} else {
		responseCache = cache.NewMemory(cfg.CacheCleanupInterval)
	}

	gateway := fetch.New(responseCache, logger, metrics)

	weather := openmeteo.NewClient(cfg.WeatherBaseURL, gateway, logger)
	geocoder := geocode.NewClient(cfg.GeocodeBaseURL, cfg.ReverseGeocodeBaseURL, cfg.AllowedCountries, gateway, logger, metrics)
	ipLocator := ipgeo.NewClient(cfg.IPGeoBaseURL, gateway, logger)
	resolver := location.NewResolver(geocoder, ipLocator, logger, metrics)

	snapshots := store.NewFileSnapshots(cfg.SnapshotPath)
	weatherStore := store.New(resolver, weather, snapshots, clockwork.NewRealClock(), logger, metrics, store.Options{
		ForecastDays:    cfg.ForecastDays,
		StaleAfter:      cfg.StaleAfter,
		PersistedMaxAge: cfg.PersistedMaxAge,
	})
	weatherStore.Restore()

	refresher := scheduler.New(weatherStore, cfg.RefreshCheckInterval, cfg.ConsumerActiveWindow, logger)
	if err := refresher.Start(); err != nil {
		logger.Error("failed to start refresh scheduler", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, weatherStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	refresher.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
