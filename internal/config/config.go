// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream endpoints; empty values select the production defaults baked
	// into each adapter.
	WeatherBaseURL        string
	GeocodeBaseURL        string
	ReverseGeocodeBaseURL string
	IPGeoBaseURL          string

	// Resolution and forecast policy.
	AllowedCountries []string
	ForecastDays     int

	// Staleness policy.
	StaleAfter           time.Duration
	PersistedMaxAge      time.Duration
	RefreshCheckInterval time.Duration
	ConsumerActiveWindow time.Duration

	// Persistence and caching.
	SnapshotPath         string
	CacheBackend         string // "memory" or "redis"
	RedisAddr            string
	CacheCleanupInterval time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		WeatherBaseURL:        os.Getenv("WEATHER_BASE_URL"),
		GeocodeBaseURL:        os.Getenv("GEOCODE_BASE_URL"),
		ReverseGeocodeBaseURL: os.Getenv("REVERSE_GEOCODE_BASE_URL"),
		IPGeoBaseURL:          os.Getenv("IPGEO_BASE_URL"),

		AllowedCountries: splitList(envOrDefault("ALLOWED_COUNTRIES", "DE,AT,CH")),

		SnapshotPath: envOrDefault("SNAPSHOT_PATH", "data/weather-snapshot.json"),
		CacheBackend: envOrDefault("CACHE_BACKEND", "memory"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = envDuration("STALE_AFTER", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PersistedMaxAge, err = envDuration("PERSISTED_MAX_AGE", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshCheckInterval, err = envDuration("REFRESH_CHECK_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ConsumerActiveWindow, err = envDuration("CONSUMER_ACTIVE_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheCleanupInterval, err = envDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ForecastDays, err = envInt("FORECAST_DAYS", 14); err != nil {
		return nil, err
	}

	if cfg.ForecastDays < 1 || cfg.ForecastDays > 14 {
		return nil, errors.New("FORECAST_DAYS must be between 1 and 14")
	}
	switch cfg.CacheBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("CACHE_BACKEND is redis but REDIS_ADDR is not set")
		}
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if len(cfg.AllowedCountries) == 0 {
		return nil, errors.New("ALLOWED_COUNTRIES must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
