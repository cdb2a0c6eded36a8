package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"DE", "AT", "CH"}, cfg.AllowedCountries)
	assert.Equal(t, "data/weather-snapshot.json", cfg.SnapshotPath)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 14, cfg.ForecastDays)
	assert.Equal(t, 15*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 60*time.Minute, cfg.PersistedMaxAge)
	assert.Equal(t, time.Minute, cfg.RefreshCheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.ConsumerActiveWindow)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_COUNTRIES", "de, at")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("STALE_AFTER", "5m")
	t.Setenv("FORECAST_DAYS", "7")
	t.Setenv("WEATHER_BASE_URL", "http://localhost:8081/v1/forecast")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"de", "at"}, cfg.AllowedCountries)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 7, cfg.ForecastDays)
	assert.Equal(t, "http://localhost:8081/v1/forecast", cfg.WeatherBaseURL)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("redis backend requires an address", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "redis")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("unknown cache backend", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "memcached")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("forecast days out of range", func(t *testing.T) {
		t.Setenv("FORECAST_DAYS", "20")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("STALE_AFTER", "often")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("negative duration", func(t *testing.T) {
		t.Setenv("STALE_AFTER", "-5m")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("empty country list", func(t *testing.T) {
		t.Setenv("ALLOWED_COUNTRIES", " , ")
		_, err := Load()
		require.Error(t, err)
	})
}
