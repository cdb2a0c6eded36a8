// Package openmeteo implements the weather provider client against the
// Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/fetch"
)

const (
	// maxForecastDays caps the requested date range; the provider supports
	// up to 16 but the site never shows more than two weeks.
	maxForecastDays = 14

	currentTimeout  = 8 * time.Second
	forecastTimeout = 10 * time.Second
	currentTTL      = 10 * time.Minute
	forecastTTL     = 30 * time.Minute
	retryCount      = 2

	hourlyFields  = "temperature_2m,relative_humidity_2m,precipitation,precipitation_probability,weather_code,wind_speed_10m,cloud_cover"
	currentFields = "temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m,cloud_cover"

	timeLayout = "2006-01-02T15:04"
)

// Client fetches raw weather samples for a coordinate pair.
type Client struct {
	baseURL string
	gateway *fetch.Gateway
	logger  *slog.Logger
}

// NewClient creates an Open-Meteo client routed through the fetch gateway.
func NewClient(baseURL string, gateway *fetch.Gateway, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	return &Client{baseURL: baseURL, gateway: gateway, logger: logger}
}

type currentResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          struct {
		Time               string   `json:"time"`
		Temperature2m      *float64 `json:"temperature_2m"`
		RelativeHumidity2m *float64 `json:"relative_humidity_2m"`
		Precipitation      *float64 `json:"precipitation"`
		WeatherCode        *int     `json:"weather_code"`
		WindSpeed10m       *float64 `json:"wind_speed_10m"`
		CloudCover         *float64 `json:"cloud_cover"`
	} `json:"current"`
}

type forecastResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time                     []string   `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		RelativeHumidity2m       []*float64 `json:"relative_humidity_2m"`
		Precipitation            []*float64 `json:"precipitation"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WeatherCode              []*int     `json:"weather_code"`
		WindSpeed10m             []*float64 `json:"wind_speed_10m"`
		CloudCover               []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// Current fetches the latest reported conditions for the coordinates.
func (c *Client) Current(ctx context.Context, coords domain.Coordinates) (domain.RawSample, error) {
	params := url.Values{
		"latitude":  {formatCoord(coords.Lat)},
		"longitude": {formatCoord(coords.Lon)},
		"current":   {currentFields},
		"timezone":  {"auto"},
	}

	var resp currentResponse
	err := c.gateway.GetJSON(ctx, c.baseURL+"?"+params.Encode(), &resp, fetch.Options{
		Timeout:  currentTimeout,
		CacheTTL: currentTTL,
		Retries:  retryCount,
	})
	if err != nil {
		return domain.RawSample{}, fmt.Errorf("fetch current conditions: %w", err)
	}

	loc := time.FixedZone("provider", resp.UTCOffsetSeconds)
	ts, perr := time.ParseInLocation(timeLayout, resp.Current.Time, loc)
	if perr != nil {
		ts = time.Now().In(loc)
	}

	return domain.RawSample{
		Timestamp:     ts,
		Condition:     mapWeatherCode(resp.Current.WeatherCode),
		Temperature:   resp.Current.Temperature2m,
		Precipitation: resp.Current.Precipitation,
		Humidity:      resp.Current.RelativeHumidity2m,
		WindSpeed:     resp.Current.WindSpeed10m,
		CloudCover:    resp.Current.CloudCover,
	}, nil
}

// Forecast fetches hourly samples for up to days calendar days ahead. The
// provider may omit any field for any slot; the samples keep those gaps.
func (c *Client) Forecast(ctx context.Context, coords domain.Coordinates, days int) ([]domain.RawSample, error) {
	if days <= 0 || days > maxForecastDays {
		days = maxForecastDays
	}

	params := url.Values{
		"latitude":      {formatCoord(coords.Lat)},
		"longitude":     {formatCoord(coords.Lon)},
		"hourly":        {hourlyFields},
		"forecast_days": {strconv.Itoa(days)},
		"timezone":      {"auto"},
	}

	var resp forecastResponse
	err := c.gateway.GetJSON(ctx, c.baseURL+"?"+params.Encode(), &resp, fetch.Options{
		Timeout:  forecastTimeout,
		CacheTTL: forecastTTL,
		Retries:  retryCount,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	loc := time.FixedZone("provider", resp.UTCOffsetSeconds)
	samples := make([]domain.RawSample, 0, len(resp.Hourly.Time))
	for i, raw := range resp.Hourly.Time {
		ts, perr := time.ParseInLocation(timeLayout, raw, loc)
		if perr != nil {
			c.logger.Warn("skipping sample with unparseable time", "time", raw)
			continue
		}
		samples = append(samples, domain.RawSample{
			Timestamp:                ts,
			Condition:                mapWeatherCode(at(resp.Hourly.WeatherCode, i)),
			Temperature:              at(resp.Hourly.Temperature2m, i),
			Precipitation:            at(resp.Hourly.Precipitation, i),
			PrecipitationProbability: at(resp.Hourly.PrecipitationProbability, i),
			Humidity:                 at(resp.Hourly.RelativeHumidity2m, i),
			WindSpeed:                at(resp.Hourly.WindSpeed10m, i),
			CloudCover:               at(resp.Hourly.CloudCover, i),
		})
	}
	return samples, nil
}

// at tolerates ragged provider arrays: a short or missing column reads as nil.
func at[T any](col []*T, i int) *T {
	if i >= len(col) {
		return nil
	}
	return col[i]
}

// mapWeatherCode converts WMO weather codes to normalized condition codes.
// Unmapped codes pass through as their decimal form so they stay visible
// downstream instead of failing normalization.
func mapWeatherCode(code *int) string {
	if code == nil {
		return ""
	}
	c := *code
	switch {
	case c == 0:
		return domain.ConditionClear
	case c >= 1 && c <= 2:
		return domain.ConditionPartlyCloudy
	case c == 3:
		return domain.ConditionCloudy
	case c == 45 || c == 48:
		return domain.ConditionFog
	case c >= 56 && c <= 57, c >= 66 && c <= 67:
		return domain.ConditionSleet
	case c >= 51 && c <= 65, c >= 80 && c <= 82:
		return domain.ConditionRain
	case c >= 71 && c <= 77, c >= 85 && c <= 86:
		return domain.ConditionSnow
	case c == 96 || c == 99:
		return domain.ConditionHail
	case c >= 95:
		return domain.ConditionThunderstorm
	default:
		return strconv.Itoa(c)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
