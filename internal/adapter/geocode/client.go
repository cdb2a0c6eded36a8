// Package geocode implements forward geocoding (Open-Meteo geocoding API)
// and reverse geocoding (Nominatim) behind the resolver's geocoder port.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/fetch"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

const (
	forwardTimeout = 6 * time.Second
	reverseTimeout = 6 * time.Second
	geocodeTTL     = 24 * time.Hour
	retryCount     = 1

	// Nominatim usage policy requires an identifying User-Agent.
	userAgent = "weather-risk-service/1.0 (kontakt@rosenstahl.de)"
)

// Client resolves place names to coordinates and back.
type Client struct {
	forwardURL string
	reverseURL string
	countries  []string
	gateway    *fetch.Gateway
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a geocoding client. countries restricts forward search
// results to the given ISO 3166-1 alpha-2 codes; empty means unrestricted.
func NewClient(forwardURL, reverseURL string, countries []string, gateway *fetch.Gateway, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if forwardURL == "" {
		forwardURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if reverseURL == "" {
		reverseURL = "https://nominatim.openstreetmap.org/reverse"
	}
	upper := make([]string, len(countries))
	for i, c := range countries {
		upper[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	return &Client{
		forwardURL: forwardURL,
		reverseURL: reverseURL,
		countries:  upper,
		gateway:    gateway,
		logger:     logger,
		metrics:    metrics,
	}
}

type searchResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		CountryCode string  `json:"country_code"`
		Admin1      string  `json:"admin1"`
	} `json:"results"`
}

// Forward geocodes a free-text query, restricted to the configured country
// set, and returns the best match.
func (c *Client) Forward(ctx context.Context, query string) (domain.ResolvedLocation, error) {
	params := url.Values{
		"name":     {query},
		"count":    {"10"},
		"language": {"de"},
		"format":   {"json"},
	}

	var resp searchResponse
	err := c.gateway.GetJSON(ctx, c.forwardURL+"?"+params.Encode(), &resp, fetch.Options{
		Timeout:  forwardTimeout,
		CacheTTL: geocodeTTL,
		Retries:  retryCount,
	})
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("forward", "error").Inc()
		return domain.ResolvedLocation{}, fmt.Errorf("forward geocode %q: %w", query, err)
	}

	for _, r := range resp.Results {
		if !c.countryAllowed(r.CountryCode) {
			continue
		}
		c.metrics.GeocodeRequests.WithLabelValues("forward", "success").Inc()
		return domain.ResolvedLocation{
			Name:        r.Name,
			Coordinates: domain.Coordinates{Lat: r.Latitude, Lon: r.Longitude},
		}, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues("forward", "empty").Inc()
	return domain.ResolvedLocation{}, fmt.Errorf("forward geocode %q: %w", query, domain.ErrLocationNotFound)
}

type reverseResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
	} `json:"address"`
}

// Reverse converts coordinates to a short place name using locality-level
// fields in precedence order (city, town, village, municipality, county).
func (c *Client) Reverse(ctx context.Context, coords domain.Coordinates) (string, error) {
	params := url.Values{
		"lat":             {fmt.Sprintf("%.6f", coords.Lat)},
		"lon":             {fmt.Sprintf("%.6f", coords.Lon)},
		"format":          {"jsonv2"},
		"zoom":            {"10"},
		"accept-language": {"de"},
	}

	var resp reverseResponse
	err := c.gateway.GetJSON(ctx, c.reverseURL+"?"+params.Encode(), &resp, fetch.Options{
		Timeout:  reverseTimeout,
		CacheTTL: geocodeTTL,
		Retries:  retryCount,
		Headers:  map[string]string{"User-Agent": userAgent},
	})
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		return "", fmt.Errorf("reverse geocode %s: %w", coords.Key(), err)
	}

	for _, name := range []string{
		resp.Address.City,
		resp.Address.Town,
		resp.Address.Village,
		resp.Address.Municipality,
		resp.Address.County,
	} {
		if name != "" {
			c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()
			return name, nil
		}
	}

	c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
	return "", fmt.Errorf("reverse geocode %s: no locality in response", coords.Key())
}

func (c *Client) countryAllowed(code string) bool {
	if len(c.countries) == 0 {
		return true
	}
	code = strings.ToUpper(code)
	for _, allowed := range c.countries {
		if code == allowed {
			return true
		}
	}
	return false
}
