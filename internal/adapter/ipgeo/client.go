// Package ipgeo implements the IP-geolocation client used as the last
// positioning fallback tier.
package ipgeo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/fetch"
)

const (
	lookupTimeout = 5 * time.Second
	lookupTTL     = 6 * time.Hour
)

// Client looks up approximate coordinates for an IP address.
type Client struct {
	baseURL string
	gateway *fetch.Gateway
	logger  *slog.Logger
}

// NewClient creates an ip-api.com style client routed through the gateway.
func NewClient(baseURL string, gateway *fetch.Gateway, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://ip-api.com/json"
	}
	return &Client{baseURL: baseURL, gateway: gateway, logger: logger}
}

type lookupResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Locate resolves an IP address to approximate coordinates and a city/region
// label. The result is explicitly marked approximate; callers must not
// reverse-geocode it into a precise-looking name.
func (c *Client) Locate(ctx context.Context, ip string) (domain.ResolvedLocation, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(strings.TrimSpace(ip))
	params := url.Values{
		"fields": {"status,message,city,regionName,lat,lon"},
		"lang":   {"de"},
	}

	var resp lookupResponse
	err := c.gateway.GetJSON(ctx, endpoint+"?"+params.Encode(), &resp, fetch.Options{
		Timeout:  lookupTimeout,
		CacheTTL: lookupTTL,
	})
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("ip geolocation: %w", err)
	}

	if resp.Status != "success" {
		return domain.ResolvedLocation{}, fmt.Errorf("ip geolocation: %w: %s", domain.ErrPositionUnavailable, resp.Message)
	}

	name := resp.City
	if name != "" && resp.RegionName != "" {
		name = fmt.Sprintf("%s, %s", resp.City, resp.RegionName)
	}
	if name == "" {
		name = "Ungefährer Standort"
	}

	return domain.ResolvedLocation{
		Name:        name,
		Coordinates: domain.Coordinates{Lat: resp.Lat, Lon: resp.Lon},
		Approximate: true,
	}, nil
}
