package domain

import (
	"fmt"
	"time"
)

// Coordinates is a WGS-84 latitude/longitude pair. Once resolved it is never
// mutated; it identifies a cache partition for provider requests.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical cache key with coordinates rounded to four decimal
// places (roughly 11 m), so nearby probe results share a partition.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// IsZero reports whether the coordinates are unset.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// Normalized condition codes, ordered here roughly by display severity.
// Provider codes that do not map onto one of these pass through unmodified.
const (
	ConditionClear        = "clear"
	ConditionPartlyCloudy = "partly-cloudy"
	ConditionCloudy       = "cloudy"
	ConditionFog          = "fog"
	ConditionRain         = "rain"
	ConditionSleet        = "sleet"
	ConditionHail         = "hail"
	ConditionSnow         = "snow"
	ConditionThunderstorm = "thunderstorm"
)

// RawSample is one provider-reported time slice. Providers deliver partial
// rows, so every numeric field is optional; nil means "not reported", which
// is distinct from a reported zero. Defaulting rules live in the normalizer.
type RawSample struct {
	Timestamp                time.Time
	Condition                string
	Temperature              *float64 // °C
	Precipitation            *float64 // mm
	PrecipitationProbability *float64 // percent
	Humidity                 *float64 // percent
	WindSpeed                *float64 // km/h
	CloudCover               *float64 // percent
}

// CurrentConditions is the derived single-point snapshot. It is recomputed on
// every successful fetch and superseded atomically by the next one.
type CurrentConditions struct {
	Temperature              float64   `json:"temperature"`
	FeelsLike                float64   `json:"feels_like"`
	Condition                string    `json:"condition"`
	ConditionLabel           string    `json:"condition_label"`
	Humidity                 float64   `json:"humidity"`
	WindSpeed                float64   `json:"wind_speed"`
	Precipitation            float64   `json:"precipitation"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// HourlyForecast is one future-only forecast slot.
type HourlyForecast struct {
	Time                     time.Time `json:"time"`
	Temperature              float64   `json:"temperature"`
	Condition                string    `json:"condition"`
	ConditionLabel           string    `json:"condition_label"`
	Humidity                 float64   `json:"humidity"`
	WindSpeed                float64   `json:"wind_speed"`
	Precipitation            float64   `json:"precipitation"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
}

// DailyForecast summarizes one future calendar day.
type DailyForecast struct {
	Date                     time.Time `json:"date"`
	MinTemp                  float64   `json:"min_temp"`
	MaxTemp                  float64   `json:"max_temp"`
	Condition                string    `json:"condition"`
	ConditionLabel           string    `json:"condition_label"`
	Precipitation            float64   `json:"precipitation"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	SnowAccumulationCm       float64   `json:"snow_accumulation_cm"`
}

// Forecast is the composed, published result: normalized conditions plus the
// derived risk signals. Risk signals are always derived from the conditions
// carried alongside them, never from an older publish.
type Forecast struct {
	Current         CurrentConditions  `json:"current"`
	Hourly          []HourlyForecast   `json:"hourly"`
	Daily           []DailyForecast    `json:"daily"`
	IceRisk         IceRisk            `json:"ice_risk"`
	Snowfall        SnowfallPrediction `json:"snowfall"`
	ServiceRequired bool               `json:"service_required"`
}

// ResolvedLocation pairs coordinates with a display name. Approximate marks
// results from the IP-geolocation fallback tier.
type ResolvedLocation struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	Approximate bool        `json:"approximate,omitempty"`
}
