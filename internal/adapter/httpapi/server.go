// Package httpapi exposes the weather store to the website frontend along
// with health, readiness, and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/location"
	"github.com/rosenstahl/weather-risk-service/internal/store"
)

// WeatherStore is the slice of the store the API serves.
type WeatherStore interface {
	ResolveByQuery(ctx context.Context, query string) (store.Snapshot, error)
	ResolveByDevice(ctx context.Context, device location.PositionProvider, callerIP string) (store.Snapshot, error)
	Published() (store.Snapshot, bool)
	Hourly(n int) []domain.HourlyForecast
	Daily(n int) []domain.DailyForecast
	TodayForecast() (domain.DailyForecast, bool)
	IsStale() bool
	Err() error
	CheckReadiness(ctx context.Context) error
}

// Server wraps the HTTP listener and routes.
type Server struct {
	httpServer *http.Server
	weather    WeatherStore
	logger     *slog.Logger
}

// NewServer creates the API server.
func NewServer(addr string, weather WeatherStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		weather: weather,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/weather", s.handleWeather)
	mux.HandleFunc("GET /api/v1/weather/hourly", s.handleHourly)
	mux.HandleFunc("GET /api/v1/weather/daily", s.handleDaily)
	mux.HandleFunc("GET /api/v1/weather/today", s.handleToday)
	mux.HandleFunc("POST /api/v1/location/search", s.handleSearch)
	mux.HandleFunc("POST /api/v1/location/detect", s.handleDetect)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.weather.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// weatherResponse carries the last-known-good snapshot together with any
// error from the most recent resolution attempt. Good data is never nulled
// out because a refresh failed.
type weatherResponse struct {
	Location  *domain.ResolvedLocation `json:"location,omitempty"`
	Forecast  *domain.Forecast         `json:"forecast,omitempty"`
	UpdatedAt *time.Time               `json:"updated_at,omitempty"`
	Stale     bool                     `json:"stale"`
	Error     *apiError                `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

func (s *Server) handleWeather(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentResponse())
}

func (s *Server) currentResponse() weatherResponse {
	resp := weatherResponse{Stale: s.weather.IsStale()}

	if snap, ok := s.weather.Published(); ok {
		resp.Location = &snap.Location
		resp.Forecast = &snap.Forecast
		resp.UpdatedAt = &snap.UpdatedAt
	}
	if err := s.weather.Err(); err != nil {
		resp.Error = &apiError{Message: err.Error(), Hint: domain.UserMessage(err)}
	}
	return resp
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"hourly": s.weather.Hourly(queryInt(r, "n", 0)),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"daily": s.weather.Daily(queryInt(r, "n", 0)),
	})
}

func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	day, ok := s.weather.TodayForecast()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no forecast published yet"})
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if _, err := s.weather.ResolveByQuery(r.Context(), req.Query); err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentResponse())
}

// detectRequest mirrors the browser geolocation outcome: either a fix, or
// the failure class the browser reported. Absent both, detection relies on
// the caller IP alone.
type detectRequest struct {
	Position *struct {
		Lat        float64    `json:"lat"`
		Lon        float64    `json:"lon"`
		ObservedAt *time.Time `json:"observed_at"`
	} `json:"position"`
	Error string `json:"error"` // "permission-denied" or any other failure class
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	var device location.PositionProvider
	switch {
	case req.Error == "permission-denied":
		device = location.NewReportedDenial()
	case req.Error != "":
		device = location.NewReportedFailure()
	case req.Position != nil:
		pos := location.Position{
			Coordinates: domain.Coordinates{Lat: req.Position.Lat, Lon: req.Position.Lon},
		}
		if req.Position.ObservedAt != nil {
			pos.ObservedAt = *req.Position.ObservedAt
		}
		device = location.NewReportedFix(pos)
	}

	if _, err := s.weather.ResolveByDevice(r.Context(), device, clientIP(r)); err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentResponse())
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPositionUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	resp := s.currentResponse()
	resp.Error = &apiError{Message: err.Error(), Hint: domain.UserMessage(err)}
	writeJSON(w, status, resp)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
