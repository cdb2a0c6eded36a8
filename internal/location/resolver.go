// Package location resolves a free-text query or a device signal into
// coordinates plus a display name.
//
// Detection runs a tiered fallback chain: a high-accuracy device probe, a
// reduced-accuracy retry, then IP-based geolocation. Each tier yields a
// tri-state outcome (resolved, continue, abort) instead of nesting error
// handlers; a user permission denial aborts the whole chain because no
// automatic strategy can recover consent.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

const (
	highAccuracyTimeout    = 8 * time.Second
	reducedAccuracyTimeout = 10 * time.Second
	ipFallbackTimeout      = 5 * time.Second

	// The reduced-accuracy probe accepts cached fixes this recent.
	recentPositionMaxAge = 5 * time.Minute

	// placeholderName is used when reverse geocoding fails; coordinates are
	// kept regardless.
	placeholderName = "Aktueller Standort"
)

// Position is one device positioning fix.
type Position struct {
	Coordinates domain.Coordinates
	ObservedAt  time.Time
}

// PositionRequest parameterizes one positioning probe.
type PositionRequest struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration // accept cached fixes no older than this; 0 forces a fresh probe
}

// PositionProvider supplies device positioning fixes. Implementations signal
// user refusal with domain.ErrPermissionDenied and anything else retryable
// with domain.ErrPositionUnavailable or domain.ErrTimeout.
type PositionProvider interface {
	Position(ctx context.Context, req PositionRequest) (Position, error)
}

// Geocoder converts between place names and coordinates.
type Geocoder interface {
	Forward(ctx context.Context, query string) (domain.ResolvedLocation, error)
	Reverse(ctx context.Context, coords domain.Coordinates) (string, error)
}

// IPLocator resolves a caller IP to approximate coordinates.
type IPLocator interface {
	Locate(ctx context.Context, ip string) (domain.ResolvedLocation, error)
}

type outcome int

const (
	outcomeResolved outcome = iota
	outcomeContinue
	outcomeAbort
)

// Resolver turns queries and device signals into resolved locations. It
// holds no mutable state; every call returns a value or a typed failure.
type Resolver struct {
	geocoder Geocoder
	ip       IPLocator
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver.
func NewResolver(geocoder Geocoder, ip IPLocator, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{geocoder: geocoder, ip: ip, logger: logger, metrics: metrics}
}

// Search forward-geocodes a free-text query. Zero matches fail with
// domain.ErrLocationNotFound.
func (r *Resolver) Search(ctx context.Context, query string) (domain.ResolvedLocation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.ResolvedLocation{}, fmt.Errorf("empty query: %w", domain.ErrLocationNotFound)
	}
	loc, err := r.geocoder.Forward(ctx, query)
	if err != nil {
		r.metrics.ResolveTier.WithLabelValues("query", "abort").Inc()
		return domain.ResolvedLocation{}, err
	}
	r.metrics.ResolveTier.WithLabelValues("query", "resolved").Inc()
	return loc, nil
}

// Detect resolves the caller's current location. device may be nil when no
// device signal is available, in which case the probes are skipped and only
// the IP fallback runs. callerIP feeds the last tier.
func (r *Resolver) Detect(ctx context.Context, device PositionProvider, callerIP string) (domain.ResolvedLocation, error) {
	probes := []struct {
		tier string
		req  PositionRequest
	}{
		{"high_accuracy", PositionRequest{HighAccuracy: true, Timeout: highAccuracyTimeout}},
		{"reduced_accuracy", PositionRequest{Timeout: reducedAccuracyTimeout, MaxAge: recentPositionMaxAge}},
	}

	for _, probe := range probes {
		pos, out := r.probe(ctx, device, probe.req)
		r.metrics.ResolveTier.WithLabelValues(probe.tier, outcomeLabel(out)).Inc()
		switch out {
		case outcomeResolved:
			return r.reverseResolve(ctx, pos.Coordinates), nil
		case outcomeAbort:
			return domain.ResolvedLocation{}, domain.ErrPermissionDenied
		}
		// outcomeContinue: next tier.
	}

	loc, err := r.ipFallback(ctx, callerIP)
	if err != nil {
		r.metrics.ResolveTier.WithLabelValues("ip", "abort").Inc()
		return domain.ResolvedLocation{}, fmt.Errorf("%w: all positioning tiers exhausted", domain.ErrPositionUnavailable)
	}
	r.metrics.ResolveTier.WithLabelValues("ip", "resolved").Inc()
	return loc, nil
}

func (r *Resolver) probe(ctx context.Context, device PositionProvider, req PositionRequest) (Position, outcome) {
	if device == nil {
		return Position{}, outcomeContinue
	}

	probeCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	pos, err := device.Position(probeCtx, req)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			r.logger.Info("positioning permission denied, not falling back")
			return Position{}, outcomeAbort
		}
		r.logger.Debug("positioning probe failed", "high_accuracy", req.HighAccuracy, "error", err)
		return Position{}, outcomeContinue
	}
	if pos.Coordinates.IsZero() {
		return Position{}, outcomeContinue
	}
	return pos, outcomeResolved
}

// reverseResolve is best-effort: a failed reverse geocode never aborts a
// successful positioning fix, it only degrades the display name.
func (r *Resolver) reverseResolve(ctx context.Context, coords domain.Coordinates) domain.ResolvedLocation {
	name, err := r.geocoder.Reverse(ctx, coords)
	if err != nil || name == "" {
		r.logger.Warn("reverse geocoding failed, using placeholder name",
			"coordinates", coords.Key(), "error", err)
		name = placeholderName
	}
	return domain.ResolvedLocation{Name: name, Coordinates: coords}
}

// ipFallback intentionally skips reverse geocoding: the IP provider already
// supplies a city/region label, and it is approximate by nature.
func (r *Resolver) ipFallback(ctx context.Context, callerIP string) (domain.ResolvedLocation, error) {
	if callerIP == "" {
		return domain.ResolvedLocation{}, domain.ErrPositionUnavailable
	}
	ipCtx, cancel := context.WithTimeout(ctx, ipFallbackTimeout)
	defer cancel()

	loc, err := r.ip.Locate(ipCtx, callerIP)
	if err != nil {
		r.logger.Warn("ip geolocation failed", "error", err)
		return domain.ResolvedLocation{}, err
	}
	loc.Approximate = true
	return loc, nil
}

func outcomeLabel(o outcome) string {
	switch o {
	case outcomeResolved:
		return "resolved"
	case outcomeAbort:
		return "abort"
	default:
		return "continue"
	}
}
