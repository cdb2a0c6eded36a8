// Package fetch implements the HTTP gateway every outbound provider call
// goes through: per-request timeout, limited retry of transient statuses,
// a circuit breaker, and TTL caching of idempotent responses.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rosenstahl/weather-risk-service/internal/cache"
	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

const (
	defaultTimeout = 10 * time.Second
	retryDelay     = 750 * time.Millisecond
)

// Options controls a single gateway request.
type Options struct {
	Method   string // defaults to GET
	Body     []byte
	Headers  map[string]string
	Timeout  time.Duration // defaults to 10s
	CacheTTL time.Duration // 0 disables caching
	Retries  int           // additional attempts for transient statuses
}

// Gateway executes JSON requests against upstream providers.
type Gateway struct {
	client  *http.Client
	cache   cache.Cache
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
	delay   time.Duration
}

// New creates a Gateway. The circuit breaker spans all upstreams reached
// through this gateway instance; construct one gateway per provider if
// independent breaker state is needed.
func New(c cache.Cache, logger *slog.Logger, metrics *observability.Metrics) *Gateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fetch-gateway",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Gateway{
		client:  &http.Client{},
		cache:   c,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
		delay:   retryDelay,
	}
}

// GetJSON performs a request and decodes the JSON response into out.
//
// Idempotent (GET, no body) requests consult the TTL cache first; a hit
// short-circuits the network entirely. Transient upstream statuses (404,
// 503) are retried up to Retries times with a fixed delay; other non-2xx
// statuses fail immediately as *domain.HTTPError. Exceeding the timeout
// fails with domain.ErrTimeout.
func (g *Gateway) GetJSON(ctx context.Context, url string, out any, opts Options) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	idempotent := method == http.MethodGet && len(opts.Body) == 0

	if idempotent && opts.CacheTTL > 0 {
		if body, ok := g.cache.Get(ctx, url); ok {
			if err := json.Unmarshal(body, out); err == nil {
				g.metrics.FetchCache.WithLabelValues("hit").Inc()
				return nil
			}
			// A corrupt entry behaves like a miss; the refetch overwrites it.
			g.logger.Warn("discarding unreadable cache entry", "url", url)
		}
		g.metrics.FetchCache.WithLabelValues("miss").Inc()
	}

	body, err := g.doWithRetry(ctx, method, url, opts)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		g.metrics.FetchRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("decode response from %s: %w", url, err)
	}

	g.metrics.FetchRequests.WithLabelValues("success").Inc()
	if idempotent && opts.CacheTTL > 0 {
		g.cache.Set(ctx, url, body, opts.CacheTTL)
	}
	return nil
}

func (g *Gateway) doWithRetry(ctx context.Context, method, url string, opts Options) ([]byte, error) {
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		body, err := g.doOnce(ctx, method, url, opts)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var httpErr *domain.HTTPError
		if !errors.As(err, &httpErr) || !httpErr.Transient() || attempt == retries {
			g.classifyFailure(err)
			return nil, err
		}

		g.metrics.FetchRetries.Inc()
		g.logger.Warn("retrying transient upstream failure",
			"url", url, "status", httpErr.Status, "attempt", attempt+1)

		if !sleepWithContext(ctx, g.delay) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (g *Gateway) doOnce(ctx context.Context, method, url string, opts Options) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	result, err := g.breaker.Execute(func() (any, error) {
		resp, doErr := g.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
			return nil, &domain.HTTPError{Status: resp.StatusCode, URL: url}
		}

		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "application/json") && !strings.Contains(ct, "text/json") {
			return nil, fmt.Errorf("%w: %s from %s", domain.ErrUnexpectedResponseType, ct, url)
		}

		return io.ReadAll(resp.Body)
	})
	g.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if isTimeout(err, reqCtx) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTimeout, url)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("upstream circuit open: %w", err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}

func (g *Gateway) classifyFailure(err error) {
	if errors.Is(err, domain.ErrTimeout) {
		g.metrics.FetchRequests.WithLabelValues("timeout").Inc()
		return
	}
	g.metrics.FetchRequests.WithLabelValues("error").Inc()
}

func isTimeout(err error, ctx context.Context) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
