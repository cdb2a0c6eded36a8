// Package store owns the published weather state: it orchestrates location
// resolution, sample fetching, normalization, and risk derivation, and
// serializes all state transitions through a single-flight guard.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"log/slog"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/location"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

// WeatherClient fetches raw samples from the weather provider.
type WeatherClient interface {
	Current(ctx context.Context, coords domain.Coordinates) (domain.RawSample, error)
	Forecast(ctx context.Context, coords domain.Coordinates, days int) ([]domain.RawSample, error)
}

// LocationResolver resolves queries and device signals to locations.
type LocationResolver interface {
	Search(ctx context.Context, query string) (domain.ResolvedLocation, error)
	Detect(ctx context.Context, device location.PositionProvider, callerIP string) (domain.ResolvedLocation, error)
}

// SnapshotStore persists and restores the latest published snapshot.
type SnapshotStore interface {
	Save(snap Snapshot) error
	Load(now time.Time, maxAge time.Duration) (Snapshot, error)
}

// Options tunes store policies.
type Options struct {
	ForecastDays    int           // date range for the forecast query, capped by the provider client
	StaleAfter      time.Duration // live snapshot age that triggers auto-refresh
	PersistedMaxAge time.Duration // persisted snapshot validity window
}

func (o *Options) applyDefaults() {
	if o.ForecastDays <= 0 {
		o.ForecastDays = 14
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 15 * time.Minute
	}
	if o.PersistedMaxAge <= 0 {
		o.PersistedMaxAge = 60 * time.Minute
	}
}

// Store is the orchestrating state holder. Location and forecast are always
// published together; a failed refresh never clears previously good data.
type Store struct {
	resolver LocationResolver
	weather  WeatherClient
	persist  SnapshotStore
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	group singleflight.Group
	seq   atomic.Uint64

	mu           sync.RWMutex
	snapshot     *Snapshot
	publishedSeq uint64
	lastErr      error
	lastPolled   time.Time
}

// New creates a Store. persist may be nil to disable persistence.
func New(resolver LocationResolver, weather WeatherClient, persist SnapshotStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Store {
	opts.applyDefaults()
	return &Store{
		resolver: resolver,
		weather:  weather,
		persist:  persist,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Restore loads the persisted snapshot once at startup. A stale or missing
// snapshot is not an error; the store simply starts empty.
func (s *Store) Restore() {
	if s.persist == nil {
		return
	}
	snap, err := s.persist.Load(s.clock.Now(), s.opts.PersistedMaxAge)
	if err != nil {
		s.logger.Info("no usable persisted snapshot", "reason", err)
		return
	}

	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()
	s.metrics.StoreReady.Set(1)
	s.logger.Info("restored persisted snapshot",
		"location", snap.Location.Name, "age", s.clock.Now().Sub(snap.UpdatedAt).Round(time.Second))
}

// ResolveByQuery resolves a free-text location and publishes its forecast.
// Concurrent identical queries share one flight.
func (s *Store) ResolveByQuery(ctx context.Context, query string) (Snapshot, error) {
	s.metrics.RefreshTotal.WithLabelValues("query").Inc()
	key := "query:" + strings.ToLower(strings.TrimSpace(query))
	return s.resolve(ctx, key, func(ctx context.Context) (domain.ResolvedLocation, error) {
		return s.resolver.Search(ctx, query)
	})
}

// ResolveByDevice resolves the caller's current location through the tiered
// positioning chain and publishes its forecast.
func (s *Store) ResolveByDevice(ctx context.Context, device location.PositionProvider, callerIP string) (Snapshot, error) {
	s.metrics.RefreshTotal.WithLabelValues("device").Inc()
	return s.resolve(ctx, "device:"+callerIP, func(ctx context.Context) (domain.ResolvedLocation, error) {
		return s.resolver.Detect(ctx, device, callerIP)
	})
}

// Refresh re-fetches the forecast for the last published location. It fails
// when nothing has been resolved yet.
func (s *Store) Refresh(ctx context.Context, trigger string) (Snapshot, error) {
	s.metrics.RefreshTotal.WithLabelValues(trigger).Inc()

	s.mu.RLock()
	var loc domain.ResolvedLocation
	ok := s.snapshot != nil
	if ok {
		loc = s.snapshot.Location
	}
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("refresh: no location resolved yet")
	}

	return s.resolve(ctx, "refresh:"+loc.Coordinates.Key(), func(context.Context) (domain.ResolvedLocation, error) {
		return loc, nil
	})
}

// resolve runs one resolution flight. Identical in-flight intents coalesce;
// distinct intents race, and the publish step discards any result whose
// sequence number is older than what is already published.
func (s *Store) resolve(ctx context.Context, key string, locate func(context.Context) (domain.ResolvedLocation, error)) (Snapshot, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		seq := s.seq.Add(1)

		loc, err := locate(ctx)
		if err != nil {
			s.recordFailure(err)
			return nil, err
		}

		snap, err := s.compose(ctx, loc)
		if err != nil {
			s.recordFailure(err)
			return nil, err
		}

		s.publish(seq, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// compose fetches current conditions and the forecast in parallel, then
// normalizes and derives the risk signals. Pure computation after the two
// network calls.
func (s *Store) compose(ctx context.Context, loc domain.ResolvedLocation) (Snapshot, error) {
	var (
		wg         sync.WaitGroup
		curSample  domain.RawSample
		samples    []domain.RawSample
		curErr     error
		forecastEr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		curSample, curErr = s.weather.Current(ctx, loc.Coordinates)
	}()
	go func() {
		defer wg.Done()
		samples, forecastEr = s.weather.Forecast(ctx, loc.Coordinates, s.opts.ForecastDays)
	}()
	wg.Wait()

	if curErr != nil {
		return Snapshot{}, curErr
	}
	if forecastEr != nil {
		return Snapshot{}, forecastEr
	}

	now := s.clock.Now()

	current, err := domain.BuildCurrent(curSample, now)
	if err != nil {
		return Snapshot{}, err
	}
	hourly := domain.BuildHourly(samples, now)
	daily := domain.BuildDaily(samples, now)

	forecast := domain.Forecast{
		Current:         current,
		Hourly:          hourly,
		Daily:           daily,
		IceRisk:         domain.ComputeIceRisk(current.Temperature, current.Precipitation, current.Humidity),
		Snowfall:        domain.PredictSnowfall(hourly, now),
		ServiceRequired: domain.WinterServiceRequired(current.Temperature, current.Precipitation),
	}

	return Snapshot{Location: loc, Forecast: forecast, UpdatedAt: now}, nil
}

// publish installs the snapshot unless a newer request already published.
// The store never publishes a result older than what is currently visible.
func (s *Store) publish(seq uint64, snap Snapshot) {
	s.mu.Lock()
	if seq <= s.publishedSeq && s.snapshot != nil {
		s.mu.Unlock()
		s.metrics.SnapshotsDiscarded.Inc()
		s.logger.Info("discarding superseded snapshot", "seq", seq, "published_seq", s.publishedSeq)
		return
	}
	s.snapshot = &snap
	s.publishedSeq = seq
	s.lastErr = nil
	s.mu.Unlock()

	s.metrics.SnapshotsPublished.Inc()
	s.metrics.StoreReady.Set(1)
	s.logger.Info("published snapshot",
		"seq", seq, "location", snap.Location.Name, "approximate", snap.Location.Approximate,
		"service_required", snap.Forecast.ServiceRequired, "ice_risk", snap.Forecast.IceRisk.Level)

	if s.persist != nil {
		if err := s.persist.Save(snap); err != nil {
			s.logger.Warn("snapshot persistence failed", "error", err)
		}
	}
}

// recordFailure surfaces the error alongside the last-known-good snapshot
// without clearing it.
func (s *Store) recordFailure(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Error("resolution failed", "error", err)
}

// Published returns the current snapshot, if any, and marks the consumer as
// active for the staleness scheduler.
func (s *Store) Published() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPolled = s.clock.Now()
	if s.snapshot == nil {
		return Snapshot{}, false
	}
	return *s.snapshot, true
}

// Current returns the published current conditions.
func (s *Store) Current() (domain.CurrentConditions, bool) {
	snap, ok := s.Published()
	if !ok {
		return domain.CurrentConditions{}, false
	}
	return snap.Forecast.Current, true
}

// Hourly returns up to n published hourly entries.
func (s *Store) Hourly(n int) []domain.HourlyForecast {
	snap, ok := s.Published()
	if !ok {
		return nil
	}
	hourly := snap.Forecast.Hourly
	if n > 0 && n < len(hourly) {
		hourly = hourly[:n]
	}
	return hourly
}

// Daily returns up to n published daily entries.
func (s *Store) Daily(n int) []domain.DailyForecast {
	snap, ok := s.Published()
	if !ok {
		return nil
	}
	daily := snap.Forecast.Daily
	if n > 0 && n < len(daily) {
		daily = daily[:n]
	}
	return daily
}

// TodayForecast summarizes the rest of the current day from the published
// hourly entries. The daily sequence deliberately excludes today, so this is
// the only view of the current partial day beyond the current conditions.
func (s *Store) TodayForecast() (domain.DailyForecast, bool) {
	snap, ok := s.Published()
	if !ok {
		return domain.DailyForecast{}, false
	}

	now := s.clock.Now()
	cur := snap.Forecast.Current

	day := domain.DailyForecast{
		Date:           time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		MinTemp:        cur.Temperature,
		MaxTemp:        cur.Temperature,
		Condition:      cur.Condition,
		ConditionLabel: cur.ConditionLabel,
		Precipitation:  cur.Precipitation,
	}

	today := now.Format("2006-01-02")
	for _, h := range snap.Forecast.Hourly {
		if h.Time.In(now.Location()).Format("2006-01-02") != today {
			continue
		}
		if h.Temperature < day.MinTemp {
			day.MinTemp = h.Temperature
		}
		if h.Temperature > day.MaxTemp {
			day.MaxTemp = h.Temperature
		}
		day.Precipitation += h.Precipitation
	}
	return day, true
}

// Err returns the error of the most recent failed resolution, independent of
// the published data.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsStale reports whether the published snapshot is older than the live
// staleness threshold. An empty store is not stale; it is empty.
func (s *Store) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return false
	}
	return s.clock.Now().Sub(s.snapshot.UpdatedAt) > s.opts.StaleAfter
}

// ConsumerActive reports whether any consumer read the store within the
// window. The background refresher stays passive otherwise.
func (s *Store) ConsumerActive(window time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPolled.IsZero() {
		return false
	}
	return s.clock.Now().Sub(s.lastPolled) <= window
}

// CheckReadiness reports ready once a snapshot has been published or
// restored.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return fmt.Errorf("no weather snapshot published yet")
	}
	return nil
}
