package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosenstahl/weather-risk-service/internal/domain"
	"github.com/rosenstahl/weather-risk-service/internal/location"
	"github.com/rosenstahl/weather-risk-service/internal/observability"
)

var testTime = time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

type fakeResolver struct {
	loc         domain.ResolvedLocation
	err         error
	searchCalls atomic.Int32
}

func (f *fakeResolver) Search(_ context.Context, _ string) (domain.ResolvedLocation, error) {
	f.searchCalls.Add(1)
	return f.loc, f.err
}

func (f *fakeResolver) Detect(_ context.Context, _ location.PositionProvider, _ string) (domain.ResolvedLocation, error) {
	return f.loc, f.err
}

type fakeWeather struct {
	mu           sync.Mutex
	current      domain.RawSample
	forecast     []domain.RawSample
	currentErr   error
	forecastErr  error
	currentCalls atomic.Int32

	// block, when non-nil, holds Current until closed.
	block chan struct{}
}

func (f *fakeWeather) Current(_ context.Context, _ domain.Coordinates) (domain.RawSample, error) {
	f.currentCalls.Add(1)
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.current, f.currentErr
}

func (f *fakeWeather) Forecast(_ context.Context, _ domain.Coordinates, _ int) ([]domain.RawSample, error) {
	return f.forecast, f.forecastErr
}

func fp(v float64) *float64 { return &v }

func testLocation() domain.ResolvedLocation {
	return domain.ResolvedLocation{
		Name:        "Essen",
		Coordinates: domain.Coordinates{Lat: 51.4556, Lon: 7.0116},
	}
}

func testWeather() *fakeWeather {
	return &fakeWeather{
		current: domain.RawSample{
			Timestamp:     testTime,
			Temperature:   fp(1),
			Precipitation: fp(0.3),
			Humidity:      fp(70),
			Condition:     domain.ConditionCloudy,
		},
		forecast: []domain.RawSample{
			{Timestamp: testTime.Add(1 * time.Hour), Temperature: fp(-2), Precipitation: fp(1), Condition: domain.ConditionSnow},
			{Timestamp: testTime.Add(2 * time.Hour), Temperature: fp(-1), Precipitation: fp(0.5)},
			{Timestamp: testTime.Add(3 * time.Hour), Temperature: fp(0)},
			{Timestamp: testTime.Add(4 * time.Hour), Temperature: fp(4), Precipitation: fp(0.5)},
			{Timestamp: testTime.Add(26 * time.Hour), Temperature: fp(5), Condition: domain.ConditionRain},
		},
	}
}

func newTestStore(t *testing.T, resolver *fakeResolver, weather *fakeWeather, persist SnapshotStore) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testTime)
	s := New(resolver, weather, persist, clock, observability.NopLogger(), observability.NewMetricsForTesting(), Options{
		StaleAfter:      15 * time.Minute,
		PersistedMaxAge: time.Hour,
	})
	return s, clock
}

func TestResolveByQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes location and forecast together", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), nil)

		snap, err := s.ResolveByQuery(ctx, "Essen")

		require.NoError(t, err)
		assert.Equal(t, "Essen", snap.Location.Name)
		assert.Equal(t, 1.0, snap.Forecast.Current.Temperature)
		assert.True(t, snap.Forecast.Snowfall.WillSnow)
		assert.NotEmpty(t, snap.Forecast.Hourly)
		require.Len(t, snap.Forecast.Daily, 1)

		published, ok := s.Published()
		require.True(t, ok)
		assert.Equal(t, snap, published)
		assert.NoError(t, s.Err())
	})

	t.Run("resolution failure leaves the store empty", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{err: domain.ErrLocationNotFound}, testWeather(), nil)

		_, err := s.ResolveByQuery(ctx, "Atlantis")

		require.ErrorIs(t, err, domain.ErrLocationNotFound)
		_, ok := s.Published()
		assert.False(t, ok)
		assert.ErrorIs(t, s.Err(), domain.ErrLocationNotFound)
	})

	t.Run("failed refresh keeps the last good snapshot", func(t *testing.T) {
		weather := testWeather()
		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, weather, nil)

		first, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		weather.currentErr = errors.New("upstream down")
		_, err = s.ResolveByQuery(ctx, "Dortmund")
		require.Error(t, err)

		published, ok := s.Published()
		require.True(t, ok)
		assert.Equal(t, first, published)
		assert.Error(t, s.Err())

		// The next success clears the surfaced error.
		weather.currentErr = nil
		_, err = s.ResolveByQuery(ctx, "Bochum")
		require.NoError(t, err)
		assert.NoError(t, s.Err())
	})

	t.Run("concurrent identical queries share one flight", func(t *testing.T) {
		weather := testWeather()
		weather.block = make(chan struct{})
		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, weather, nil)

		var wg sync.WaitGroup
		results := make([]Snapshot, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				snap, err := s.ResolveByQuery(ctx, "Essen")
				require.NoError(t, err)
				results[i] = snap
			}(i)
		}

		// Let both goroutines reach the flight before the fetch completes.
		time.Sleep(50 * time.Millisecond)
		close(weather.block)
		wg.Wait()

		assert.Equal(t, int32(1), weather.currentCalls.Load())
		assert.Equal(t, results[0], results[1])
	})
}

func TestPublishOrdering(t *testing.T) {
	s, _ := newTestStore(t, &fakeResolver{}, testWeather(), nil)

	older := Snapshot{Location: testLocation(), UpdatedAt: testTime}
	newer := Snapshot{
		Location:  domain.ResolvedLocation{Name: "Dortmund", Coordinates: domain.Coordinates{Lat: 51.51, Lon: 7.46}},
		UpdatedAt: testTime.Add(time.Second),
	}

	s.publish(2, newer)
	s.publish(1, older)

	published, ok := s.Published()
	require.True(t, ok)
	assert.Equal(t, "Dortmund", published.Location.Name, "older sequence must never supersede a newer publish")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("fails with no resolved location", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{}, testWeather(), nil)
		_, err := s.Refresh(ctx, "stale")
		require.Error(t, err)
	})

	t.Run("reuses the published location without re-resolving", func(t *testing.T) {
		resolver := &fakeResolver{loc: testLocation()}
		s, _ := newTestStore(t, resolver, testWeather(), nil)

		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		snap, err := s.Refresh(ctx, "stale")
		require.NoError(t, err)

		assert.Equal(t, "Essen", snap.Location.Name)
		assert.Equal(t, int32(1), resolver.searchCalls.Load())
	})
}

func TestStaleness(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store is not stale", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{}, testWeather(), nil)
		assert.False(t, s.IsStale())
	})

	t.Run("snapshot goes stale after the threshold", func(t *testing.T) {
		s, clock := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), nil)
		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		assert.False(t, s.IsStale())
		clock.Advance(16 * time.Minute)
		assert.True(t, s.IsStale())
	})

	t.Run("consumer activity window", func(t *testing.T) {
		s, clock := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), nil)
		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		assert.False(t, s.ConsumerActive(5*time.Minute), "no reads yet")

		s.Published()
		assert.True(t, s.ConsumerActive(5*time.Minute))

		clock.Advance(6 * time.Minute)
		assert.False(t, s.ConsumerActive(5*time.Minute))
	})
}

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{}, testWeather(), nil)

		_, ok := s.Current()
		assert.False(t, ok)
		assert.Nil(t, s.Hourly(0))
		assert.Nil(t, s.Daily(0))
		_, ok = s.TodayForecast()
		assert.False(t, ok)
		assert.Error(t, s.CheckReadiness(ctx))
	})

	t.Run("hourly and daily respect the limit", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), nil)
		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		all := s.Hourly(0)
		require.NotEmpty(t, all)
		assert.Len(t, s.Hourly(1), 1)
		assert.Len(t, s.Daily(1), 1)
	})

	t.Run("today summarizes current plus remaining hourly entries", func(t *testing.T) {
		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), nil)
		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		day, ok := s.TodayForecast()
		require.True(t, ok)

		// Down-sampling keeps the +1h and +4h entries; min/max span the
		// current temperature and those.
		assert.Equal(t, "2026-01-12", day.Date.Format("2006-01-02"))
		assert.Equal(t, -2.0, day.MinTemp)
		assert.Equal(t, 4.0, day.MaxTemp)
		assert.InDelta(t, 1.8, day.Precipitation, 0.001)
		assert.Equal(t, domain.ConditionCloudy, day.Condition)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("restores a valid persisted snapshot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		persist := NewFileSnapshots(path)
		require.NoError(t, persist.Save(Snapshot{Location: testLocation(), UpdatedAt: testTime.Add(-30 * time.Minute)}))

		s, _ := newTestStore(t, &fakeResolver{}, testWeather(), persist)
		s.Restore()

		published, ok := s.Published()
		require.True(t, ok)
		assert.Equal(t, "Essen", published.Location.Name)
		assert.NoError(t, s.CheckReadiness(ctx))
	})

	t.Run("stale persisted snapshot leaves the store empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		persist := NewFileSnapshots(path)
		require.NoError(t, persist.Save(Snapshot{Location: testLocation(), UpdatedAt: testTime.Add(-2 * time.Hour)}))

		s, _ := newTestStore(t, &fakeResolver{}, testWeather(), persist)
		s.Restore()

		_, ok := s.Published()
		assert.False(t, ok)
	})

	t.Run("published snapshots are persisted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		persist := NewFileSnapshots(path)

		s, _ := newTestStore(t, &fakeResolver{loc: testLocation()}, testWeather(), persist)
		_, err := s.ResolveByQuery(ctx, "Essen")
		require.NoError(t, err)

		loaded, err := persist.Load(testTime, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "Essen", loaded.Location.Name)
	})
}
