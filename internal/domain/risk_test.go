package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIceRisk(t *testing.T) {
	tests := []struct {
		name                   string
		temp, precip, humidity float64
		expected               IceRiskLevel
	}{
		{"freezing with precipitation", -1, 1, 50, IceRiskHigh},
		{"deep frost without precipitation", -5, 0, 40, IceRiskHigh},
		{"freezing and humid", -1, 0, 85, IceRiskMedium},
		{"freezing and dry", -1, 0, 50, IceRiskMedium},
		{"near freezing with precipitation", 2, 1, 50, IceRiskMedium},
		{"mild and dry", 1, 0, 50, IceRiskLow},
		{"warm with rain", 8, 3, 70, IceRiskLow},
		{"boundary at exactly zero", 0, 0, 50, IceRiskMedium},
		{"boundary at exactly three with rain", 3, 0.5, 50, IceRiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk := ComputeIceRisk(tt.temp, tt.precip, tt.humidity)

			assert.Equal(t, tt.expected, risk.Level)
			assert.NotEmpty(t, risk.Advisory)
		})
	}
}

func hour(ts time.Time, temp, precip float64) HourlyForecast {
	return HourlyForecast{Time: ts, Temperature: temp, Precipitation: precip}
}

func TestPredictSnowfall(t *testing.T) {
	now := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)

	t.Run("window with start and end", func(t *testing.T) {
		hourly := []HourlyForecast{
			hour(now.Add(1*time.Hour), -1, 0.5),
			hour(now.Add(2*time.Hour), -1, 0.3),
			hour(now.Add(3*time.Hour), 3, 0),
		}

		pred := PredictSnowfall(hourly, now)

		require.True(t, pred.WillSnow)
		require.NotNil(t, pred.Start)
		require.NotNil(t, pred.End)
		assert.Equal(t, now.Add(1*time.Hour), *pred.Start)
		assert.Equal(t, now.Add(3*time.Hour), *pred.End)
		assert.InDelta(t, 0.8, pred.TotalAmountCm, 0.001)
	})

	t.Run("no snow when too warm", func(t *testing.T) {
		hourly := []HourlyForecast{
			hour(now.Add(1*time.Hour), 5, 2),
			hour(now.Add(2*time.Hour), 4, 1),
		}

		pred := PredictSnowfall(hourly, now)

		assert.False(t, pred.WillSnow)
		assert.Nil(t, pred.Start)
		assert.Nil(t, pred.End)
		assert.Zero(t, pred.TotalAmountCm)
	})

	t.Run("window still open at horizon end", func(t *testing.T) {
		hourly := []HourlyForecast{
			hour(now.Add(22*time.Hour), -2, 1),
			hour(now.Add(23*time.Hour), -2, 1),
		}

		pred := PredictSnowfall(hourly, now)

		require.True(t, pred.WillSnow)
		assert.Equal(t, now.Add(22*time.Hour), *pred.Start)
		assert.Equal(t, now.Add(23*time.Hour), *pred.End)
		assert.InDelta(t, 2.0, pred.TotalAmountCm, 0.001)
	})

	t.Run("only the first window is reported", func(t *testing.T) {
		hourly := []HourlyForecast{
			hour(now.Add(1*time.Hour), -1, 1),
			hour(now.Add(2*time.Hour), 5, 0),
			hour(now.Add(5*time.Hour), -1, 3),
		}

		pred := PredictSnowfall(hourly, now)

		require.True(t, pred.WillSnow)
		assert.Equal(t, now.Add(1*time.Hour), *pred.Start)
		assert.Equal(t, now.Add(2*time.Hour), *pred.End)
		assert.InDelta(t, 1.0, pred.TotalAmountCm, 0.001)
	})

	t.Run("samples past the 24h horizon are ignored", func(t *testing.T) {
		hourly := []HourlyForecast{hour(now.Add(30*time.Hour), -5, 10)}
		assert.False(t, PredictSnowfall(hourly, now).WillSnow)
	})

	t.Run("accumulation factor scales with temperature", func(t *testing.T) {
		hourly := []HourlyForecast{
			hour(now.Add(1*time.Hour), -2, 1),  // factor 10
			hour(now.Add(2*time.Hour), 0.5, 1), // factor 8
			hour(now.Add(3*time.Hour), 1.5, 1), // factor 7
			hour(now.Add(4*time.Hour), 5, 0),
		}

		pred := PredictSnowfall(hourly, now)

		require.True(t, pred.WillSnow)
		assert.InDelta(t, 2.5, pred.TotalAmountCm, 0.001)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.False(t, PredictSnowfall(nil, now).WillSnow)
	})
}

func TestWinterServiceRequired(t *testing.T) {
	tests := []struct {
		name         string
		temp, precip float64
		expected     bool
	}{
		{"below freezing without precipitation", -0.5, 0, true},
		{"near freezing with precipitation", 1.5, 0.5, true},
		{"mild with heavy rain", 3, 5, false},
		{"near freezing but dry", 1.5, 0.1, false},
		{"exactly zero", 0, 0, true},
		{"exactly two with precipitation", 2, 0.3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WinterServiceRequired(tt.temp, tt.precip))
		})
	}
}
