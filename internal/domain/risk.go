package domain

import "time"

// IceRiskLevel is a qualitative classification of surface freezing danger.
type IceRiskLevel string

const (
	IceRiskLow    IceRiskLevel = "low"
	IceRiskMedium IceRiskLevel = "medium"
	IceRiskHigh   IceRiskLevel = "high"
)

// IceRisk pairs a risk level with the advisory shown to visitors. It is
// derived from current conditions and never stored independently of them.
type IceRisk struct {
	Level    IceRiskLevel `json:"level"`
	Advisory string       `json:"advisory"`
}

// SnowfallPrediction describes the next contiguous snowfall window found in
// the hourly forecast. Start and End are nil when no snowfall is expected.
type SnowfallPrediction struct {
	WillSnow      bool       `json:"will_snow"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	TotalAmountCm float64    `json:"total_amount_cm"`
}

// Snowfall-window conversion factors: mm of precipitation to mm of snow by
// temperature band. Tunable heuristics, preserved verbatim from the website.
const (
	windowFactorFreezing = 10.0 // at or below 0 °C
	windowFactorNearZero = 8.0  // at or below 1 °C
	windowFactorMild     = 7.0  // above 1 °C, at or below 2 °C
)

// ComputeIceRisk classifies icing danger from temperature (°C), precipitation
// (mm), and relative humidity (percent). Branches are evaluated in fixed
// order; the first match wins.
func ComputeIceRisk(temperature, precipitation, humidity float64) IceRisk {
	switch {
	case temperature <= 0 && precipitation > 0:
		return IceRisk{IceRiskHigh, "Akute Glättegefahr durch gefrierenden Niederschlag. Räum- und Streudienst dringend empfohlen."}
	case temperature <= -3:
		return IceRisk{IceRiskHigh, "Starker Frost. Überfrierende Nässe und Reifglätte sind wahrscheinlich."}
	case temperature <= 0 && humidity > 80:
		return IceRisk{IceRiskMedium, "Frost bei hoher Luftfeuchtigkeit. Mit Reifbildung auf Wegen und Flächen rechnen."}
	case temperature <= 0:
		return IceRisk{IceRiskMedium, "Temperaturen im Frostbereich. Glatte Stellen sind möglich."}
	case temperature <= 3 && precipitation > 0:
		return IceRisk{IceRiskMedium, "Niederschlag bei Temperaturen nahe dem Gefrierpunkt. Lokale Glätte nicht ausgeschlossen."}
	default:
		return IceRisk{IceRiskLow, "Derzeit keine erhöhte Glättegefahr."}
	}
}

// PredictSnowfall scans the hourly sequence for the next 24 hours in
// chronological order. A snowing interval opens at the first sample at or
// below 2 °C with precipitation, and closes at the first subsequent sample
// failing that test; that closing sample's time becomes the window end. A
// window still open at the end of the range ends at the last scanned sample.
func PredictSnowfall(hourly []HourlyForecast, now time.Time) SnowfallPrediction {
	horizon := now.Add(24 * time.Hour)

	var pred SnowfallPrediction
	var lastScanned time.Time
	open := false

	for _, h := range hourly {
		if !h.Time.After(now) || h.Time.After(horizon) {
			continue
		}
		lastScanned = h.Time

		snowing := h.Temperature <= 2 && h.Precipitation > 0
		switch {
		case snowing && !open:
			if pred.WillSnow {
				continue // only the first window is reported
			}
			open = true
			pred.WillSnow = true
			start := h.Time
			pred.Start = &start
			pred.TotalAmountCm += hourSnowCm(h)
		case snowing && open:
			pred.TotalAmountCm += hourSnowCm(h)
		case !snowing && open:
			open = false
			end := h.Time
			pred.End = &end
		}
	}

	if open && !lastScanned.IsZero() {
		end := lastScanned
		pred.End = &end
	}
	return pred
}

func hourSnowCm(h HourlyForecast) float64 {
	factor := windowFactorMild
	switch {
	case h.Temperature <= 0:
		factor = windowFactorFreezing
	case h.Temperature <= 1:
		factor = windowFactorNearZero
	}
	return h.Precipitation * factor / 10
}

// WinterServiceRequired is the single boolean the contact wizard consumes to
// decide whether to surface the service call-to-action.
func WinterServiceRequired(temperature, precipitation float64) bool {
	return temperature <= 0 || (temperature <= 2 && precipitation > 0.2)
}
