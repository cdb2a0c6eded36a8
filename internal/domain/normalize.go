package domain

import (
	"fmt"
	"sort"
	"time"
)

// Normalization parameters. The snow conversion factors and the down-sample
// step are pragmatic heuristics carried over from the production website;
// they are tunable, not meteorologically derived.
const (
	// maxHourlySamples bounds the hourly horizon before down-sampling.
	maxHourlySamples = 24

	// hourlyDownsampleStep keeps every third hourly sample, trading forecast
	// density for display compactness.
	hourlyDownsampleStep = 3

	// Snow accumulation factors: mm of precipitation convert to mm of snow
	// depending on temperature, then to centimeters.
	snowFactorFreezing = 10.0 // at or below 0 °C
	snowFactorMild     = 7.0  // above 0 °C, at or below 2 °C

	// Representative daily conditions prefer samples from the daytime window.
	dayWindowStartHour = 8
	dayWindowEndHour   = 18

	dateLayout = "2006-01-02"
)

// conditionPriority ranks conditions for the daily representative pick.
// Codes within one group are equivalent in rank.
var conditionPriority = [][]string{
	{ConditionThunderstorm},
	{ConditionSnow},
	{ConditionRain, ConditionSleet, ConditionHail},
	{ConditionFog},
	{ConditionCloudy},
	{ConditionPartlyCloudy},
	{ConditionClear},
}

// BuildCurrent maps a single raw sample to CurrentConditions. Missing
// precipitation, wind, and humidity default to zero; a missing temperature
// fails with ErrInsufficientData because every downstream risk signal
// depends on it.
func BuildCurrent(sample RawSample, now time.Time) (CurrentConditions, error) {
	if sample.Temperature == nil {
		return CurrentConditions{}, fmt.Errorf("build current conditions: %w: no temperature", ErrInsufficientData)
	}

	temp := *sample.Temperature
	humidity := floatOrZero(sample.Humidity)
	wind := floatOrZero(sample.WindSpeed)

	return CurrentConditions{
		Temperature:              temp,
		FeelsLike:                feelsLike(temp, wind, humidity),
		Condition:                sample.Condition,
		ConditionLabel:           ConditionLabel(sample.Condition),
		Humidity:                 humidity,
		WindSpeed:                wind,
		Precipitation:            floatOrZero(sample.Precipitation),
		PrecipitationProbability: floatOrZero(sample.PrecipitationProbability),
		UpdatedAt:                now,
	}, nil
}

// feelsLike applies a simple wind-chill/heat-index heuristic: cold and windy
// subtracts half the wind speed, warm and humid adds a humidity penalty,
// everything else reads as the plain temperature.
func feelsLike(temp, wind, humidity float64) float64 {
	switch {
	case temp <= 10 && wind > 0:
		return temp - wind/2
	case temp > 20 && humidity > 60:
		return temp + (humidity-60)/10
	default:
		return temp
	}
}

// BuildHourly filters raw samples to those strictly after now, truncates to
// the fixed horizon, and down-samples by keeping every third entry. Samples
// without a temperature are dropped early since they cannot be displayed.
func BuildHourly(samples []RawSample, now time.Time) []HourlyForecast {
	future := make([]RawSample, 0, len(samples))
	for _, s := range samples {
		if !s.Timestamp.After(now) || s.Temperature == nil {
			continue
		}
		future = append(future, s)
	}
	sort.Slice(future, func(i, j int) bool { return future[i].Timestamp.Before(future[j].Timestamp) })

	if len(future) > maxHourlySamples {
		future = future[:maxHourlySamples]
	}

	hourly := make([]HourlyForecast, 0, len(future)/hourlyDownsampleStep+1)
	for i := 0; i < len(future); i += hourlyDownsampleStep {
		s := future[i]
		hourly = append(hourly, HourlyForecast{
			Time:                     s.Timestamp,
			Temperature:              *s.Temperature,
			Condition:                s.Condition,
			ConditionLabel:           ConditionLabel(s.Condition),
			Humidity:                 floatOrZero(s.Humidity),
			WindSpeed:                floatOrZero(s.WindSpeed),
			Precipitation:            floatOrZero(s.Precipitation),
			PrecipitationProbability: floatOrZero(s.PrecipitationProbability),
		})
	}
	return hourly
}

// BuildDaily groups raw samples by their provider-local calendar date and
// summarizes each day strictly after today. The current partial day is never
// included. Days without any temperature sample are skipped entirely.
func BuildDaily(samples []RawSample, now time.Time) []DailyForecast {
	byDate := make(map[string][]RawSample)
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			continue
		}
		today := now.In(s.Timestamp.Location()).Format(dateLayout)
		date := s.Timestamp.Format(dateLayout)
		if date <= today {
			continue
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	daily := make([]DailyForecast, 0, len(dates))
	for _, date := range dates {
		day, ok := summarizeDay(date, byDate[date])
		if !ok {
			continue
		}
		daily = append(daily, day)
	}
	return daily
}

func summarizeDay(date string, samples []RawSample) (DailyForecast, bool) {
	var (
		minTemp, maxTemp float64
		haveTemp         bool
		precipSum        float64
		probSum          float64
		probCount        int
		snowCm           float64
	)

	for _, s := range samples {
		if s.Temperature != nil {
			t := *s.Temperature
			if !haveTemp || t < minTemp {
				minTemp = t
			}
			if !haveTemp || t > maxTemp {
				maxTemp = t
			}
			haveTemp = true
		}
		if s.Precipitation != nil {
			precipSum += *s.Precipitation
		}
		if s.PrecipitationProbability != nil {
			probSum += *s.PrecipitationProbability
			probCount++
		}
		snowCm += sampleSnowCm(s)
	}

	if !haveTemp {
		return DailyForecast{}, false
	}

	avgProb := 0.0
	if probCount > 0 {
		avgProb = probSum / float64(probCount)
	}

	parsed, err := time.ParseInLocation(dateLayout, date, samples[0].Timestamp.Location())
	if err != nil {
		return DailyForecast{}, false
	}

	condition := representativeCondition(samples)

	return DailyForecast{
		Date:                     parsed,
		MinTemp:                  minTemp,
		MaxTemp:                  maxTemp,
		Condition:                condition,
		ConditionLabel:           ConditionLabel(condition),
		Precipitation:            precipSum,
		PrecipitationProbability: avgProb,
		SnowAccumulationCm:       snowCm,
	}, true
}

// sampleSnowCm estimates snow accumulation for one sample: only samples at or
// below 2 °C with measurable precipitation contribute, converted with a
// temperature-dependent factor.
func sampleSnowCm(s RawSample) float64 {
	if s.Temperature == nil || s.Precipitation == nil {
		return 0
	}
	if *s.Temperature > 2 || *s.Precipitation <= 0 {
		return 0
	}
	factor := snowFactorMild
	if *s.Temperature <= 0 {
		factor = snowFactorFreezing
	}
	return *s.Precipitation * factor / 10
}

// representativeCondition picks one condition for the day by scanning the
// fixed priority table, preferring daytime samples when any exist. If no
// sample carries a prioritized condition, the most frequent one wins.
func representativeCondition(samples []RawSample) string {
	candidates := make([]RawSample, 0, len(samples))
	for _, s := range samples {
		hour := s.Timestamp.Hour()
		if s.Condition != "" && hour >= dayWindowStartHour && hour <= dayWindowEndHour {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		for _, s := range samples {
			if s.Condition != "" {
				candidates = append(candidates, s)
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	for _, group := range conditionPriority {
		for _, s := range candidates {
			for _, code := range group {
				if s.Condition == code {
					return s.Condition
				}
			}
		}
	}

	// Unrecognized codes only: fall back to the most frequent one.
	counts := make(map[string]int)
	best := candidates[0].Condition
	for _, s := range candidates {
		counts[s.Condition]++
		if counts[s.Condition] > counts[best] {
			best = s.Condition
		}
	}
	return best
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
