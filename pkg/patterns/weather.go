package patterns

import (
	"math"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/stats"
)

// buildWeatherBuckets classifies every day into a weather-like class from
// its solar peak, total, and variance, then averages each class's curve
// and records its empirical occurrence probability.
func buildWeatherBuckets(profiles []history.DailyProfile) map[WeatherClass]*WeatherBucket {
	if len(profiles) == 0 {
		return nil
	}

	// dataset reference values for the classification thresholds
	var maxPeak, sumVar, sumTotal float64
	for _, p := range profiles {
		if peak := stats.Max(p.SolarHourly[:]); peak > maxPeak {
			maxPeak = peak
		}
		sumVar += stats.Variance(p.SolarHourly[:])
		sumTotal += stats.Sum(p.SolarHourly[:])
	}
	avgVar := sumVar / float64(len(profiles))
	avgTotal := sumTotal / float64(len(profiles))

	buckets := make(map[WeatherClass]*WeatherBucket)
	for _, p := range profiles {
		class := classifyDayWeather(p, maxPeak, avgVar, avgTotal)
		b, ok := buckets[class]
		if !ok {
			b = &WeatherBucket{Class: class}
			buckets[class] = b
		}
		b.SampleCount++
		for h := 0; h < 24; h++ {
			b.SolarCurve[h] += p.SolarHourly[h]
		}
	}
	for _, b := range buckets {
		for h := 0; h < 24; h++ {
			b.SolarCurve[h] /= float64(b.SampleCount)
		}
		b.Probability = float64(b.SampleCount) / float64(len(profiles))
	}
	return buckets
}

func classifyDayWeather(p history.DailyProfile, maxPeak, avgVar, avgTotal float64) WeatherClass {
	peak := stats.Max(p.SolarHourly[:])
	total := stats.Sum(p.SolarHourly[:])
	variance := stats.Variance(p.SolarHourly[:])
	switch {
	case maxPeak > 0 && peak >= 0.65*maxPeak && variance <= 1.2*avgVar:
		return WeatherSunny
	case avgTotal > 0 && total <= 0.25*avgTotal:
		return WeatherOvercast
	case avgVar > 0 && variance > avgVar:
		return WeatherPartlyCloudy
	default:
		return WeatherCloudy
	}
}

// PredictWeather returns the highest-probability weather bucket for the
// given time. Confidence is the bucket probability scaled by sample
// count over 50 and capped at 0.7. Untrained detectors return a
// zero-class prediction with confidence 0.
func (d *Detector) PredictWeather(_ time.Time) WeatherPrediction {
	var best *WeatherBucket
	totalSamples := 0
	for _, b := range d.weather {
		totalSamples += b.SampleCount
		if best == nil || b.Probability > best.Probability {
			best = b
		}
	}
	if best == nil {
		return WeatherPrediction{}
	}
	conf := best.Probability * math.Min(1, float64(totalSamples)/50)
	if conf > 0.7 {
		conf = 0.7
	}
	return WeatherPrediction{
		Class:       best.Class,
		Probability: best.Probability,
		Confidence:  conf,
	}
}
