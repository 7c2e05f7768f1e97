// Package load forecasts household consumption from hour-of-day,
// day-of-week, and seasonal profiles learned from historical telemetry.
package load

import (
	"context"
	"log/slog"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/rolling"
	"github.com/gridsage/gridsage/pkg/stats"
	"github.com/gridsage/gridsage/pkg/types"
)

const (
	// MinSamples is the training threshold.
	MinSamples = 30

	// TrendBufferHours caps the rolling trend window at 30 days.
	TrendBufferHours = 720

	// FloorW is the minimum forecast; a household never draws less.
	FloorW = 50.0

	trendRatioMin = 0.5
	trendRatioMax = 1.5

	specialDayThreshold = 0.30
	specialDayFactor    = 0.7

	fallbackConfidence = 0.4
)

// holidayDays is a fixed calendar heuristic for bucketing low-consumption
// days. Keys are MM-DD.
var holidayDays = map[string]string{
	"01-01": "new year",
	"05-01": "labour day",
	"07-04": "independence day",
	"12-24": "christmas eve",
	"12-25": "christmas",
	"12-26": "boxing day",
	"12-31": "new year's eve",
}

type hourAggregate struct {
	sum   float64
	count int
}

func (a *hourAggregate) add(v float64) {
	a.sum += v
	a.count++
}

func (a *hourAggregate) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Forecaster owns the consumption models. Train once, query many.
type Forecaster struct {
	trained     bool
	sampleCount int

	weekdayHourly map[int]*hourAggregate
	weekendHourly map[int]*hourAggregate
	dowHourly     map[time.Weekday]map[int]*hourAggregate
	seasonal      map[time.Month]float64 // month avg / overall avg
	specialDays   map[string]string      // MM-DD -> bucket label

	// recent observations feed trend analysis only
	recent *rolling.Buffer[types.Sample]
}

// Status reports training state for observability.
type Status struct {
	Trained     bool `json:"trained"`
	Samples     int  `json:"samples"`
	SpecialDays int  `json:"specialDays"`
	RecentCount int  `json:"recentCount"`
}

// New creates an untrained Forecaster.
func New() *Forecaster {
	return &Forecaster{
		recent: rolling.New[types.Sample](TrendBufferHours),
	}
}

// Train rebuilds all consumption models from load samples. Fewer than
// MinSamples returns false and leaves prior state untouched.
func (f *Forecaster) Train(ctx context.Context, samples []types.Sample) bool {
	if len(samples) < MinSamples {
		log.Ctx(ctx).WarnContext(ctx, "not enough load samples to train",
			slog.Int("samples", len(samples)),
			slog.Int("required", MinSamples),
		)
		return false
	}

	weekday := make(map[int]*hourAggregate)
	weekend := make(map[int]*hourAggregate)
	dow := make(map[time.Weekday]map[int]*hourAggregate)
	monthSums := make(map[time.Month]*hourAggregate)
	var overall hourAggregate

	for _, s := range samples {
		h := s.Timestamp.Hour()
		wd := s.Timestamp.Weekday()

		bucket := weekday
		if wd == time.Saturday || wd == time.Sunday {
			bucket = weekend
		}
		if bucket[h] == nil {
			bucket[h] = &hourAggregate{}
		}
		bucket[h].add(s.Power)

		if dow[wd] == nil {
			dow[wd] = make(map[int]*hourAggregate)
		}
		if dow[wd][h] == nil {
			dow[wd][h] = &hourAggregate{}
		}
		dow[wd][h].add(s.Power)

		m := s.Timestamp.Month()
		if monthSums[m] == nil {
			monthSums[m] = &hourAggregate{}
		}
		monthSums[m].add(s.Power)
		overall.add(s.Power)
	}

	seasonal := make(map[time.Month]float64, len(monthSums))
	if avg := overall.mean(); avg > 0 {
		for m, a := range monthSums {
			seasonal[m] = a.mean() / avg
		}
	}

	f.weekdayHourly = weekday
	f.weekendHourly = weekend
	f.dowHourly = dow
	f.seasonal = seasonal
	f.specialDays = findSpecialDays(history.GroupDaily(types.Dataset{Load: samples}))
	f.sampleCount = len(samples)
	f.trained = true

	log.Ctx(ctx).InfoContext(ctx, "load forecaster trained",
		slog.Int("samples", len(samples)),
		slog.Int("specialDays", len(f.specialDays)),
	)
	return true
}

// findSpecialDays flags days whose total consumption falls at least 30%
// below the dataset average and buckets the ones that land on a known
// calendar holiday.
func findSpecialDays(profiles []history.DailyProfile) map[string]string {
	if len(profiles) == 0 {
		return nil
	}
	totals := make([]float64, len(profiles))
	for i, p := range profiles {
		totals[i] = stats.Sum(p.LoadHourly[:])
	}
	avg := stats.Mean(totals)
	if avg <= 0 {
		return nil
	}

	out := make(map[string]string)
	for i, p := range profiles {
		if totals[i] > avg*(1-specialDayThreshold) {
			continue
		}
		key := p.Date.Format("01-02")
		if label, ok := holidayDays[key]; ok {
			out[key] = label
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Predict forecasts hourly consumption starting at start. The result is
// never below FloorW.
func (f *Forecaster) Predict(ctx context.Context, start time.Time, hours int) []types.Forecast {
	if hours <= 0 {
		hours = 24
	}
	out := make([]types.Forecast, 0, hours)

	trend := f.recentTrendRatio()

	for i := 0; i < hours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)

		if !f.trained {
			out = append(out, types.Forecast{
				Timestamp:  t,
				Power:      floor(fallbackCurve(t)),
				Confidence: fallbackConfidence,
			})
			continue
		}

		power, confidence := f.modelValue(t)
		out = append(out, types.Forecast{
			Timestamp:  t,
			Power:      floor(power * trend),
			Confidence: confidence,
		})
	}

	log.Ctx(ctx).DebugContext(ctx, "load forecast generated",
		slog.Int("hours", hours),
		slog.Float64("trendRatio", trend),
		slog.Bool("trained", f.trained),
	)
	return out
}

// modelValue combines the hourly base with day-shape, seasonal, and
// special-day adjustments and derives the confidence from which models
// contributed.
func (f *Forecaster) modelValue(t time.Time) (float64, float64) {
	h := t.Hour()
	wd := t.Weekday()
	confidence := 0.6

	bucket := f.weekdayHourly
	if wd == time.Saturday || wd == time.Sunday {
		bucket = f.weekendHourly
	}

	var base float64
	if a, ok := bucket[h]; ok && a.count > 0 {
		base = a.mean()
		confidence += 0.1
	} else {
		base = fallbackCurve(t)
	}

	// daily shape: this weekday's hour value relative to its whole-day mean
	if hourlies, ok := f.dowHourly[wd]; ok {
		var daySum float64
		dayCount := 0
		for _, a := range hourlies {
			daySum += a.mean()
			dayCount++
		}
		if a, ok := hourlies[h]; ok && a.count > 0 && dayCount > 0 && daySum > 0 {
			dayMean := daySum / float64(dayCount)
			base *= a.mean() / dayMean
			confidence += 0.1
		}
	}

	if factor, ok := f.seasonal[t.Month()]; ok && factor > 0 {
		base *= factor
		confidence += 0.1
	}

	if _, ok := f.specialDays[t.Format("01-02")]; ok {
		base *= specialDayFactor
	}

	if confidence > 0.9 {
		confidence = 0.9
	}
	return base, confidence
}

// recentTrendRatio compares the rolling window's actual consumption with
// the model expectation for the same hours, clamped to [0.5,1.5].
func (f *Forecaster) recentTrendRatio() float64 {
	if !f.trained || f.recent.Len() == 0 {
		return 1.0
	}
	var actual, expected float64
	for _, s := range f.recent.Values() {
		h := s.Timestamp.Hour()
		bucket := f.weekdayHourly
		if wd := s.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			bucket = f.weekendHourly
		}
		a, ok := bucket[h]
		if !ok || a.count == 0 || a.mean() <= 0 {
			continue
		}
		actual += s.Power
		expected += a.mean()
	}
	if expected <= 0 {
		return 1.0
	}
	ratio := actual / expected
	if ratio < trendRatioMin {
		return trendRatioMin
	}
	if ratio > trendRatioMax {
		return trendRatioMax
	}
	return ratio
}

// fallbackCurve is the fixed household heuristic used when no model
// applies: a morning bump, an evening peak, and a night trough, with
// weekends shifted slightly up.
func fallbackCurve(t time.Time) float64 {
	var base float64
	switch h := t.Hour(); {
	case h >= 0 && h < 6:
		base = 200
	case h >= 6 && h < 9:
		base = 600
	case h >= 9 && h < 17:
		base = 400
	case h >= 17 && h < 22:
		base = 800
	default:
		base = 300
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		base *= 1.1
	}
	return base
}

func floor(w float64) float64 {
	if w < FloorW {
		return FloorW
	}
	return w
}

// UpdateModel appends a fresh observation to the rolling trend buffer.
func (f *Forecaster) UpdateModel(point types.Sample) {
	f.recent.Append(point)
}

// GetStatus reports training state and model sizes.
func (f *Forecaster) GetStatus() Status {
	return Status{
		Trained:     f.trained,
		Samples:     f.sampleCount,
		SpecialDays: len(f.specialDays),
		RecentCount: f.recent.Len(),
	}
}

// Reset discards all learned state including the rolling buffer.
func (f *Forecaster) Reset() {
	f.trained = false
	f.sampleCount = 0
	f.weekdayHourly = nil
	f.weekendHourly = nil
	f.dowHourly = nil
	f.seasonal = nil
	f.specialDays = nil
	f.recent.Reset()
}
