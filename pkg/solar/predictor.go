// Package solar forecasts photovoltaic generation by combining an
// astronomical sun-position model with patterns learned from historical
// telemetry. It works stand-alone with a fallback curve when untrained.
package solar

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/rolling"
	"github.com/gridsage/gridsage/pkg/stats"
	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	// MinSamples is the training threshold.
	MinSamples = 30

	// RecentBufferHours caps the rolling trend window at 7 days.
	RecentBufferHours = 168

	seasonalWeight = 0.4
	hourlyWeight   = 0.3

	trendRatioMin = 0.3
	trendRatioMax = 1.7

	fallbackPeakW       = 2000.0
	fallbackConfidence  = 0.3
	untrainedBellSigma  = 3.5
	untrainedBellCenter = 13.0
)

type aggregate struct {
	sum   float64
	count int
}

func (a *aggregate) add(v float64) {
	a.sum += v
	a.count++
}

func (a *aggregate) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// archetype is a day class derived independently of the pattern detector.
type archetype struct {
	curve [24]float64
	count int
}

// Predictor owns the solar forecasting models. Train once, query many.
type Predictor struct {
	latitude float64

	trained     bool
	sampleCount int
	seasonal    map[time.Month]map[int]*aggregate // month -> hour
	hourly      map[int]*aggregate
	archetypes  map[string]*archetype // sunny / cloudy / mixed

	// recent observations feed trend analysis only; they are never
	// folded back into the seasonal or hourly models
	recent *rolling.Buffer[types.Sample]
}

// Status reports training state for observability.
type Status struct {
	Trained     bool    `json:"trained"`
	Samples     int     `json:"samples"`
	Months      int     `json:"months"`
	Hours       int     `json:"hours"`
	Archetypes  int     `json:"archetypes"`
	RecentCount int     `json:"recentCount"`
	Latitude    float64 `json:"latitude"`
}

// Configured sets up a Predictor from flags.
func Configured() *Predictor {
	p := New(52)
	lat := 52.0
	lflag.JSON(&lat, "latitude", lat, "Site latitude in degrees, used for sun-position math")
	lflag.Do(func() {
		p.latitude = lat
	})
	return p
}

// New creates a Predictor for the given latitude.
func New(latitude float64) *Predictor {
	return &Predictor{
		latitude: latitude,
		recent:   rolling.New[types.Sample](RecentBufferHours),
	}
}

// Train rebuilds the seasonal, hourly, and archetype models from solar
// samples. Fewer than MinSamples returns false and leaves prior state
// untouched.
func (p *Predictor) Train(ctx context.Context, samples []types.Sample) bool {
	if len(samples) < MinSamples {
		log.Ctx(ctx).WarnContext(ctx, "not enough solar samples to train",
			slog.Int("samples", len(samples)),
			slog.Int("required", MinSamples),
		)
		return false
	}

	seasonal := make(map[time.Month]map[int]*aggregate)
	hourly := make(map[int]*aggregate)
	for _, s := range samples {
		m, h := s.Timestamp.Month(), s.Timestamp.Hour()
		if seasonal[m] == nil {
			seasonal[m] = make(map[int]*aggregate)
		}
		if seasonal[m][h] == nil {
			seasonal[m][h] = &aggregate{}
		}
		seasonal[m][h].add(s.Power)
		if hourly[h] == nil {
			hourly[h] = &aggregate{}
		}
		hourly[h].add(s.Power)
	}

	p.seasonal = seasonal
	p.hourly = hourly
	p.archetypes = buildArchetypes(history.GroupDaily(types.Dataset{Solar: samples}))
	p.sampleCount = len(samples)
	p.trained = true

	log.Ctx(ctx).InfoContext(ctx, "solar predictor trained",
		slog.Int("samples", len(samples)),
		slog.Int("months", len(seasonal)),
	)
	return true
}

// buildArchetypes classifies days into sunny/cloudy/mixed by peak and
// variance relative to the dataset, averaging each class's curve.
func buildArchetypes(profiles []history.DailyProfile) map[string]*archetype {
	if len(profiles) == 0 {
		return nil
	}
	var maxPeak float64
	for _, pr := range profiles {
		if peak := stats.Max(pr.SolarHourly[:]); peak > maxPeak {
			maxPeak = peak
		}
	}
	out := make(map[string]*archetype)
	for _, pr := range profiles {
		peak := stats.Max(pr.SolarHourly[:])
		variance := stats.Variance(pr.SolarHourly[:])
		mean := stats.Mean(pr.SolarHourly[:])

		name := "mixed"
		switch {
		case maxPeak > 0 && peak >= 0.7*maxPeak:
			name = "sunny"
		case mean > 0 && math.Sqrt(variance)/math.Max(mean, 1) > 1.5:
			name = "mixed"
		case maxPeak > 0 && peak < 0.35*maxPeak:
			name = "cloudy"
		}

		a, ok := out[name]
		if !ok {
			a = &archetype{}
			out[name] = a
		}
		a.count++
		for h := 0; h < 24; h++ {
			a.curve[h] += pr.SolarHourly[h]
		}
	}
	for _, a := range out {
		for h := 0; h < 24; h++ {
			a.curve[h] /= float64(a.count)
		}
	}
	return out
}

// Predict forecasts hourly solar generation starting at start. Night
// hours are always 0 because negative sun elevation clamps the
// production factor to 0.
func (p *Predictor) Predict(ctx context.Context, start time.Time, hours int) []types.Forecast {
	if hours <= 0 {
		hours = 24
	}
	out := make([]types.Forecast, 0, hours)

	trend := p.recentTrendRatio()
	match := p.patternMatchFactor()

	for i := 0; i < hours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		factor := ElevationFactor(p.latitude, t)

		if !p.trained {
			out = append(out, types.Forecast{
				Timestamp:  t,
				Power:      fallbackCurve(t) * factor,
				Confidence: fallbackConfidence,
			})
			continue
		}

		sv, hasSeasonal := p.seasonalValue(t)
		hv, hasHourly := p.hourlyValue(t)

		var base float64
		switch {
		case hasSeasonal && hasHourly:
			base = seasonalWeight*sv + hourlyWeight*hv
		case hasSeasonal:
			base = (seasonalWeight + hourlyWeight) * sv
		case hasHourly:
			base = (seasonalWeight + hourlyWeight) * hv
		default:
			base = fallbackCurve(t)
		}

		power := base * factor * trend * match
		if power < 0 {
			power = 0
		}

		confidence := 0.5
		if factor > 0 {
			confidence += 0.15
		}
		if hasSeasonal {
			confidence += 0.15
		}
		if hasHourly {
			confidence += 0.15
		}
		if confidence > 0.95 {
			confidence = 0.95
		}

		out = append(out, types.Forecast{Timestamp: t, Power: power, Confidence: confidence})
	}

	log.Ctx(ctx).DebugContext(ctx, "solar forecast generated",
		slog.Int("hours", hours),
		slog.Float64("trendRatio", trend),
		slog.Float64("patternMatch", match),
		slog.Bool("trained", p.trained),
	)
	return out
}

func (p *Predictor) seasonalValue(t time.Time) (float64, bool) {
	hours, ok := p.seasonal[t.Month()]
	if !ok {
		return 0, false
	}
	a, ok := hours[t.Hour()]
	if !ok || a.count == 0 {
		return 0, false
	}
	return a.mean(), true
}

func (p *Predictor) hourlyValue(t time.Time) (float64, bool) {
	a, ok := p.hourly[t.Hour()]
	if !ok || a.count == 0 {
		return 0, false
	}
	return a.mean(), true
}

// recentTrendRatio compares the rolling window's actual production with
// the seasonal expectation for the same hours, clamped to [0.3,1.7].
func (p *Predictor) recentTrendRatio() float64 {
	if !p.trained || p.recent.Len() == 0 {
		return 1.0
	}
	var actual, expected float64
	for _, s := range p.recent.Values() {
		ev, ok := p.seasonalValue(s.Timestamp)
		if !ok {
			ev, ok = p.hourlyValue(s.Timestamp)
		}
		if !ok || ev <= 0 {
			continue
		}
		actual += s.Power
		expected += ev
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

// patternMatchFactor looks at the variance of the last 3 observations:
// steady output boosts toward the sunny class, jumpy output damps toward
// cloudy.
func (p *Predictor) patternMatchFactor() float64 {
	last := p.recent.Last(3)
	if len(last) < 3 {
		return 1.0
	}
	powers := make([]float64, len(last))
	for i, s := range last {
		powers[i] = s.Power
	}
	mean := stats.Mean(powers)
	if mean <= 0 {
		return 1.0
	}
	cv := stats.StdDev(powers) / mean
	switch {
	case cv < 0.15:
		return 1.15
	case cv > 0.5:
		return 0.8
	default:
		return 1.0
	}
}

// fallbackCurve is the fixed daylight bell used when no model applies.
func fallbackCurve(t time.Time) float64 {
	h := float64(t.Hour())
	return fallbackPeakW * math.Exp(-math.Pow(h-untrainedBellCenter, 2)/(2*untrainedBellSigma*untrainedBellSigma))
}

// UpdateModel appends a fresh observation to the rolling trend buffer.
// The seasonal and hourly models are not retrained from it.
func (p *Predictor) UpdateModel(point types.Sample) {
	p.recent.Append(point)
}

// GetStatus reports training state and model sizes.
func (p *Predictor) GetStatus() Status {
	return Status{
		Trained:     p.trained,
		Samples:     p.sampleCount,
		Months:      len(p.seasonal),
		Hours:       len(p.hourly),
		Archetypes:  len(p.archetypes),
		RecentCount: p.recent.Len(),
		Latitude:    p.latitude,
	}
}

// Reset discards all learned state including the rolling buffer.
func (p *Predictor) Reset() {
	p.trained = false
	p.sampleCount = 0
	p.seasonal = nil
	p.hourly = nil
	p.archetypes = nil
	p.recent.Reset()
}
