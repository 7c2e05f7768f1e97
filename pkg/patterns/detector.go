// Package patterns learns archetypes from historical solar and load
// telemetry: clustered day shapes, weekly and seasonal rhythms,
// weather-like day classes, and anomalous days. It consumes only the
// historical dataset; no weather API is involved.
package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/stats"
	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	// MinSolarSamples is the training threshold; below it AnalyzePatterns
	// fails gracefully and leaves prior state untouched.
	MinSolarSamples = 100

	defaultClusterCount = 5

	// seasonal transitions are flagged on month-over-month change above this
	transitionThreshold = 0.20

	anomalyZThreshold = 2.0
)

// PatternType names a clustered day archetype.
type PatternType string

const (
	PatternSunny    PatternType = "sunny"
	PatternCloudy   PatternType = "cloudy"
	PatternVariable PatternType = "variable"
	PatternMixed    PatternType = "mixed"
)

// WeatherClass is an inferred weather-like day bucket.
type WeatherClass string

const (
	WeatherSunny        WeatherClass = "sunny"
	WeatherCloudy       WeatherClass = "cloudy"
	WeatherPartlyCloudy WeatherClass = "partlyCloudy"
	WeatherOvercast     WeatherClass = "overcast"
)

// Cluster is a named day archetype. Read-only to consumers.
type Cluster struct {
	Name        string      `json:"name"`
	Type        PatternType `json:"type"`
	SolarCurve  [24]float64 `json:"solarCurve"`
	LoadCurve   [24]float64 `json:"loadCurve"`
	SampleCount int         `json:"sampleCount"`
	Confidence  float64     `json:"confidence"`
}

// WeeklyPattern holds weekday/weekend hourly averages and how much they differ.
type WeeklyPattern struct {
	WeekdaySolar [24]float64 `json:"weekdaySolar"`
	WeekdayLoad  [24]float64 `json:"weekdayLoad"`
	WeekendSolar [24]float64 `json:"weekendSolar"`
	WeekendLoad  [24]float64 `json:"weekendLoad"`
	Significance float64     `json:"significance"`
}

// MonthTransition marks a month-over-month solar change above the threshold.
type MonthTransition struct {
	From   time.Month `json:"from"`
	To     time.Month `json:"to"`
	Change float64    `json:"change"` // fractional, signed
}

// SeasonalPattern aggregates monthly solar behaviour.
type SeasonalPattern struct {
	MonthlySolarAvg map[time.Month]float64 `json:"monthlySolarAvg"`
	Transitions     []MonthTransition      `json:"transitions"`
	PeakMonth       time.Month             `json:"peakMonth"`
	TroughMonth     time.Month             `json:"troughMonth"`
	CycleStrength   float64                `json:"cycleStrength"` // variance / mean^2
}

// WeatherBucket is the averaged curve and empirical probability of one
// weather-like day class.
type WeatherBucket struct {
	Class       WeatherClass `json:"class"`
	SolarCurve  [24]float64  `json:"solarCurve"`
	SampleCount int          `json:"sampleCount"`
	Probability float64      `json:"probability"`
}

// WeatherPrediction is the most likely weather class for a future day.
type WeatherPrediction struct {
	Class       WeatherClass `json:"class"`
	Probability float64      `json:"probability"`
	Confidence  float64      `json:"confidence"`
}

// RelevantPatterns is the best-effort bundle returned to consumers; any
// sub-model that has not been trained is nil rather than an error.
type RelevantPatterns struct {
	DailyPatterns   []Cluster          `json:"dailyPatterns,omitempty"`
	WeeklyPattern   *WeeklyPattern     `json:"weeklyPattern,omitempty"`
	SeasonalPattern *SeasonalPattern   `json:"seasonalPattern,omitempty"`
	ExpectedWeather *WeatherPrediction `json:"expectedWeather,omitempty"`
}

// Status reports training state for observability.
type Status struct {
	Trained   bool `json:"trained"`
	Days      int  `json:"days"`
	Clusters  int  `json:"clusters"`
	Weather   int  `json:"weatherClasses"`
	Anomalies int  `json:"anomalies"`
}

// Detector owns all derived pattern structures. Train once, query many;
// callers running concurrent evaluation cycles must serialize access.
type Detector struct {
	k   int
	rng *rand.Rand

	trained   bool
	days      int
	clusters  []Cluster
	weekly    *WeeklyPattern
	seasonal  *SeasonalPattern
	weather   map[WeatherClass]*WeatherBucket
	anomalies []types.AnomalyRecord
}

// Configured sets up a Detector from flags.
func Configured() *Detector {
	d := NewDetector(1)
	seed := lflag.Int("pattern-seed", 1, "Seed for day clustering")
	lflag.Do(func() {
		d.rng = rand.New(rand.NewPCG(uint64(*seed), 0))
	})
	return d
}

// NewDetector creates a Detector with a seeded random source so
// clustering is reproducible.
func NewDetector(seed int64) *Detector {
	return &Detector{
		k:   defaultClusterCount,
		rng: rand.New(rand.NewPCG(uint64(seed), 0)),
	}
}

// AnalyzePatterns rebuilds every pattern model from the dataset. It
// requires at least MinSolarSamples solar samples; below that it returns
// false and prior state is untouched. All derived structures are rebuilt
// fully, never incrementally.
func (d *Detector) AnalyzePatterns(ctx context.Context, ds types.Dataset) bool {
	if len(ds.Solar) < MinSolarSamples {
		log.Ctx(ctx).WarnContext(ctx, "not enough solar samples to analyze patterns",
			slog.Int("samples", len(ds.Solar)),
			slog.Int("required", MinSolarSamples),
		)
		return false
	}

	profiles := history.GroupDaily(ds)
	if len(profiles) == 0 {
		return false
	}

	clusters := d.clusterDays(profiles)
	weekly := buildWeeklyPattern(profiles)
	seasonal := buildSeasonalPattern(profiles)
	weather := buildWeatherBuckets(profiles)
	anomalies := detectAnomalies(profiles)

	// swap everything in at once so a failed pass never half-overwrites
	d.clusters = clusters
	d.weekly = weekly
	d.seasonal = seasonal
	d.weather = weather
	d.anomalies = anomalies
	d.days = len(profiles)
	d.trained = true

	log.Ctx(ctx).InfoContext(ctx, "pattern analysis complete",
		slog.Int("days", d.days),
		slog.Int("clusters", len(clusters)),
		slog.Int("anomalies", len(anomalies)),
	)
	return true
}

// dayFeatures builds the 8-dimensional feature vector used for clustering.
func dayFeatures(p history.DailyProfile) []float64 {
	solar := p.SolarHourly[:]
	loads := p.LoadHourly[:]
	peakHour := 0
	for h, v := range p.SolarHourly {
		if v > p.SolarHourly[peakHour] {
			peakHour = h
		}
	}
	return []float64{
		stats.Sum(solar),
		stats.Sum(loads),
		stats.Max(solar),
		stats.Max(loads),
		float64(peakHour),
		stats.Variance(solar),
		stats.Variance(loads),
		float64(p.Date.Weekday()),
	}
}

func (d *Detector) clusterDays(profiles []history.DailyProfile) []Cluster {
	points := make([][]float64, len(profiles))
	for i, p := range profiles {
		points[i] = dayFeatures(p)
	}
	assignments, centroids := kmeans(normalizeFeatures(points), d.k, d.rng)

	clusters := make([]Cluster, len(centroids))
	for i := range clusters {
		clusters[i].Name = fmt.Sprintf("cluster-%d", i)
	}
	for i, ci := range assignments {
		c := &clusters[ci]
		c.SampleCount++
		for h := 0; h < 24; h++ {
			c.SolarCurve[h] += profiles[i].SolarHourly[h]
			c.LoadCurve[h] += profiles[i].LoadHourly[h]
		}
	}

	// dataset-level reference values for the fixed classification thresholds
	var maxPeak, sumVar, sumTotal float64
	for _, p := range points {
		if p[2] > maxPeak {
			maxPeak = p[2]
		}
		sumVar += p[5]
		sumTotal += p[0]
	}
	avgVar := sumVar / float64(len(points))
	avgTotal := sumTotal / float64(len(points))

	for i := range clusters {
		c := &clusters[i]
		if c.SampleCount > 0 {
			for h := 0; h < 24; h++ {
				c.SolarCurve[h] /= float64(c.SampleCount)
				c.LoadCurve[h] /= float64(c.SampleCount)
			}
		}
		c.Type = classifyCluster(c, maxPeak, avgVar, avgTotal)
		c.Confidence = clusterConfidence(c.SampleCount)
	}
	return clusters
}

// classifyCluster maps a cluster's averaged solar curve onto a named
// pattern type using thresholds relative to the dataset.
func classifyCluster(c *Cluster, maxPeak, avgVar, avgTotal float64) PatternType {
	peak := stats.Max(c.SolarCurve[:])
	total := stats.Sum(c.SolarCurve[:])
	variance := stats.Variance(c.SolarCurve[:])
	switch {
	case maxPeak > 0 && peak >= 0.7*maxPeak && variance <= avgVar:
		return PatternSunny
	case avgTotal > 0 && total < 0.3*avgTotal:
		return PatternCloudy
	case avgVar > 0 && variance > 1.5*avgVar:
		return PatternVariable
	default:
		return PatternMixed
	}
}

// clusterConfidence increases monotonically with sample count, capped at 0.9.
func clusterConfidence(samples int) float64 {
	return math.Min(0.9, 0.3+0.03*float64(samples))
}

func buildWeeklyPattern(profiles []history.DailyProfile) *WeeklyPattern {
	w := &WeeklyPattern{}
	var wdCount, weCount [24]int
	for _, p := range profiles {
		for h := 0; h < 24; h++ {
			if p.Weekend() {
				w.WeekendSolar[h] += p.SolarHourly[h]
				w.WeekendLoad[h] += p.LoadHourly[h]
				weCount[h]++
			} else {
				w.WeekdaySolar[h] += p.SolarHourly[h]
				w.WeekdayLoad[h] += p.LoadHourly[h]
				wdCount[h]++
			}
		}
	}
	for h := 0; h < 24; h++ {
		if wdCount[h] > 0 {
			w.WeekdaySolar[h] /= float64(wdCount[h])
			w.WeekdayLoad[h] /= float64(wdCount[h])
		}
		if weCount[h] > 0 {
			w.WeekendSolar[h] /= float64(weCount[h])
			w.WeekendLoad[h] /= float64(weCount[h])
		}
	}

	// normalized mean difference of load between weekday and weekend
	wdMean := stats.Mean(w.WeekdayLoad[:])
	weMean := stats.Mean(w.WeekendLoad[:])
	if base := math.Max(wdMean, weMean); base > 0 {
		w.Significance = math.Abs(wdMean-weMean) / base
	}
	return w
}

func buildSeasonalPattern(profiles []history.DailyProfile) *SeasonalPattern {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, p := range profiles {
		m := p.Date.Month()
		sums[m] += stats.Sum(p.SolarHourly[:])
		counts[m]++
	}

	s := &SeasonalPattern{MonthlySolarAvg: make(map[time.Month]float64, len(sums))}
	var avgs []float64
	for m, sum := range sums {
		avg := sum / float64(counts[m])
		s.MonthlySolarAvg[m] = avg
		avgs = append(avgs, avg)
	}

	// transitions plus peak/trough over the months we actually saw
	var prevAvg float64
	havePrev := false
	for m := time.January; m <= time.December; m++ {
		avg, ok := s.MonthlySolarAvg[m]
		if !ok {
			continue
		}
		if havePrev && prevAvg > 0 {
			change := (avg - prevAvg) / prevAvg
			if math.Abs(change) > transitionThreshold {
				s.Transitions = append(s.Transitions, MonthTransition{From: prevMonth(m, s.MonthlySolarAvg), To: m, Change: change})
			}
		}
		if s.PeakMonth == 0 || avg > s.MonthlySolarAvg[s.PeakMonth] {
			s.PeakMonth = m
		}
		if s.TroughMonth == 0 || avg < s.MonthlySolarAvg[s.TroughMonth] {
			s.TroughMonth = m
		}
		prevAvg = avg
		havePrev = true
	}

	if mean := stats.Mean(avgs); mean > 0 {
		s.CycleStrength = stats.Variance(avgs) / (mean * mean)
	}
	return s
}

// prevMonth returns the closest earlier month present in the model.
func prevMonth(m time.Month, avgs map[time.Month]float64) time.Month {
	for p := m - 1; p >= time.January; p-- {
		if _, ok := avgs[p]; ok {
			return p
		}
	}
	return m
}

// RelevantPatterns returns a best-effort bundle for the given time.
// Missing sub-models come back nil, never as errors.
func (d *Detector) RelevantPatterns(now time.Time) RelevantPatterns {
	out := RelevantPatterns{}
	if len(d.clusters) > 0 {
		out.DailyPatterns = make([]Cluster, len(d.clusters))
		copy(out.DailyPatterns, d.clusters)
	}
	if d.weekly != nil {
		w := *d.weekly
		out.WeeklyPattern = &w
	}
	if d.seasonal != nil {
		s := *d.seasonal
		out.SeasonalPattern = &s
	}
	if p := d.PredictWeather(now); p.Class != "" {
		out.ExpectedWeather = &p
	}
	return out
}

// Anomalies returns the append-only anomaly list from the last training pass.
func (d *Detector) Anomalies() []types.AnomalyRecord {
	out := make([]types.AnomalyRecord, len(d.anomalies))
	copy(out, d.anomalies)
	return out
}

// GetStatus reports training state and model sizes.
func (d *Detector) GetStatus() Status {
	return Status{
		Trained:   d.trained,
		Days:      d.days,
		Clusters:  len(d.clusters),
		Weather:   len(d.weather),
		Anomalies: len(d.anomalies),
	}
}

// Reset discards all learned state.
func (d *Detector) Reset() {
	d.trained = false
	d.days = 0
	d.clusters = nil
	d.weekly = nil
	d.seasonal = nil
	d.weather = nil
	d.anomalies = nil
}
