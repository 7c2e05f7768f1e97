package history

import (
	"sort"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
)

// DailyProfile is one calendar day of telemetry reduced to hourly averages.
// Rebuilt fully on each training pass, never mutated incrementally.
type DailyProfile struct {
	Date        time.Time   `json:"date"` // midnight, local time of the samples
	SolarHourly [24]float64 `json:"solarHourly"`
	LoadHourly  [24]float64 `json:"loadHourly"`
	SolarCount  [24]int     `json:"-"`
	LoadCount   [24]int     `json:"-"`
}

// Weekend reports whether the profile's day falls on a weekend.
func (p DailyProfile) Weekend() bool {
	wd := p.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// GroupDaily buckets the dataset's samples into per-day hourly averages.
// Input order does not matter; the result is sorted by date ascending.
func GroupDaily(ds types.Dataset) []DailyProfile {
	byDay := make(map[time.Time]*DailyProfile)

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	get := func(t time.Time) *DailyProfile {
		d := day(t)
		p, ok := byDay[d]
		if !ok {
			p = &DailyProfile{Date: d}
			byDay[d] = p
		}
		return p
	}

	// accumulate sums first, divide once per hour afterwards
	for _, s := range ds.Solar {
		p := get(s.Timestamp)
		h := s.Timestamp.Hour()
		p.SolarHourly[h] += s.Power
		p.SolarCount[h]++
	}
	for _, s := range ds.Load {
		p := get(s.Timestamp)
		h := s.Timestamp.Hour()
		p.LoadHourly[h] += s.Power
		p.LoadCount[h]++
	}

	out := make([]DailyProfile, 0, len(byDay))
	for _, p := range byDay {
		for h := 0; h < 24; h++ {
			if p.SolarCount[h] > 0 {
				p.SolarHourly[h] /= float64(p.SolarCount[h])
			}
			if p.LoadCount[h] > 0 {
				p.LoadHourly[h] /= float64(p.LoadCount[h])
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortSamples orders samples by timestamp ascending, in place.
func SortSamples(samples []types.Sample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}
