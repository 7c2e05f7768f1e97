package solar

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSolarDays builds hourly solar samples for n days with a bell-shaped
// daylight curve peaking at the given watts.
func makeSolarDays(start time.Time, days int, peak float64) []types.Sample {
	var out []types.Sample
	for d := 0; d < days; d++ {
		dayStart := start.AddDate(0, 0, d)
		for h := 0; h < 24; h++ {
			ts := dayStart.Add(time.Duration(h) * time.Hour)
			power := 0.0
			if h >= 7 && h <= 19 {
				power = peak * math.Exp(-math.Pow(float64(h)-13, 2)/(2*9))
			}
			out = append(out, types.Sample{Timestamp: ts, Power: power})
		}
	}
	return out
}

func TestTrainInsufficientData(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 1, 3000)[:20]
	assert.False(t, p.Train(context.Background(), samples))
	assert.False(t, p.GetStatus().Trained)
}

func TestTrainBuildsModels(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 10, 3000)
	require.True(t, p.Train(context.Background(), samples))

	st := p.GetStatus()
	assert.True(t, st.Trained)
	assert.Equal(t, 240, st.Samples)
	assert.Equal(t, 1, st.Months)
	assert.Equal(t, 24, st.Hours)
	assert.GreaterOrEqual(t, st.Archetypes, 1)
}

func TestPredictNightIsZero(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 10, 3000)
	require.True(t, p.Train(context.Background(), samples))

	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	fc := p.Predict(context.Background(), start, 4)
	require.Len(t, fc, 4)
	for i, f := range fc {
		assert.Zero(t, f.Power, "hour %d should be dark", i)
	}
}

func TestPredictTrainedMidday(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 14, 3000)
	require.True(t, p.Train(context.Background(), samples))

	start := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	fc := p.Predict(context.Background(), start, 24)
	require.Len(t, fc, 24)

	noon := fc[13]
	assert.Greater(t, noon.Power, 0.0)
	// seasonal and hourly both cover June 13:00 so confidence maxes out
	assert.InDelta(t, 0.95, noon.Confidence, 0.001)
	// daylight forecast stays below the combined-weight model ceiling
	assert.Less(t, noon.Power, 3000*0.7*1.2)
}

func TestPredictUntrainedFallback(t *testing.T) {
	p := New(52)
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	fc := p.Predict(context.Background(), start, 24)
	require.Len(t, fc, 24)

	for _, f := range fc {
		assert.InDelta(t, 0.3, f.Confidence, 0.001)
	}
	assert.Zero(t, fc[2].Power)
	assert.Greater(t, fc[13].Power, 0.0)
}

func TestTrendRatioClamped(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 14, 3000)
	require.True(t, p.Train(context.Background(), samples))

	// feed a week of near-zero production: ratio clamps at the floor
	for d := 0; d < 7; d++ {
		for h := 9; h <= 17; h++ {
			p.UpdateModel(types.Sample{
				Timestamp: time.Date(2025, 6, 16+d, h, 0, 0, 0, time.UTC),
				Power:     10,
			})
		}
	}
	assert.InDelta(t, trendRatioMin, p.recentTrendRatio(), 0.001)
}

func TestPatternMatchFactor(t *testing.T) {
	base := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)

	t.Run("Too Few Observations", func(t *testing.T) {
		p := New(52)
		p.UpdateModel(types.Sample{Timestamp: base, Power: 1000})
		assert.InDelta(t, 1.0, p.patternMatchFactor(), 0.001)
	})

	t.Run("Steady Output Boosts", func(t *testing.T) {
		p := New(52)
		for i := 0; i < 3; i++ {
			p.UpdateModel(types.Sample{Timestamp: base.Add(time.Duration(i) * time.Hour), Power: 2000})
		}
		assert.InDelta(t, 1.15, p.patternMatchFactor(), 0.001)
	})

	t.Run("Jumpy Output Damps", func(t *testing.T) {
		p := New(52)
		for i, w := range []float64{3000, 200, 2800} {
			p.UpdateModel(types.Sample{Timestamp: base.Add(time.Duration(i) * time.Hour), Power: w})
		}
		assert.InDelta(t, 0.8, p.patternMatchFactor(), 0.001)
	})
}

func TestUpdateModelBounded(t *testing.T) {
	p := New(52)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < RecentBufferHours*2; i++ {
		p.UpdateModel(types.Sample{Timestamp: base.Add(time.Duration(i) * time.Hour), Power: 100})
	}
	assert.Equal(t, RecentBufferHours, p.GetStatus().RecentCount)
}

func TestReset(t *testing.T) {
	p := New(52)
	samples := makeSolarDays(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 10, 3000)
	require.True(t, p.Train(context.Background(), samples))
	p.UpdateModel(types.Sample{Timestamp: time.Now(), Power: 500})

	p.Reset()
	st := p.GetStatus()
	assert.False(t, st.Trained)
	assert.Zero(t, st.Samples)
	assert.Zero(t, st.RecentCount)
}
