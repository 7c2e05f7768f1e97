package optimizer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScenarios(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 0))

	t.Run("Empty Dataset", func(t *testing.T) {
		assert.Empty(t, buildScenarios(types.Dataset{}, 10, 200, rng))
	})

	t.Run("Stride And SOC Range", func(t *testing.T) {
		var ds types.Dataset
		start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
		for h := 0; h < 24*4; h++ {
			ts := start.Add(time.Duration(h) * time.Hour)
			ds.Solar = append(ds.Solar, types.Sample{Timestamp: ts, Power: 1200})
			ds.Load = append(ds.Load, types.Sample{Timestamp: ts, Power: 600})
		}

		scenarios := buildScenarios(ds, 10, 200, rng)
		// 4 days, one scenario every 6 hours
		require.Len(t, scenarios, 16)
		for _, sc := range scenarios {
			assert.GreaterOrEqual(t, sc.in.CurrentSOC, 20.0)
			assert.LessOrEqual(t, sc.in.CurrentSOC, 80.0)
			assert.InDelta(t, 600.0, sc.in.LoadPower, 0.001)
		}
	})

	t.Run("Cap Respected", func(t *testing.T) {
		var ds types.Dataset
		start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
		for h := 0; h < 24*30; h++ {
			ts := start.Add(time.Duration(h) * time.Hour)
			ds.Solar = append(ds.Solar, types.Sample{Timestamp: ts, Power: 1200})
			ds.Load = append(ds.Load, types.Sample{Timestamp: ts, Power: 600})
		}
		assert.Len(t, buildScenarios(ds, 10, 50, rng), 50)
	})
}

func TestBuildScenariosLocalDayCurve(t *testing.T) {
	// telemetry in a zone far from UTC: the price curve must still line
	// up with local hours, putting the evening multiplier at 18:00 local
	loc := time.FixedZone("UTC+10", 10*3600)
	var ds types.Dataset
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, loc)
	for h := 0; h < 24*3; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		ds.Solar = append(ds.Solar, types.Sample{Timestamp: ts, Power: 1000})
		ds.Load = append(ds.Load, types.Sample{Timestamp: ts, Power: 600})
	}

	rng := rand.New(rand.NewPCG(1, 0))
	scenarios := buildScenarios(ds, 10, 200, rng)
	require.NotEmpty(t, scenarios)

	sawEvening := false
	for _, sc := range scenarios {
		switch sc.in.Timestamp.Hour() {
		case 18:
			sawEvening = true
			// 1.3x evening multiplier, +/-1 cent noise
			assert.InDelta(t, 13.0, sc.in.GridPriceCents, 1.001)
		case 6, 12:
			assert.InDelta(t, 10.0, sc.in.GridPriceCents, 1.001)
		}
	}
	assert.True(t, sawEvening, "the 6h stride should sample an evening hour")
}
