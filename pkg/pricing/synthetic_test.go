package pricing

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCurve(t *testing.T) {
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewPCG(7, 0))
	curve := GenerateCurve(start, 24, 10, rng)
	require.Len(t, curve, 24)

	for _, p := range curve {
		assert.GreaterOrEqual(t, p.CentsPerKWH, FloorCents)
		h := p.Timestamp.Hour()
		switch {
		case h >= 18 && h <= 21:
			// 1.3x base with +/-1 noise
			assert.InDelta(t, 13.0, p.CentsPerKWH, 1.001, "evening hour %d", h)
		case h >= 2 && h <= 5:
			assert.InDelta(t, 7.0, p.CentsPerKWH, 1.001, "night hour %d", h)
		default:
			assert.InDelta(t, 10.0, p.CentsPerKWH, 1.001, "hour %d", h)
		}
	}
}

func TestGenerateCurveDeterministic(t *testing.T) {
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	a := GenerateCurve(start, 24, 10, rand.New(rand.NewPCG(42, 0)))
	b := GenerateCurve(start, 24, 10, rand.New(rand.NewPCG(42, 0)))
	assert.Equal(t, a, b)
}

func TestGenerateCurveFloor(t *testing.T) {
	start := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewPCG(1, 0))
	// base so low that every hour would dip below the floor without it
	curve := GenerateCurve(start, 24, 1, rng)
	for _, p := range curve {
		assert.GreaterOrEqual(t, p.CentsPerKWH, FloorCents)
	}
}

func TestSyntheticProvider(t *testing.T) {
	s := NewSynthetic(10, 3)
	ctx := context.Background()

	forecast, err := s.GetForecast(ctx)
	require.NoError(t, err)
	require.Len(t, forecast, 24)

	current, err := s.GetCurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, forecast[0], current)

	// level is always populated by the synthetic provider
	for _, p := range forecast {
		assert.NotEqual(t, types.PriceLevel(""), p.Level)
	}

	// within the same hour the curve is stable
	again, err := s.GetForecast(ctx)
	require.NoError(t, err)
	assert.Equal(t, forecast, again)
}
