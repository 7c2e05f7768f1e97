package pricing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	// FloorCents is the minimum price the synthetic curve emits.
	FloorCents = 2.0

	eveningStart = 18
	eveningEnd   = 21
	nightStart   = 2
	nightEnd     = 5
)

// GenerateCurve returns a synthetic hourly price curve starting at start.
// Evening hours (18-21) are scaled 1.3x, night hours (2-5) 0.7x, with
// uniform noise of up to +/-1 cent and a 2 cent floor.
func GenerateCurve(start time.Time, hours int, baseCents float64, rng *rand.Rand) []types.Price {
	out := make([]types.Price, 0, hours)
	ts := start.Truncate(time.Hour)
	for i := 0; i < hours; i++ {
		h := ts.Hour()
		cents := baseCents
		switch {
		case h >= eveningStart && h <= eveningEnd:
			cents *= 1.3
		case h >= nightStart && h <= nightEnd:
			cents *= 0.7
		}
		cents += (rng.Float64() - 0.5) * 2
		if cents < FloorCents {
			cents = FloorCents
		}
		out = append(out, types.Price{
			Timestamp:   ts,
			CentsPerKWH: cents,
			Level:       classify(cents, baseCents),
		})
		ts = ts.Add(time.Hour)
	}
	return out
}

func classify(cents, baseCents float64) types.PriceLevel {
	switch {
	case cents < baseCents*0.8:
		return types.PriceLevelCheap
	case cents > baseCents*1.2:
		return types.PriceLevelExpensive
	default:
		return types.PriceLevelNormal
	}
}

// Synthetic is a Provider emitting the generated curve. It regenerates
// the curve once per hour so repeated calls within an hour agree.
type Synthetic struct {
	baseCents float64
	seed      uint64

	mu        sync.Mutex
	curveFrom time.Time
	curve     []types.Price
}

// Configured sets up the synthetic provider from flags.
func Configured() *Synthetic {
	s := &Synthetic{}
	base := 10.0
	lflag.JSON(&base, "price-base-cents", base, "Base price in cents/kWh for the synthetic tariff")
	seed := lflag.Int("price-seed", 1, "Seed for synthetic price noise")
	lflag.Do(func() {
		s.baseCents = base
		s.seed = uint64(*seed)
	})
	return s
}

// NewSynthetic returns a synthetic provider with an explicit base price
// and seed, bypassing flags. Used by tests.
func NewSynthetic(baseCents float64, seed uint64) *Synthetic {
	return &Synthetic{baseCents: baseCents, seed: seed}
}

func (s *Synthetic) forecastLocked(now time.Time) []types.Price {
	hourStart := now.Truncate(time.Hour)
	if !s.curveFrom.Equal(hourStart) || len(s.curve) == 0 {
		// reseed from the hour so the curve is stable within it
		rng := rand.New(rand.NewPCG(s.seed, uint64(hourStart.Unix())))
		s.curve = GenerateCurve(hourStart, 24, s.baseCents, rng)
		s.curveFrom = hourStart
	}
	return s.curve
}

// GetCurrentPrice returns the first hour of the synthetic curve.
func (s *Synthetic) GetCurrentPrice(_ context.Context) (types.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forecastLocked(time.Now())[0], nil
}

// GetForecast returns 24 hours of synthetic prices starting now.
func (s *Synthetic) GetForecast(_ context.Context) ([]types.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	curve := s.forecastLocked(time.Now())
	out := make([]types.Price, len(curve))
	copy(out, curve)
	return out, nil
}
