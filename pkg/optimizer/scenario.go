package optimizer

import (
	"math/rand/v2"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/pricing"
	"github.com/gridsage/gridsage/pkg/types"
)

// scenarioStrideHours spaces synthetic scenarios through the dataset.
const scenarioStrideHours = 6

// scenario is a synthetic training instance: one state snapshot plus the
// price that applied at its hour.
type scenario struct {
	in Input
}

// buildScenarios samples the dataset every 6 simulated hours, pairing
// the solar and load reading at that hour with a random SOC in [20,80]%
// and a synthetic 24-hour price curve regenerated per simulated day.
func buildScenarios(ds types.Dataset, baseCents float64, maxScenarios int, rng *rand.Rand) []scenario {
	solar := append([]types.Sample(nil), ds.Solar...)
	load := append([]types.Sample(nil), ds.Load...)
	history.SortSamples(solar)
	history.SortSamples(load)
	if len(solar) == 0 || len(load) == 0 {
		return nil
	}

	loadAt := make(map[time.Time]float64, len(load))
	for _, s := range load {
		loadAt[s.Timestamp.Truncate(time.Hour)] = s.Power
	}

	var out []scenario
	var curve []types.Price
	var curveDay time.Time

	for i := 0; i < len(solar) && len(out) < maxScenarios; i += scenarioStrideHours {
		s := solar[i]
		day := localDay(s.Timestamp)
		if curve == nil || !day.Equal(curveDay) {
			curve = pricing.GenerateCurve(day, 24, baseCents, rng)
			curveDay = day
		}

		price := curve[s.Timestamp.Hour()]
		out = append(out, scenario{in: Input{
			Timestamp:      s.Timestamp,
			CurrentSOC:     20 + rng.Float64()*60,
			GridPriceCents: price.CentsPerKWH,
			PriceLevel:     price.Level,
			SolarPower:     s.Power,
			LoadPower:      loadAt[s.Timestamp.Truncate(time.Hour)],
		}})
	}
	return out
}

// localDay is midnight of the sample's day in the sample's location, so
// the generated curve's hours line up with the sample's local hours.
func localDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
