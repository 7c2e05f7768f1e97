package optimizer

import "github.com/gridsage/gridsage/pkg/types"

const (
	healthWeight    = 0.5
	stabilityWeight = 0.2

	surplusThresholdW   = 100.0
	shortfallThresholdW = 500.0
	dischargePriceCents = 15.0
	roundTripEfficiency = 0.95

	peakHourStart = 18
	peakHourEnd   = 21
	lullHourStart = 2
	lullHourEnd   = 5
)

// reward scores an action for the given input in ¢/hour. It is the sum
// of a cost term, a battery-health term (×0.5), a self-consumption term,
// and a grid-stability term (×0.2).
func (o *Optimizer) reward(action types.Action, in Input) float64 {
	return o.costTerm(action, in) +
		healthWeight*healthTerm(action, in) +
		selfConsumptionTerm(action, in) +
		stabilityWeight*stabilityTerm(action, in)
}

// costTerm values the action against the current grid price.
func (o *Optimizer) costTerm(action types.Action, in Input) float64 {
	price := in.GridPriceCents
	kw := o.cfg.ChargePowerKW

	switch action {
	case types.ActionChargeGrid:
		switch {
		case price <= o.cfg.PriceThresholdCents:
			// cheap power: the spread against the average price is
			// money banked for later
			return (o.cfg.AvgPriceCents - price) * kw
		case price <= o.cfg.PriceMaxCents:
			return -2
		default:
			return -(price - o.cfg.PriceThresholdCents) * kw
		}
	case types.ActionChargeSolar:
		surplus := in.SolarPower - in.LoadPower
		if surplus > surplusThresholdW {
			surplusKW := surplus / 1000
			if surplusKW > kw {
				surplusKW = kw
			}
			return price * surplusKW
		}
		return 0
	case types.ActionDischarge:
		if price > dischargePriceCents || in.LoadPower > in.SolarPower+shortfallThresholdW {
			return price * kw * roundTripEfficiency
		}
		return 0
	case types.ActionStopCharging:
		if price > o.cfg.PriceMaxCents {
			return 1
		}
		return 0
	default: // HOLD
		return 0
	}
}

// healthTerm protects the battery: keep it out of the deep-discharge
// floor, don't cram it when nearly full, reward the comfortable band.
func healthTerm(action types.Action, in Input) float64 {
	charging := action == types.ActionChargeGrid || action == types.ActionChargeSolar

	switch {
	case in.CurrentSOC < 20:
		if charging {
			return 5
		}
		return -10
	case in.CurrentSOC > 95 && charging:
		return -5
	case in.CurrentSOC >= 30 && in.CurrentSOC <= 80:
		return 2
	default:
		return 0
	}
}

// selfConsumptionTerm rewards keeping home-grown energy at home.
func selfConsumptionTerm(action types.Action, in Input) float64 {
	switch action {
	case types.ActionChargeSolar:
		if in.SolarPower-in.LoadPower > surplusThresholdW {
			return 3
		}
	case types.ActionDischarge:
		if in.LoadPower > in.SolarPower {
			return 3
		}
	}
	return 0
}

// stabilityTerm nudges grid draw away from the evening peak and into the
// overnight lull.
func stabilityTerm(action types.Action, in Input) float64 {
	if action != types.ActionChargeGrid {
		return 0
	}
	switch h := in.Timestamp.Hour(); {
	case h >= peakHourStart && h <= peakHourEnd:
		return -5
	case h >= lullHourStart && h <= lullHourEnd:
		return 5
	default:
		return 0
	}
}
