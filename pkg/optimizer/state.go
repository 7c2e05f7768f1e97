package optimizer

import (
	"fmt"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
)

// Input is the snapshot the optimizer evaluates. PriceLevel is optional;
// when empty the numeric thresholds alone drive the decision.
type Input struct {
	Timestamp      time.Time
	CurrentSOC     float64 // percent
	GridPriceCents float64 // ¢/kWh
	PriceLevel     types.PriceLevel
	SolarPower     float64 // watts
	LoadPower      float64 // watts
	// WeatherHint carries an optional day-class label ("sunny",
	// "overcast", ...) from the pattern layer; it only feeds the
	// explanation text, never the value table.
	WeatherHint string
}

// encodeState discretizes the continuous input into the composite key
// indexing the action-value table: 10%-wide SOC buckets, 2¢ price
// buckets, 500W power buckets, and 3h time-of-day buckets. Negative
// readings clamp to bucket zero so sensor glitches cannot mint new
// states.
func encodeState(in Input) string {
	return fmt.Sprintf("s%d_p%d_v%d_l%d_h%d",
		bucket(in.CurrentSOC, 10),
		bucket(in.GridPriceCents, 2),
		bucket(in.SolarPower, 500),
		bucket(in.LoadPower, 500),
		in.Timestamp.Hour()/3,
	)
}

func bucket(v, width float64) int {
	if v < 0 {
		return 0
	}
	return int(v / width)
}
