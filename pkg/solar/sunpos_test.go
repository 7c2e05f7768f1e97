package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeclination(t *testing.T) {
	// near the June solstice the declination approaches +23.45°
	june21 := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC).YearDay()
	assert.InDelta(t, 23.45, Declination(june21), 0.1)

	// near the December solstice it approaches -23.45°
	dec21 := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC).YearDay()
	assert.InDelta(t, -23.45, Declination(dec21), 0.1)

	// near the equinoxes it crosses zero
	mar21 := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC).YearDay()
	assert.InDelta(t, 0, Declination(mar21), 1.5)
}

func TestHourAngle(t *testing.T) {
	assert.InDelta(t, 0.0, HourAngle(12), 0.001)
	assert.InDelta(t, -90.0, HourAngle(6), 0.001)
	assert.InDelta(t, 90.0, HourAngle(18), 0.001)
}

func TestElevation(t *testing.T) {
	lat := 52.0

	noon := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

	assert.Greater(t, Elevation(lat, noon), 50.0)
	assert.Less(t, Elevation(lat, midnight), 0.0)

	// winter noon is lower but still above the horizon
	winterNoon := time.Date(2025, 12, 21, 12, 0, 0, 0, time.UTC)
	el := Elevation(lat, winterNoon)
	assert.Greater(t, el, 0.0)
	assert.Less(t, el, 20.0)
}

func TestElevationFactor(t *testing.T) {
	lat := 52.0

	t.Run("Night Is Zero", func(t *testing.T) {
		for _, h := range []int{0, 1, 2, 3, 23} {
			ts := time.Date(2025, 6, 21, h, 0, 0, 0, time.UTC)
			assert.Zero(t, ElevationFactor(lat, ts), "hour %d", h)
		}
	})

	t.Run("Daylight In Unit Range", func(t *testing.T) {
		f := ElevationFactor(lat, time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC))
		assert.Greater(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	})

	t.Run("Noon Beats Morning", func(t *testing.T) {
		noon := ElevationFactor(lat, time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC))
		morning := ElevationFactor(lat, time.Date(2025, 6, 21, 8, 0, 0, 0, time.UTC))
		assert.Greater(t, noon, morning)
	})
}
