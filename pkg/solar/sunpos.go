package solar

import (
	"math"
	"time"
)

// Declination returns the solar declination in degrees for a day of year,
// using the standard 23.45° sine approximation.
func Declination(dayOfYear int) float64 {
	return 23.45 * math.Sin(2*math.Pi*float64(284+dayOfYear)/365)
}

// HourAngle returns the hour angle in degrees for a local solar time
// expressed in fractional hours.
func HourAngle(solarHour float64) float64 {
	return 15 * (solarHour - 12)
}

// Elevation returns the sun's elevation above the horizon in degrees at
// the given time and latitude. Negative values mean the sun is below the
// horizon. Local clock time approximates local solar time.
func Elevation(latitudeDeg float64, t time.Time) float64 {
	decl := radians(Declination(t.YearDay()))
	lat := radians(latitudeDeg)
	ha := radians(HourAngle(float64(t.Hour()) + float64(t.Minute())/60))

	sinEl := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(ha)
	if sinEl > 1 {
		sinEl = 1
	} else if sinEl < -1 {
		sinEl = -1
	}
	return degrees(math.Asin(sinEl))
}

// ElevationFactor maps the sun's elevation to a production factor in
// [0,1]. Negative elevation clamps to 0, forcing night production to 0.
func ElevationFactor(latitudeDeg float64, t time.Time) float64 {
	el := Elevation(latitudeDeg, t)
	if el <= 0 {
		return 0
	}
	return math.Sin(radians(el))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
