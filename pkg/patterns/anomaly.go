package patterns

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/stats"
	"github.com/gridsage/gridsage/pkg/types"
)

// detectAnomalies flags every day whose solar or load total deviates more
// than anomalyZThreshold standard deviations from the dataset mean. One
// record per axis per day, appended in date order.
func detectAnomalies(profiles []history.DailyProfile) []types.AnomalyRecord {
	if len(profiles) == 0 {
		return nil
	}

	solarTotals := make([]float64, len(profiles))
	loadTotals := make([]float64, len(profiles))
	for i, p := range profiles {
		solarTotals[i] = stats.Sum(p.SolarHourly[:])
		loadTotals[i] = stats.Sum(p.LoadHourly[:])
	}
	solarMean, solarStd := stats.Mean(solarTotals), stats.StdDev(solarTotals)
	loadMean, loadStd := stats.Mean(loadTotals), stats.StdDev(loadTotals)

	var out []types.AnomalyRecord
	for i, p := range profiles {
		if z := stats.ZScore(solarTotals[i], solarMean, solarStd); math.Abs(z) > anomalyZThreshold {
			out = append(out, anomalyRecord(p, "solar", z, solarTotals[i], loadTotals[i], solarMean))
		}
		if z := stats.ZScore(loadTotals[i], loadMean, loadStd); math.Abs(z) > anomalyZThreshold {
			out = append(out, anomalyRecord(p, "load", z, solarTotals[i], loadTotals[i], loadMean))
		}
	}
	return out
}

func anomalyRecord(p history.DailyProfile, axis string, z, solarTotal, loadTotal, mean float64) types.AnomalyRecord {
	direction := "above"
	if z < 0 {
		direction = "below"
	}
	return types.AnomalyRecord{
		ID:         uuid.NewString(),
		Date:       p.Date,
		Type:       axis,
		Severity:   math.Abs(z),
		SolarTotal: solarTotal,
		LoadTotal:  loadTotal,
		Description: fmt.Sprintf("%s total %.1fσ %s the dataset mean of %.0fWh on %s",
			axis, math.Abs(z), direction, mean, p.Date.Format("2006-01-02")),
	}
}
