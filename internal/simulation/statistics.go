package simulation

import (
	"time"

	"pvsimulator/internal/model"
)

// AnnualStatistics is the reduction of a completed per-step table. It is
// recomputed from the full table, never updated incrementally.
type AnnualStatistics struct {
	TotalEnergyKWh     float64 `json:"total_energy_kwh"`
	CapacityFactor     float64 `json:"capacity_factor"`
	PeakPowerW         float64 `json:"peak_power_w"`
	AveragePowerW      float64 `json:"average_power_w"`
	TotalDaylightHours float64 `json:"total_daylight_hours"`
	PerformanceRatio   float64 `json:"performance_ratio"`

	MonthlyEnergyKWh map[string]float64 `json:"monthly_energy_kwh"`
	DailyEnergyKWh   map[string]float64 `json:"daily_energy_kwh"`
}

// Aggregate reduces a time-ordered step table into annual statistics.
//
// Energy integrates DC power over the sampling interval. The capacity
// factor is taken against a full 8760-hour year at rated power. The
// performance ratio divides produced energy by the irradiance-ideal
// energy (POA at nameplate efficiency, no thermal or derate losses);
// both it and the daylight average are zero-guarded.
func Aggregate(steps []Step, intervalMinutes int, sys model.PVSystem) AnnualStatistics {
	intervalHours := float64(intervalMinutes) / 60.0

	stats := AnnualStatistics{
		MonthlyEnergyKWh: make(map[string]float64),
		DailyEnergyKWh:   make(map[string]float64),
	}

	var idealKWh float64
	var daylightPowerSum float64
	var daylightSteps int

	for _, s := range steps {
		energyKWh := s.Result.PowerW * intervalHours / 1000

		stats.TotalEnergyKWh += energyKWh
		stats.MonthlyEnergyKWh[s.Timestamp.Month().String()] += energyKWh
		stats.DailyEnergyKWh[s.Timestamp.Format("2006-01-02")] += energyKWh

		if s.Result.PowerW > stats.PeakPowerW {
			stats.PeakPowerW = s.Result.PowerW
		}

		idealKWh += sys.PanelArea * sys.PanelEfficiency * s.Result.POAGlobal * intervalHours / 1000

		if s.Result.SolarElevation > 0 {
			daylightPowerSum += s.Result.PowerW
			daylightSteps++
			stats.TotalDaylightHours += intervalHours
		}
	}

	if daylightSteps > 0 {
		stats.AveragePowerW = daylightPowerSum / float64(daylightSteps)
	}

	ratedKW := sys.RatedPowerW() / 1000
	if ratedKW > 0 {
		stats.CapacityFactor = stats.TotalEnergyKWh / (ratedKW * hoursPerYear)
	}
	if idealKWh > 0 {
		stats.PerformanceRatio = stats.TotalEnergyKWh / idealKWh
	}

	return stats
}

const hoursPerYear = 8760

// MonthlyEnergy returns the twelve calendar months in order with their
// energy totals, zero-filled for months the table never touched.
func (s AnnualStatistics) MonthlyEnergy() []MonthEnergy {
	out := make([]MonthEnergy, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, MonthEnergy{
			Month:     m.String(),
			EnergyKWh: s.MonthlyEnergyKWh[m.String()],
		})
	}
	return out
}

// MonthEnergy pairs a month name with its energy total.
type MonthEnergy struct {
	Month     string  `json:"month"`
	EnergyKWh float64 `json:"energy_kwh"`
}
