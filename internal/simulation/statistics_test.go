package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsimulator/internal/model"
	"pvsimulator/internal/power"
)

func statsSystem(t *testing.T) model.PVSystem {
	t.Helper()
	sys, err := model.NewPVSystem(10, 0.20, 35, 180, -0.004) // 2 kW nameplate
	require.NoError(t, err)
	return sys
}

func TestAggregate_EnergyIntegration(t *testing.T) {
	sys := statsSystem(t)
	base := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	// Two hourly steps at 1000 W and 500 W: 1.5 kWh total.
	steps := []Step{
		{Timestamp: base, Result: power.Result{PowerW: 1000, POAGlobal: 600, SolarElevation: 50}},
		{Timestamp: base.Add(time.Hour), Result: power.Result{PowerW: 500, POAGlobal: 300, SolarElevation: 40}},
	}

	stats := Aggregate(steps, 60, sys)

	assert.InDelta(t, 1.5, stats.TotalEnergyKWh, 1e-9)
	assert.Equal(t, 1000.0, stats.PeakPowerW)
	assert.InDelta(t, 750.0, stats.AveragePowerW, 1e-9)
	assert.InDelta(t, 2.0, stats.TotalDaylightHours, 1e-9)
	assert.InDelta(t, 1.5, stats.MonthlyEnergyKWh["June"], 1e-9)
	assert.InDelta(t, 1.5, stats.DailyEnergyKWh["2023-06-15"], 1e-9)
}

func TestAggregate_SubHourlyIntervalScalesEnergy(t *testing.T) {
	sys := statsSystem(t)
	base := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	steps := []Step{
		{Timestamp: base, Result: power.Result{PowerW: 1200, SolarElevation: 50}},
	}

	// 15-minute step: 1200 W for a quarter hour is 0.3 kWh.
	stats := Aggregate(steps, 15, sys)
	assert.InDelta(t, 0.3, stats.TotalEnergyKWh, 1e-9)
}

func TestAggregate_CapacityFactorAgainstFullYear(t *testing.T) {
	sys := statsSystem(t)
	base := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	// 1752 kWh over a 2 kW system: CF = 1752 / (2 * 8760) = 0.1.
	var steps []Step
	for i := 0; i < 876; i++ {
		steps = append(steps, Step{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Result:    power.Result{PowerW: 2000, SolarElevation: 30},
		})
	}
	stats := Aggregate(steps, 60, sys)
	assert.InDelta(t, 0.1, stats.CapacityFactor, 1e-9)
}

func TestAggregate_PerformanceRatio(t *testing.T) {
	sys := statsSystem(t)
	base := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	// Ideal energy: 10 m² · 0.2 · 800 W/m² = 1600 W for one hour.
	// Actual 1200 W gives PR = 0.75.
	steps := []Step{
		{Timestamp: base, Result: power.Result{PowerW: 1200, POAGlobal: 800, SolarElevation: 50}},
	}
	stats := Aggregate(steps, 60, sys)
	assert.InDelta(t, 0.75, stats.PerformanceRatio, 1e-9)
}

func TestAggregate_NightStepsExcludedFromDaylightAverage(t *testing.T) {
	sys := statsSystem(t)
	base := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)

	steps := []Step{
		{Timestamp: base, Result: power.Result{PowerW: 0, SolarElevation: -30}},
		{Timestamp: base.Add(12 * time.Hour), Result: power.Result{PowerW: 1000, SolarElevation: 60}},
	}
	stats := Aggregate(steps, 60, sys)

	assert.InDelta(t, 1000.0, stats.AveragePowerW, 1e-9)
	assert.InDelta(t, 1.0, stats.TotalDaylightHours, 1e-9)
}

func TestAggregate_EmptyTableIsAllZeros(t *testing.T) {
	stats := Aggregate(nil, 60, statsSystem(t))
	assert.Zero(t, stats.TotalEnergyKWh)
	assert.Zero(t, stats.CapacityFactor)
	assert.Zero(t, stats.AveragePowerW)
	assert.Zero(t, stats.PerformanceRatio)
}

func TestAnnualStatistics_MonthlyEnergyOrderedAndZeroFilled(t *testing.T) {
	stats := AnnualStatistics{MonthlyEnergyKWh: map[string]float64{"June": 42}}

	months := stats.MonthlyEnergy()
	require.Len(t, months, 12)
	assert.Equal(t, "January", months[0].Month)
	assert.Equal(t, "December", months[11].Month)
	assert.Zero(t, months[0].EnergyKWh)
	assert.Equal(t, 42.0, months[5].EnergyKWh)
}
