package simulation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"pvsimulator/internal/model"
	"pvsimulator/internal/power"
)

// Step is one simulated instant.
type Step struct {
	Timestamp time.Time    `json:"timestamp"`
	Result    power.Result `json:"result"`
}

// Result owns the full per-step table, the statistics reduced from it,
// and the inputs that produced it. Immutable once returned.
type Result struct {
	Location        model.Location   `json:"location"`
	System          model.PVSystem   `json:"system"`
	Year            int              `json:"year"`
	IntervalMinutes int              `json:"interval_minutes"`
	Steps           []Step           `json:"-"`
	Statistics      AnnualStatistics `json:"statistics"`
}

// csvHeader is the exported per-step column set, timestamp leading.
var csvHeader = []string{
	"timestamp", "power_w", "power_ac_w", "poa_irradiance",
	"cell_temperature", "ghi", "dni", "dhi", "solar_elevation",
}

// ExportCSV writes the per-step table, one row per simulated instant.
// The power_ac_w column is empty when no inverter efficiency was set.
func (r *Result) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, s := range r.Steps {
		acField := ""
		if s.Result.PowerACW != nil {
			acField = formatFloat(*s.Result.PowerACW)
		}
		record := []string{
			s.Timestamp.Format(time.RFC3339),
			formatFloat(s.Result.PowerW),
			acField,
			formatFloat(s.Result.POAGlobal),
			formatFloat(s.Result.CellTemperature),
			formatFloat(s.Result.GHI),
			formatFloat(s.Result.DNI),
			formatFloat(s.Result.DHI),
			formatFloat(s.Result.SolarElevation),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row at %s: %w", s.Timestamp.Format(time.RFC3339), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// DailyEnergy returns the daily energy map keyed YYYY-MM-DD.
func (r *Result) DailyEnergy() map[string]float64 {
	return r.Statistics.DailyEnergyKWh
}

// PeakDay returns the date with the highest daily energy. ok is false
// for an empty table.
func (r *Result) PeakDay() (day string, energyKWh float64, ok bool) {
	for d, e := range r.Statistics.DailyEnergyKWh {
		if !ok || e > energyKWh || (e == energyKWh && d < day) {
			day, energyKWh, ok = d, e, true
		}
	}
	return day, energyKWh, ok
}
