package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pvsimulator/internal/atmosphere"
	"pvsimulator/internal/model"
	"pvsimulator/internal/power"
	"pvsimulator/internal/simulation"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/temperature"
	"pvsimulator/internal/weather"
)

func main() {
	lat := flag.Float64("lat", 40.0, "latitude in degrees")
	lon := flag.Float64("lon", -105.0, "longitude in degrees")
	alt := flag.Float64("alt", 0, "altitude in meters")
	tz := flag.String("tz", "UTC", "IANA timezone")

	area := flag.Float64("area", 20.0, "panel area in m²")
	efficiency := flag.Float64("efficiency", 0.20, "panel efficiency (0-1)")
	tilt := flag.Float64("tilt", 35.0, "surface tilt in degrees")
	azimuth := flag.Float64("azimuth", 180.0, "surface azimuth in degrees")
	tempCoeff := flag.Float64("temp-coeff", -0.004, "power temperature coefficient (1/°C)")

	year := flag.Int("year", time.Now().Year()-1, "simulation year")
	interval := flag.Int("interval", 60, "step interval in minutes (1-60)")
	weatherFile := flag.String("weather", "", "weather CSV (empty = clear sky)")

	soiling := flag.Float64("soiling", 1.0, "soiling factor (0-1]")
	degradation := flag.Float64("degradation", 1.0, "degradation factor (0-1]")
	inverterEff := flag.Float64("inverter-efficiency", 0, "inverter efficiency, 0 disables AC output")

	cloudModel := flag.String("cloud-model", "", "cloud model: campbell_norman, simple_linear, kasten_czeplak")
	tempModel := flag.String("temperature-model", "", "temperature model: faiman, sapm, pvsyst, generic_linear")
	diffuseModel := flag.String("diffuse-model", "", "diffuse model: isotropic, haydavies, perez")
	iamModel := flag.String("iam-model", "", "IAM model: ashrae, physical, martin_ruiz")

	workers := flag.Int("workers", 0, "parallel workers (0 = sequential)")
	output := flag.String("output", "", "per-step CSV output path")
	flag.Parse()

	loc, err := model.NewLocation(*lat, *lon, *alt, *tz)
	if err != nil {
		log.Fatalf("invalid location: %v", err)
	}
	sys, err := model.NewPVSystem(*area, *efficiency, *tilt, *azimuth, *tempCoeff)
	if err != nil {
		log.Fatalf("invalid PV system: %v", err)
	}

	cfg := simulation.Config{
		Year:            *year,
		IntervalMinutes: *interval,
		WeatherSource:   simulation.ClearSky,
		Workers:         *workers,
		Options: power.Options{
			SoilingFactor:     *soiling,
			DegradationFactor: *degradation,
			CloudModel:        atmosphere.CloudModel(*cloudModel),
			TemperatureModel:  temperature.Model(*tempModel),
			DiffuseModel:      solar.DiffuseModel(*diffuseModel),
			IAMModel:          solar.IAMModel(*iamModel),
		},
		Progress: func(fraction float64) {
			fmt.Fprintf(os.Stderr, "\r%.0f%%", fraction*100)
		},
	}
	if *inverterEff > 0 {
		cfg.Options.InverterEfficiency = inverterEff
	}

	if *weatherFile != "" {
		f, err := os.Open(*weatherFile)
		if err != nil {
			log.Fatalf("opening weather file: %v", err)
		}
		table, err := weather.ReadCSV(f, loc.TZ())
		f.Close()
		if err != nil {
			log.Fatalf("parsing weather file: %v", err)
		}
		if err := table.ValidateRanges(); err != nil {
			log.Fatalf("weather file failed validation: %v", err)
		}
		cfg.WeatherSource = simulation.TableSource
		cfg.Weather = table
		log.Printf("loaded %d weather rows from %s", table.Len(), *weatherFile)
	}

	engine := simulation.NewEngine(solar.Standard{}, nil)
	res, err := engine.Run(context.Background(), loc, sys, cfg)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	fmt.Fprintln(os.Stderr)

	printSummary(res)

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("creating output file: %v", err)
		}
		if err := res.ExportCSV(f); err != nil {
			f.Close()
			log.Fatalf("writing output file: %v", err)
		}
		f.Close()
		log.Printf("wrote %d steps to %s", len(res.Steps), *output)
	}
}

func printSummary(res *simulation.Result) {
	st := res.Statistics
	fmt.Printf("Year %d, %d steps at %d min\n", res.Year, len(res.Steps), res.IntervalMinutes)
	fmt.Printf("  Total energy:      %10.1f kWh\n", st.TotalEnergyKWh)
	fmt.Printf("  Capacity factor:   %10.3f\n", st.CapacityFactor)
	fmt.Printf("  Performance ratio: %10.3f\n", st.PerformanceRatio)
	fmt.Printf("  Peak power:        %10.1f W\n", st.PeakPowerW)
	fmt.Printf("  Daylight average:  %10.1f W\n", st.AveragePowerW)
	fmt.Printf("  Daylight hours:    %10.1f h\n", st.TotalDaylightHours)
	fmt.Println("  Monthly energy (kWh):")
	for _, m := range st.MonthlyEnergy() {
		fmt.Printf("    %-10s %8.1f\n", m.Month, m.EnergyKWh)
	}
}
