// Package power composes solar position, irradiance, plane-of-array
// transposition, cell temperature and system losses into an instantaneous
// power estimate.
package power

import (
	"fmt"
	"time"

	"pvsimulator/internal/atmosphere"
	"pvsimulator/internal/model"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/temperature"
)

// Result is one instant's power estimate together with every intermediate
// physical quantity. Created once per timestep, never mutated.
type Result struct {
	PowerW            float64  `json:"power_w"`
	PowerACW          *float64 `json:"power_ac_w,omitempty"`
	POAGlobal         float64  `json:"poa_irradiance"`
	POADirect         float64  `json:"poa_direct"`
	POADiffuse        float64  `json:"poa_diffuse"`
	CellTemperature   float64  `json:"cell_temperature"`
	GHI               float64  `json:"ghi"`
	DNI               float64  `json:"dni"`
	DHI               float64  `json:"dhi"`
	SolarElevation    float64  `json:"solar_elevation"`
	SolarAzimuth      float64  `json:"solar_azimuth"`
	TemperatureFactor float64  `json:"temperature_factor"`
}

// Options are the per-instant weather and model inputs. The zero value
// means clear sky at 25 °C with a 1 m/s breeze and default models.
type Options struct {
	AmbientTemp *float64 // °C, nil defaults to 25; an explicit 0 is 0 °C
	WindSpeed   *float64 // m/s, nil defaults to 1
	CloudCover  float64  // 0-1 fraction or 0-100 percent

	// GHI/DNI/DHI, when all three are set, bypass the clear-sky model.
	GHI *float64
	DNI *float64
	DHI *float64

	ClearSkyModel     solar.ClearSkyModel
	LinkeTurbidity    float64
	DiffuseModel      solar.DiffuseModel
	IAMModel          solar.IAMModel
	TemperatureModel  temperature.Model
	TemperatureParams *temperature.Params
	CloudModel        atmosphere.CloudModel

	Albedo             float64 // ground reflectance, defaults to 0.2
	SoilingFactor      float64 // (0,1], defaults to 1
	DegradationFactor  float64 // (0,1], defaults to 1
	InverterEfficiency *float64
}

// DefaultOptions returns the clear-sky defaults used when no weather
// overrides are available.
func DefaultOptions() Options {
	temp, wind := 25.0, 1.0
	return Options{AmbientTemp: &temp, WindSpeed: &wind}
}

func (o *Options) applyDefaults() error {
	if o.AmbientTemp == nil {
		temp := 25.0
		o.AmbientTemp = &temp
	}
	if o.WindSpeed == nil {
		wind := 1.0
		o.WindSpeed = &wind
	}
	if o.Albedo == 0 {
		o.Albedo = 0.2
	}
	if o.SoilingFactor == 0 {
		o.SoilingFactor = 1.0
	}
	if o.DegradationFactor == 0 {
		o.DegradationFactor = 1.0
	}
	if o.SoilingFactor <= 0 || o.SoilingFactor > 1 {
		return fmt.Errorf("soiling factor must be in (0, 1], got %v", o.SoilingFactor)
	}
	if o.DegradationFactor <= 0 || o.DegradationFactor > 1 {
		return fmt.Errorf("degradation factor must be in (0, 1], got %v", o.DegradationFactor)
	}
	if o.InverterEfficiency != nil && (*o.InverterEfficiency <= 0 || *o.InverterEfficiency > 1) {
		return fmt.Errorf("inverter efficiency must be in (0, 1], got %v", *o.InverterEfficiency)
	}
	return nil
}

// Calculator orchestrates one instantaneous power estimate. The solar
// service is injected; any implementation of the interface works.
type Calculator struct {
	Solar solar.Service
}

// NewCalculator returns a Calculator over the given solar service.
func NewCalculator(svc solar.Service) *Calculator {
	return &Calculator{Solar: svc}
}

// Calculate produces the power estimate for one timestamp.
//
// The sun below the horizon is the single terminal branch: irradiance and
// power are zero, cell temperature equals ambient and the temperature
// factor is exactly 1.
func (c *Calculator) Calculate(loc model.Location, sys model.PVSystem, ts time.Time, opts Options) (Result, error) {
	if ts.IsZero() {
		return Result{}, fmt.Errorf("timestamp must be a real instant, got the zero time")
	}
	if err := opts.applyDefaults(); err != nil {
		return Result{}, err
	}

	pos := c.Solar.Position(ts, loc.Latitude, loc.Longitude, loc.Altitude)

	if pos.Elevation <= 0 {
		res := Result{
			CellTemperature:   *opts.AmbientTemp,
			SolarElevation:    pos.Elevation,
			SolarAzimuth:      pos.Azimuth,
			TemperatureFactor: 1.0,
		}
		if opts.InverterEfficiency != nil {
			zero := 0.0
			res.PowerACW = &zero
		}
		return res, nil
	}

	var irr model.IrradianceComponents
	if opts.GHI != nil && opts.DNI != nil && opts.DHI != nil {
		irr = model.IrradianceComponents{GHI: *opts.GHI, DNI: *opts.DNI, DHI: *opts.DHI}
	} else {
		var err error
		irr, err = c.Solar.ClearSky(pos.Elevation, loc.Latitude, loc.Longitude, loc.Altitude,
			opts.ClearSkyModel, opts.LinkeTurbidity)
		if err != nil {
			return Result{}, err
		}

		if opts.CloudCover > 0 {
			adjusted, err := atmosphere.ApplyCloudCover(
				irr.GHI, irr.DNI, irr.DHI, opts.CloudCover, pos.Elevation, opts.CloudModel)
			if err != nil {
				return Result{}, err
			}
			irr = adjusted.IrradianceComponents
		}
	}

	poa, err := c.Solar.POA(solar.POARequest{
		SurfaceTilt:    sys.Tilt,
		SurfaceAzimuth: sys.Azimuth,
		SolarZenith:    pos.Zenith,
		SolarAzimuth:   pos.Azimuth,
		DNI:            irr.DNI,
		GHI:            irr.GHI,
		DHI:            irr.DHI,
		DiffuseModel:   opts.DiffuseModel,
		IAMModel:       opts.IAMModel,
		Albedo:         opts.Albedo,
	})
	if err != nil {
		return Result{}, err
	}

	cellTemp, err := temperature.CellTemperature(
		poa.Global, *opts.AmbientTemp, *opts.WindSpeed, opts.TemperatureModel, opts.TemperatureParams)
	if err != nil {
		return Result{}, err
	}

	tempFactor := temperature.CorrectionFactor(cellTemp, sys.TempCoefficient, 25.0)

	powerDC := sys.PanelArea * sys.PanelEfficiency * poa.Global *
		tempFactor * opts.SoilingFactor * opts.DegradationFactor

	res := Result{
		PowerW:            powerDC,
		POAGlobal:         poa.Global,
		POADirect:         poa.Direct,
		POADiffuse:        poa.Diffuse,
		CellTemperature:   cellTemp,
		GHI:               irr.GHI,
		DNI:               irr.DNI,
		DHI:               irr.DHI,
		SolarElevation:    pos.Elevation,
		SolarAzimuth:      pos.Azimuth,
		TemperatureFactor: tempFactor,
	}
	if opts.InverterEfficiency != nil {
		ac := powerDC * *opts.InverterEfficiency
		res.PowerACW = &ac
	}
	return res, nil
}
