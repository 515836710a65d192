// Package solar defines the astronomical/irradiance service contract the
// simulation core depends on, plus a self-contained default implementation.
//
// The core packages (power, simulation, weather) only ever see the Service
// interface; anything producing the same numeric structures — a bound
// library, a cached lookup table — is substitutable.
package solar

import (
	"fmt"
	"time"

	"pvsimulator/internal/model"
)

// Position is the sun's position as seen from a site.
type Position struct {
	Azimuth   float64 // degrees, 0=N 90=E 180=S
	Zenith    float64 // degrees, 0=overhead
	Elevation float64 // degrees, 90 - zenith (refraction-corrected)
}

// POAComponents is irradiance transposed onto the tilted array plane.
type POAComponents struct {
	Direct  float64 `json:"poa_direct"`
	Diffuse float64 `json:"poa_diffuse"`
	Ground  float64 `json:"poa_ground"`
	Global  float64 `json:"poa_global"`
}

// ClearSkyModel selects a clear-sky radiative model.
type ClearSkyModel string

const (
	Ineichen        ClearSkyModel = "ineichen"
	SimplifiedSolis ClearSkyModel = "simplified_solis"
)

// DiffuseModel selects a sky-diffuse transposition model.
type DiffuseModel string

const (
	Isotropic DiffuseModel = "isotropic"
	HayDavies DiffuseModel = "haydavies"
	Perez     DiffuseModel = "perez"
)

// IAMModel selects an incidence angle modifier model.
type IAMModel string

const (
	ASHRAE     IAMModel = "ashrae"
	Physical   IAMModel = "physical"
	MartinRuiz IAMModel = "martin_ruiz"
)

// POARequest carries every input of a plane-of-array transposition.
// Zero-value DiffuseModel/IAMModel/DNIExtra fall back to Perez, Physical
// and the solar constant.
type POARequest struct {
	SurfaceTilt    float64 // degrees from horizontal, 0-90
	SurfaceAzimuth float64 // degrees, 0=N 180=S
	SolarZenith    float64 // degrees
	SolarAzimuth   float64 // degrees
	DNI            float64 // W/m²
	GHI            float64 // W/m²
	DHI            float64 // W/m²
	DNIExtra       float64 // extraterrestrial DNI, W/m²
	DiffuseModel   DiffuseModel
	IAMModel       IAMModel
	Albedo         float64
}

// Service is the external astronomical/irradiance capability consumed by
// the power orchestrator, the simulation engine and the weather quality
// checks. Timestamps handed to Position must be real instants; the zero
// time is a caller error.
type Service interface {
	// Position returns the sun's position at t for the given site.
	Position(t time.Time, latitude, longitude, altitude float64) Position

	// ClearSky returns cloudless-sky irradiance for the given apparent
	// solar elevation. Elevation below the horizon yields all zeros.
	ClearSky(apparentElevation, latitude, longitude, altitude float64,
		clearSkyModel ClearSkyModel, linkeTurbidity float64) (model.IrradianceComponents, error)

	// POA transposes horizontal irradiance onto the tilted array plane.
	POA(req POARequest) (POAComponents, error)
}

func invalidDiffuseModel(m DiffuseModel) error {
	return fmt.Errorf("invalid diffuse model %q, valid options: %s, %s, %s",
		m, Isotropic, HayDavies, Perez)
}

func invalidIAMModel(m IAMModel) error {
	return fmt.Errorf("invalid IAM model %q, valid options: %s, %s, %s",
		m, ASHRAE, Physical, MartinRuiz)
}

func invalidClearSkyModel(m ClearSkyModel) error {
	return fmt.Errorf("invalid clear-sky model %q, valid options: %s, %s",
		m, Ineichen, SimplifiedSolis)
}
