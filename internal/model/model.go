// Package model holds the immutable value objects shared by every
// simulation component: sites, PV systems and irradiance bundles.
package model

import (
	"fmt"
	"time"
)

// Location is a geographic site for PV simulation. Construct with
// NewLocation so the ranges are checked once, up front.
type Location struct {
	Latitude  float64 // decimal degrees, north positive
	Longitude float64 // decimal degrees, east positive
	Altitude  float64 // meters above sea level
	Timezone  string  // IANA zone name, e.g. "Europe/Prague"
}

// NewLocation validates and returns a Location.
func NewLocation(latitude, longitude, altitude float64, timezone string) (Location, error) {
	if latitude < -90 || latitude > 90 {
		return Location{}, fmt.Errorf("latitude must be between -90 and 90, got %v", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return Location{}, fmt.Errorf("longitude must be between -180 and 180, got %v", longitude)
	}
	// Dead Sea is around -430m; anything deeper is a data error.
	if altitude < -500 {
		return Location{}, fmt.Errorf("altitude seems unrealistic: %vm", altitude)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return Location{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return Location{
		Latitude:  latitude,
		Longitude: longitude,
		Altitude:  altitude,
		Timezone:  timezone,
	}, nil
}

// TZ resolves the location's IANA timezone. The zone was validated at
// construction; a Location built by hand with a bad zone falls back to
// UTC.
func (l Location) TZ() *time.Location {
	tz, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return tz
}

// PVSystem describes a photovoltaic installation.
type PVSystem struct {
	PanelArea       float64 // m²
	PanelEfficiency float64 // 0-1
	Tilt            float64 // degrees from horizontal, 0-90
	Azimuth         float64 // degrees, 0=N 90=E 180=S 270=W
	TempCoefficient float64 // 1/°C, typically negative
}

// NewPVSystem validates and returns a PVSystem. A zero tempCoefficient is
// replaced by -0.004 (typical crystalline silicon).
func NewPVSystem(panelArea, panelEfficiency, tilt, azimuth, tempCoefficient float64) (PVSystem, error) {
	if panelArea <= 0 {
		return PVSystem{}, fmt.Errorf("panel area must be positive, got %v", panelArea)
	}
	if panelEfficiency <= 0 || panelEfficiency > 1 {
		return PVSystem{}, fmt.Errorf("panel efficiency must be in (0, 1], got %v", panelEfficiency)
	}
	if tilt < 0 || tilt > 90 {
		return PVSystem{}, fmt.Errorf("tilt must be 0-90 degrees, got %v", tilt)
	}
	if azimuth < 0 || azimuth > 360 {
		return PVSystem{}, fmt.Errorf("azimuth must be 0-360 degrees, got %v", azimuth)
	}
	if tempCoefficient == 0 {
		tempCoefficient = -0.004
	}
	return PVSystem{
		PanelArea:       panelArea,
		PanelEfficiency: panelEfficiency,
		Tilt:            tilt,
		Azimuth:         azimuth,
		TempCoefficient: tempCoefficient,
	}, nil
}

// RatedPowerW is the nameplate DC power at STC irradiance (1000 W/m²).
func (s PVSystem) RatedPowerW() float64 {
	return s.PanelArea * s.PanelEfficiency * 1000
}

// IrradianceComponents bundles the three horizontal-plane irradiance
// quantities, all in W/m².
type IrradianceComponents struct {
	GHI float64 `json:"ghi"`
	DNI float64 `json:"dni"`
	DHI float64 `json:"dhi"`
}

// TimeRange is a half-open-ended span of simulated or observed time.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
