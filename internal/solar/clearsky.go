package solar

import (
	"math"

	"pvsimulator/internal/model"
)

// solarConstant is the extraterrestrial normal irradiance in W/m².
const solarConstant = 1366.1

// ClearSky computes cloudless-sky irradiance for an apparent solar
// elevation. A sun below the horizon yields all-zero components rather
// than an error; night is not exceptional.
func (s Standard) ClearSky(apparentElevation, latitude, longitude, altitude float64,
	clearSkyModel ClearSkyModel, linkeTurbidity float64) (model.IrradianceComponents, error) {

	if clearSkyModel == "" {
		clearSkyModel = Ineichen
	}
	if linkeTurbidity <= 0 {
		linkeTurbidity = 3.0
	}

	switch clearSkyModel {
	case Ineichen:
		return ineichenClearSky(apparentElevation, altitude, linkeTurbidity), nil
	case SimplifiedSolis:
		return simplifiedSolis(apparentElevation, altitude), nil
	default:
		return model.IrradianceComponents{}, invalidClearSkyModel(clearSkyModel)
	}
}

// ineichenClearSky implements the Ineichen & Perez (2002) clear-sky model
// with the altitude corrections used by pvlib.
func ineichenClearSky(apparentElevation, altitude, linkeTurbidity float64) model.IrradianceComponents {
	if apparentElevation <= 0 {
		return model.IrradianceComponents{}
	}

	zenith := 90 - apparentElevation
	cosZenith := math.Cos(radians(zenith))

	amRelative := relativeAirmass(zenith)
	amAbsolute := amRelative * altitudeToPressure(altitude) / 101325.0

	fh1 := math.Exp(-altitude / 8000)
	fh2 := math.Exp(-altitude / 1250)
	cg1 := 5.09e-5*altitude + 0.868
	cg2 := 3.92e-5*altitude + 0.0387
	tl := linkeTurbidity

	ghi := cg1 * solarConstant * cosZenith *
		math.Exp(-cg2*amAbsolute*(fh1+fh2*(tl-1))) *
		math.Exp(0.01*math.Pow(amAbsolute, 1.8))
	ghi = math.Max(ghi, 0)

	b := 0.664 + 0.163/fh1
	dni := b * solarConstant * math.Exp(-0.09*amAbsolute*(tl-1))

	// High turbidity cap on the beam component.
	dniCap := ghi * (1 - (0.1-0.2*math.Exp(-tl))/(0.1+0.882/fh1)) / cosZenith
	dni = math.Max(math.Min(dni, dniCap), 0)

	dhi := math.Max(ghi-dni*cosZenith, 0)

	return model.IrradianceComponents{GHI: ghi, DNI: dni, DHI: dhi}
}

// Fixed atmosphere assumed by the simplified Solis model here: typical
// continental aerosol load and column water vapor.
const (
	solisAOD700            = 0.1
	solisPrecipitableWater = 1.5
)

// simplifiedSolis implements Ineichen's (2008) broadband simplified Solis
// clear-sky model.
func simplifiedSolis(apparentElevation, altitude float64) model.IrradianceComponents {
	if apparentElevation <= 0 {
		return model.IrradianceComponents{}
	}

	p := altitudeToPressure(altitude)
	const p0 = 101325.0
	w := math.Max(solisPrecipitableWater, 0.2)
	aod := solisAOD700
	logW := math.Log(w)
	logP := math.Log(p / p0)

	// Adjusted top-of-atmosphere intensity.
	io0 := 1.08 * math.Pow(w, 0.0051)
	io1 := 0.97 * math.Pow(w, 0.032)
	io2 := 0.12 * math.Pow(w, 0.56)
	i0p := 1367.0 * (io2*aod*aod + io1*aod + io0 + 0.071*logP)

	// Beam optical depth and exponent.
	tb1 := 1.82 + 0.056*logW + 0.0071*logW*logW
	tb0 := 0.33 + 0.045*logW + 0.0096*logW*logW
	tbp := 0.0089*w + 0.13
	taub := tb1*aod + tb0 + tbp*logP
	b := (0.00925*aod*aod+0.0148*aod-0.0172)*logW + (-0.7565*aod*aod + 0.5057*aod + 0.4557)

	// Global optical depth and exponent.
	tg1 := 1.24 + 0.047*logW + 0.0061*logW*logW
	tg0 := 0.27 + 0.043*logW + 0.0090*logW*logW
	tgp := 0.0079*w + 0.1
	taug := tg1*aod + tg0 + tgp*logP
	g := -0.0147*logW - 0.3079*aod*aod + 0.2846*aod + 0.3798

	// Diffuse optical depth and exponent (low-aerosol branch applies for
	// the fixed aod700 above only if it drops under 0.05).
	var td4, td3, td2, td1, td0, tdp float64
	if aod < 0.05 {
		td4 = 86*w - 13800
		td3 = -3.11*w + 79.4
		td2 = -0.23*w + 74.8
		td1 = 0.092*w - 8.86
		td0 = 0.0042*w + 3.12
		tdp = -0.83 * math.Pow(1+aod, -17.2)
	} else {
		td4 = -0.21*w + 11.6
		td3 = 0.27*w - 20.7
		td2 = -0.134*w + 15.5
		td1 = 0.0554*w - 5.71
		td0 = 0.0057*w + 2.94
		tdp = -0.71 * math.Pow(1+aod, -15.0)
	}
	taud := td4*math.Pow(aod, 4) + td3*math.Pow(aod, 3) + td2*aod*aod + td1*aod + td0 + tdp*logP
	d := -0.337*aod*aod + 0.63*aod + 0.116 + math.Log(p/p0)/(18+152*aod)

	sinElev := math.Sin(radians(apparentElevation))

	dni := i0p * math.Exp(-taub/math.Pow(sinElev, b))
	ghi := i0p * math.Exp(-taug/math.Pow(sinElev, g)) * sinElev
	dhi := i0p * math.Exp(-taud/math.Pow(sinElev, d))

	return model.IrradianceComponents{
		GHI: math.Max(ghi, 0),
		DNI: math.Max(dni, 0),
		DHI: math.Max(dhi, 0),
	}
}
