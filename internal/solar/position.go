package solar

import (
	"math"
	"time"
)

// Standard is the built-in Service implementation: NOAA solar position,
// Ineichen / simplified-Solis clear sky and standard transposition models.
// It is stateless and safe for concurrent use.
type Standard struct{}

var _ Service = Standard{}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Position computes the sun's apparent position using the NOAA solar
// calculator equations (good to roughly 0.1° for years 1900-2100).
// Altitude does not enter the geometric calculation; it is part of the
// Service signature for implementations that model refraction by height.
func (Standard) Position(t time.Time, latitude, longitude, altitude float64) Position {
	_ = altitude

	utc := t.UTC()
	// Julian day from Unix time, then Julian century.
	jd := float64(utc.Unix())/86400.0 + 2440587.5
	jc := (jd - 2451545.0) / 36525.0

	meanLong := math.Mod(280.46646+jc*(36000.76983+0.0003032*jc), 360)
	meanAnom := 357.52911 + jc*(35999.05029-0.0001537*jc)
	eccent := 0.016708634 - jc*(0.000042037+0.0000001267*jc)

	center := math.Sin(radians(meanAnom))*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(radians(2*meanAnom))*(0.019993-0.000101*jc) +
		math.Sin(radians(3*meanAnom))*0.000289

	trueLong := meanLong + center
	apparentLong := trueLong - 0.00569 - 0.00478*math.Sin(radians(125.04-1934.136*jc))

	meanObliq := 23 + (26+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813)))/60)/60
	obliqCorr := meanObliq + 0.00256*math.Cos(radians(125.04-1934.136*jc))

	declination := degrees(math.Asin(math.Sin(radians(obliqCorr)) * math.Sin(radians(apparentLong))))

	y := math.Tan(radians(obliqCorr/2)) * math.Tan(radians(obliqCorr/2))
	eqTimeMin := 4 * degrees(y*math.Sin(2*radians(meanLong))-
		2*eccent*math.Sin(radians(meanAnom))+
		4*eccent*y*math.Sin(radians(meanAnom))*math.Cos(2*radians(meanLong))-
		0.5*y*y*math.Sin(4*radians(meanLong))-
		1.25*eccent*eccent*math.Sin(2*radians(meanAnom)))

	minutesUTC := float64(utc.Hour())*60 + float64(utc.Minute()) + float64(utc.Second())/60
	trueSolarMin := math.Mod(minutesUTC+eqTimeMin+4*longitude, 1440)
	if trueSolarMin < 0 {
		trueSolarMin += 1440
	}

	hourAngle := trueSolarMin/4 - 180
	if hourAngle < -180 {
		hourAngle += 360
	}

	latRad := radians(latitude)
	declRad := radians(declination)
	haRad := radians(hourAngle)

	cosZenith := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))
	zenith := degrees(math.Acos(cosZenith))

	azimuth := 180.0
	sinZenith := math.Sin(radians(zenith))
	if sinZenith > 1e-9 {
		cosAz := (math.Sin(latRad)*cosZenith - math.Sin(declRad)) / (math.Cos(latRad) * sinZenith)
		cosAz = math.Max(-1, math.Min(1, cosAz))
		if hourAngle > 0 {
			azimuth = math.Mod(degrees(math.Acos(cosAz))+180, 360)
		} else {
			azimuth = math.Mod(540-degrees(math.Acos(cosAz)), 360)
		}
	}

	elevation := 90 - zenith
	apparent := elevation + refractionCorrection(elevation)

	return Position{
		Azimuth:   azimuth,
		Zenith:    90 - apparent,
		Elevation: apparent,
	}
}

// refractionCorrection returns the atmospheric refraction adjustment in
// degrees for a true elevation angle (NOAA piecewise fit).
func refractionCorrection(elevation float64) float64 {
	switch {
	case elevation > 85:
		return 0
	case elevation > 5:
		tanE := math.Tan(radians(elevation))
		return (58.1/tanE - 0.07/(tanE*tanE*tanE) + 0.000086/math.Pow(tanE, 5)) / 3600
	case elevation > -0.575:
		return (1735 + elevation*(-518.2+elevation*(103.4+elevation*(-12.79+elevation*0.711)))) / 3600
	default:
		return -20.772 / math.Tan(radians(elevation)) / 3600
	}
}

// relativeAirmass is the Kasten & Young (1989) relative airmass for an
// apparent zenith angle in degrees. Returns +Inf for the sun below horizon.
func relativeAirmass(apparentZenith float64) float64 {
	if apparentZenith >= 90 {
		return math.Inf(1)
	}
	return 1 / (math.Cos(radians(apparentZenith)) +
		0.50572*math.Pow(96.07995-apparentZenith, -1.6364))
}

// altitudeToPressure converts site altitude (m) to air pressure (Pa) using
// the international standard atmosphere fit.
func altitudeToPressure(altitude float64) float64 {
	return 100 * math.Pow((44331.514-altitude)/11880.516, 1/0.1902632)
}
