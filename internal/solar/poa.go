package solar

import (
	"fmt"
	"math"
)

// AngleOfIncidence returns the angle (degrees) between the sun's rays and
// the normal of a tilted surface.
func AngleOfIncidence(surfaceTilt, surfaceAzimuth, solarZenith, solarAzimuth float64) float64 {
	cosAOI := math.Cos(radians(solarZenith))*math.Cos(radians(surfaceTilt)) +
		math.Sin(radians(solarZenith))*math.Sin(radians(surfaceTilt))*
			math.Cos(radians(solarAzimuth-surfaceAzimuth))
	cosAOI = math.Max(-1, math.Min(1, cosAOI))
	return degrees(math.Acos(cosAOI))
}

// POA transposes horizontal irradiance components onto the array plane.
// The beam component carries the incidence angle modifier; diffuse and
// ground-reflected components do not.
func (s Standard) POA(req POARequest) (POAComponents, error) {
	if req.SurfaceTilt < 0 || req.SurfaceTilt > 90 {
		return POAComponents{}, fmt.Errorf("surface tilt must be 0-90 degrees, got %v", req.SurfaceTilt)
	}
	if req.DNI < 0 || req.GHI < 0 || req.DHI < 0 {
		return POAComponents{}, fmt.Errorf("irradiance values cannot be negative (dni=%v ghi=%v dhi=%v)",
			req.DNI, req.GHI, req.DHI)
	}
	if req.Albedo < 0 || req.Albedo > 1 {
		return POAComponents{}, fmt.Errorf("albedo must be between 0 and 1, got %v", req.Albedo)
	}
	diffuseModel := req.DiffuseModel
	if diffuseModel == "" {
		diffuseModel = Perez
	}
	iamModel := req.IAMModel
	if iamModel == "" {
		iamModel = Physical
	}
	dniExtra := req.DNIExtra
	if dniExtra <= 0 {
		dniExtra = 1367.0
	}

	aoi := AngleOfIncidence(req.SurfaceTilt, req.SurfaceAzimuth, req.SolarZenith, req.SolarAzimuth)
	cosAOI := math.Max(math.Cos(radians(aoi)), 0)

	iam, err := incidenceAngleModifier(aoi, iamModel)
	if err != nil {
		return POAComponents{}, err
	}

	direct := req.DNI * cosAOI * iam
	ground := req.GHI * req.Albedo * (1 - math.Cos(radians(req.SurfaceTilt))) / 2

	var diffuse float64
	switch diffuseModel {
	case Isotropic:
		diffuse = req.DHI * (1 + math.Cos(radians(req.SurfaceTilt))) / 2
	case HayDavies:
		diffuse = hayDaviesDiffuse(req.SurfaceTilt, aoi, req.SolarZenith, req.DNI, req.DHI, dniExtra)
	case Perez:
		diffuse = perezDiffuse(req.SurfaceTilt, aoi, req.SolarZenith, req.DNI, req.DHI, dniExtra)
	default:
		return POAComponents{}, invalidDiffuseModel(diffuseModel)
	}
	diffuse = math.Max(diffuse, 0)

	return POAComponents{
		Direct:  direct,
		Diffuse: diffuse,
		Ground:  ground,
		Global:  direct + diffuse + ground,
	}, nil
}

// beamProjectionRatio is cos(aoi)/cos(zenith) with the denominator floored
// near the horizon to keep circumsolar terms bounded.
func beamProjectionRatio(aoi, solarZenith float64) float64 {
	num := math.Max(math.Cos(radians(aoi)), 0)
	den := math.Max(math.Cos(radians(solarZenith)), math.Cos(radians(89)))
	return num / den
}

// hayDaviesDiffuse is the Hay & Davies (1980) circumsolar-plus-isotropic
// sky diffuse model.
func hayDaviesDiffuse(surfaceTilt, aoi, solarZenith, dni, dhi, dniExtra float64) float64 {
	anisotropy := dni / dniExtra
	rb := beamProjectionRatio(aoi, solarZenith)
	isoFraction := (1 + math.Cos(radians(surfaceTilt))) / 2
	return dhi * (anisotropy*rb + (1-anisotropy)*isoFraction)
}

// perezCoefficients holds the Perez et al. (1990) "allsitescomposite1990"
// brightness coefficients, one row per clearness bin.
var perezCoefficients = [8][6]float64{
	{-0.008, 0.588, -0.062, -0.060, 0.072, -0.022},
	{0.130, 0.683, -0.151, -0.019, 0.066, -0.029},
	{0.330, 0.487, -0.221, 0.055, -0.064, -0.026},
	{0.568, 0.187, -0.295, 0.109, -0.152, -0.014},
	{0.873, -0.392, -0.362, 0.226, -0.462, 0.001},
	{1.132, -1.237, -0.412, 0.288, -0.823, 0.056},
	{1.060, -1.600, -0.359, 0.264, -1.127, 0.131},
	{0.678, -0.327, -0.250, 0.156, -1.377, 0.251},
}

var perezBinEdges = [7]float64{1.065, 1.23, 1.5, 1.95, 2.8, 4.5, 6.2}

// perezDiffuse is the Perez et al. (1990) anisotropic sky diffuse model
// with circumsolar and horizon brightening terms.
func perezDiffuse(surfaceTilt, aoi, solarZenith, dni, dhi, dniExtra float64) float64 {
	if dhi <= 0 {
		return 0
	}

	zenithRad := radians(solarZenith)

	// Sky clearness epsilon selects the coefficient bin.
	const kappa = 1.041
	z3 := kappa * zenithRad * zenithRad * zenithRad
	epsilon := ((dhi+dni)/dhi + z3) / (1 + z3)

	bin := 0
	for _, edge := range perezBinEdges {
		if epsilon > edge {
			bin++
		}
	}
	c := perezCoefficients[bin]

	// Sky brightness delta.
	airmass := relativeAirmass(solarZenith)
	if math.IsInf(airmass, 1) {
		return dhi * (1 + math.Cos(radians(surfaceTilt))) / 2
	}
	delta := dhi * airmass / dniExtra

	f1 := math.Max(0, c[0]+c[1]*delta+zenithRad*c[2])
	f2 := c[3] + c[4]*delta + zenithRad*c[5]

	a := math.Max(math.Cos(radians(aoi)), 0)
	b := math.Max(math.Cos(radians(solarZenith)), math.Cos(radians(85)))

	isoFraction := (1 + math.Cos(radians(surfaceTilt))) / 2
	sky := dhi * ((1-f1)*isoFraction + f1*a/b + f2*math.Sin(radians(surfaceTilt)))
	return math.Max(sky, 0)
}

// incidenceAngleModifier computes the reflection-loss factor for the beam
// component at the given angle of incidence.
func incidenceAngleModifier(aoi float64, m IAMModel) (float64, error) {
	if aoi >= 90 {
		return 0, validateIAMModel(m)
	}
	switch m {
	case ASHRAE:
		const b = 0.05
		return math.Max(1-b*(1/math.Cos(radians(aoi))-1), 0), nil
	case Physical:
		return physicalIAM(aoi), nil
	case MartinRuiz:
		const ar = 0.16
		return (1 - math.Exp(-math.Cos(radians(aoi))/ar)) / (1 - math.Exp(-1/ar)), nil
	default:
		return 0, invalidIAMModel(m)
	}
}

func validateIAMModel(m IAMModel) error {
	switch m {
	case ASHRAE, Physical, MartinRuiz:
		return nil
	}
	return invalidIAMModel(m)
}

// physicalIAM is the Fresnel/Snell glass-cover model with typical glazing
// parameters (n=1.526, K=4 m⁻¹, L=2 mm).
func physicalIAM(aoi float64) float64 {
	const (
		n = 1.526
		k = 4.0
		l = 0.002
	)
	theta := radians(aoi)
	if theta < 1e-9 {
		return 1
	}

	thetaR := math.Asin(math.Sin(theta) / n)

	tau := math.Exp(-k*l/math.Cos(thetaR)) *
		(1 - 0.5*(math.Pow(math.Sin(thetaR-theta), 2)/math.Pow(math.Sin(thetaR+theta), 2)+
			math.Pow(math.Tan(thetaR-theta), 2)/math.Pow(math.Tan(thetaR+theta), 2)))

	tau0 := math.Exp(-k*l) * (1 - math.Pow((n-1)/(n+1), 2))

	return math.Max(tau/tau0, 0)
}
