package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandard_Position_SummerNoonKrakow(t *testing.T) {
	svc := Standard{}
	// Solar noon (about 10:40 UTC at 19.94°E) near the June solstice at
	// 50°N: the sun stands around 90 - 50 + 23.4 ≈ 63° high, bearing south.
	ts := time.Date(2023, 6, 21, 10, 40, 0, 0, time.UTC)
	pos := svc.Position(ts, 50.06, 19.94, 219)

	assert.InDelta(t, 63.4, pos.Elevation, 1.5)
	assert.InDelta(t, 180, pos.Azimuth, 10)
	assert.InDelta(t, 90-pos.Elevation, pos.Zenith, 1e-9)
}

func TestStandard_Position_NightIsBelowHorizon(t *testing.T) {
	svc := Standard{}
	ts := time.Date(2023, 6, 21, 23, 0, 0, 0, time.UTC)
	pos := svc.Position(ts, 50.06, 19.94, 219)
	assert.Less(t, pos.Elevation, 0.0)
}

func TestStandard_Position_WinterLowerThanSummer(t *testing.T) {
	svc := Standard{}
	summer := svc.Position(time.Date(2023, 6, 21, 10, 40, 0, 0, time.UTC), 50.06, 19.94, 219)
	winter := svc.Position(time.Date(2023, 12, 21, 10, 40, 0, 0, time.UTC), 50.06, 19.94, 219)
	assert.Greater(t, summer.Elevation, winter.Elevation+40)
}

func TestStandard_ClearSky_MiddayMagnitudes(t *testing.T) {
	svc := Standard{}
	irr, err := svc.ClearSky(45, 49.8, 19.0, 300, Ineichen, 3.0)
	require.NoError(t, err)

	assert.Greater(t, irr.GHI, 500.0)
	assert.Less(t, irr.GHI, 1100.0)
	assert.Greater(t, irr.DNI, 400.0)
	assert.Less(t, irr.DNI, 1100.0)
	assert.Greater(t, irr.DHI, 0.0)
}

func TestStandard_ClearSky_NightIsZero(t *testing.T) {
	svc := Standard{}
	for _, m := range []ClearSkyModel{Ineichen, SimplifiedSolis} {
		irr, err := svc.ClearSky(-5, 49.8, 19.0, 300, m, 3.0)
		require.NoError(t, err)
		assert.Zero(t, irr.GHI, "model %s", m)
		assert.Zero(t, irr.DNI, "model %s", m)
		assert.Zero(t, irr.DHI, "model %s", m)
	}
}

func TestStandard_ClearSky_TurbidityReducesBeam(t *testing.T) {
	svc := Standard{}
	clean, err := svc.ClearSky(45, 49.8, 19.0, 300, Ineichen, 2.0)
	require.NoError(t, err)
	hazy, err := svc.ClearSky(45, 49.8, 19.0, 300, Ineichen, 5.0)
	require.NoError(t, err)
	assert.Less(t, hazy.DNI, clean.DNI)
}

func TestStandard_ClearSky_DefaultsAndErrors(t *testing.T) {
	svc := Standard{}
	def, err := svc.ClearSky(45, 49.8, 19.0, 300, "", 0)
	require.NoError(t, err)
	ineichen, err := svc.ClearSky(45, 49.8, 19.0, 300, Ineichen, 3.0)
	require.NoError(t, err)
	assert.Equal(t, ineichen, def)

	_, err = svc.ClearSky(45, 49.8, 19.0, 300, "bird", 3.0)
	assert.ErrorContains(t, err, "ineichen")
}

func TestAngleOfIncidence_NormalIncidence(t *testing.T) {
	// Sun directly along the surface normal of a south-facing 35° panel.
	aoi := AngleOfIncidence(35, 180, 35, 180)
	assert.InDelta(t, 0, aoi, 1e-9)

	// Sun overhead on a flat panel.
	aoi = AngleOfIncidence(0, 180, 0, 123)
	assert.InDelta(t, 0, aoi, 1e-9)
}

func TestStandard_POA_TiltBeatsFlatAtLowSun(t *testing.T) {
	svc := Standard{}
	base := POARequest{
		SurfaceAzimuth: 180,
		SolarZenith:    55,
		SolarAzimuth:   180,
		DNI:            700,
		GHI:            550,
		DHI:            150,
		DiffuseModel:   Isotropic,
		IAMModel:       Physical,
		Albedo:         0.2,
	}

	flat := base
	flat.SurfaceTilt = 0
	tilted := base
	tilted.SurfaceTilt = 35

	flatPOA, err := svc.POA(flat)
	require.NoError(t, err)
	tiltedPOA, err := svc.POA(tilted)
	require.NoError(t, err)

	assert.Greater(t, tiltedPOA.Global, flatPOA.Global)
	assert.InDelta(t, tiltedPOA.Direct+tiltedPOA.Diffuse+tiltedPOA.Ground,
		tiltedPOA.Global, 1e-9)
}

func TestStandard_POA_DiffuseModelsAgreeRoughly(t *testing.T) {
	svc := Standard{}
	base := POARequest{
		SurfaceTilt:    35,
		SurfaceAzimuth: 180,
		SolarZenith:    45,
		SolarAzimuth:   180,
		DNI:            700,
		GHI:            650,
		DHI:            155,
		Albedo:         0.2,
	}

	var globals []float64
	for _, m := range []DiffuseModel{Isotropic, HayDavies, Perez} {
		req := base
		req.DiffuseModel = m
		poa, err := svc.POA(req)
		require.NoError(t, err)
		globals = append(globals, poa.Global)
	}
	// The three transposition models differ in the diffuse term only, so
	// the globals should sit within ~15% of each other here.
	for _, g := range globals {
		assert.InEpsilon(t, globals[0], g, 0.15)
	}
}

func TestStandard_POA_Validation(t *testing.T) {
	svc := Standard{}

	_, err := svc.POA(POARequest{SurfaceTilt: 120})
	assert.ErrorContains(t, err, "tilt")

	_, err = svc.POA(POARequest{SurfaceTilt: 35, DNI: -1})
	assert.ErrorContains(t, err, "negative")

	_, err = svc.POA(POARequest{SurfaceTilt: 35, Albedo: 1.5})
	assert.ErrorContains(t, err, "albedo")

	_, err = svc.POA(POARequest{SurfaceTilt: 35, Albedo: 0.2, DiffuseModel: "klucher"})
	assert.ErrorContains(t, err, "diffuse model")

	_, err = svc.POA(POARequest{SurfaceTilt: 35, Albedo: 0.2, IAMModel: "sandia"})
	assert.ErrorContains(t, err, "IAM model")
}

func TestIncidenceAngleModifier_Behavior(t *testing.T) {
	for _, m := range []IAMModel{ASHRAE, Physical, MartinRuiz} {
		head, err := incidenceAngleModifier(0, m)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, head, 0.01, "model %s at normal incidence", m)

		grazing, err := incidenceAngleModifier(80, m)
		require.NoError(t, err)
		assert.Less(t, grazing, head, "model %s", m)

		behind, err := incidenceAngleModifier(95, m)
		require.NoError(t, err)
		assert.Zero(t, behind, "model %s", m)
	}
}
