package temperature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellTemperature_ZeroIrradianceEqualsAmbient(t *testing.T) {
	params := &Params{
		GenericLinear: &GenericLinearParams{UConst: 25, DUWind: 1.2, ModuleEfficiency: 0.1, Absorptance: 0.9},
	}
	for _, m := range []Model{Faiman, SAPM, PVsyst, GenericLinear} {
		cell, err := CellTemperature(0, 15.0, 3.0, m, params)
		require.NoError(t, err)
		assert.InDelta(t, 15.0, cell, 1e-9, "model %s", m)
	}
}

func TestCellTemperature_HotterUnderSun(t *testing.T) {
	for _, m := range []Model{Faiman, SAPM, PVsyst} {
		cell, err := CellTemperature(800, 25.0, 1.0, m, nil)
		require.NoError(t, err)
		assert.Greater(t, cell, 25.0, "model %s", m)
	}
}

func TestCellTemperature_WindCoolsFaiman(t *testing.T) {
	calm, err := CellTemperature(800, 25.0, 0, Faiman, nil)
	require.NoError(t, err)
	breezy, err := CellTemperature(800, 25.0, 8, Faiman, nil)
	require.NoError(t, err)
	assert.Less(t, breezy, calm)
}

func TestCellTemperature_DefaultsToFaiman(t *testing.T) {
	def, err := CellTemperature(600, 20.0, 2.0, "", nil)
	require.NoError(t, err)
	faiman, err := CellTemperature(600, 20.0, 2.0, Faiman, nil)
	require.NoError(t, err)
	assert.Equal(t, faiman, def)
}

func TestCellTemperature_CaseInsensitiveDispatch(t *testing.T) {
	upper, err := CellTemperature(600, 20.0, 2.0, "SAPM", nil)
	require.NoError(t, err)
	lower, err := CellTemperature(600, 20.0, 2.0, SAPM, nil)
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestCellTemperature_GenericLinearRequiresParams(t *testing.T) {
	_, err := CellTemperature(600, 20.0, 2.0, GenericLinear, nil)
	assert.ErrorContains(t, err, "coefficients")
}

func TestCellTemperature_UnknownModel(t *testing.T) {
	_, err := CellTemperature(600, 20.0, 2.0, "noct", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "faiman")
	assert.ErrorContains(t, err, "pvsyst")
}

func TestFaimanModel_ReferenceValue(t *testing.T) {
	// T = 25 + 800/(25 + 6.84*2)
	cell := FaimanModel(800, 25.0, 2.0, DefaultFaimanParams())
	assert.InDelta(t, 25.0+800.0/38.68, cell, 1e-9)
}

func TestGenericLinearModel_ReproducesPVsyst(t *testing.T) {
	pv := PVsystModel(750, 22.0, 3.0, DefaultPVsystParams())
	gen := GenericLinearModel(750, 22.0, 3.0, GenericLinearParams{
		UConst: 29.0, DUWind: 0.0, ModuleEfficiency: 0.1, Absorptance: 0.9,
	})
	assert.InDelta(t, pv, gen, 1e-12)
}

func TestCellTemperatureSeries_LengthMismatch(t *testing.T) {
	_, err := CellTemperatureSeries([]float64{1, 2}, []float64{1}, []float64{1, 2}, Faiman, nil)
	assert.ErrorContains(t, err, "lengths differ")
}

func TestCorrectionFactor_UnityAtReference(t *testing.T) {
	assert.Equal(t, 1.0, CorrectionFactor(25.0, -0.004, 25.0))
	assert.Equal(t, 1.0, CorrectionFactor(25.0, -0.0035, 25.0))
}

func TestCorrectionFactor_DeratesWhenHot(t *testing.T) {
	// 20 degrees over reference at -0.4%/°C loses 8%.
	assert.InDelta(t, 0.92, CorrectionFactor(45.0, -0.004, 25.0), 1e-9)
	assert.InDelta(t, 0.92, DefaultCorrectionFactor(45.0), 1e-9)
}

func TestCorrectionFactor_BoostsWhenCold(t *testing.T) {
	assert.Greater(t, DefaultCorrectionFactor(5.0), 1.0)
}
