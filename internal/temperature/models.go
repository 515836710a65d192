// Package temperature models PV cell temperature from plane-of-array
// irradiance and ambient conditions, and the resulting power correction.
//
// Four interchangeable empirical models are provided: Faiman (IEC 61853),
// SAPM (Sandia), PVsyst and a generic linear heat-loss model that can
// reproduce the others through parameter choice. All of them return the
// ambient temperature exactly when irradiance is zero.
package temperature

import (
	"fmt"
	"math"
	"strings"
)

// Model selects a cell temperature model.
type Model string

const (
	Faiman        Model = "faiman"
	SAPM          Model = "sapm"
	PVsyst        Model = "pvsyst"
	GenericLinear Model = "generic_linear"
)

// FaimanParams are the heat loss factors of the Faiman model. Defaults
// are typical for open-rack mounting.
type FaimanParams struct {
	U0 float64 // combined heat loss, W/(m²·K)
	U1 float64 // wind-dependent heat loss, W/(m²·K)/(m/s)
}

// DefaultFaimanParams returns open-rack coefficients.
func DefaultFaimanParams() FaimanParams {
	return FaimanParams{U0: 25.0, U1: 6.84}
}

// FaimanModel computes cell temperature as
// T = T_air + POA / (u0 + u1·wind).
func FaimanModel(poaGlobal, tempAir, windSpeed float64, p FaimanParams) float64 {
	return tempAir + poaGlobal/(p.U0+p.U1*windSpeed)
}

// SAPMParams are the empirical coefficients of the Sandia Array
// Performance Model. Defaults are for glass/glass modules on open racks.
type SAPMParams struct {
	A        float64 // exponential coefficient
	B        float64 // wind coefficient
	DeltaT   float64 // cell-to-module-back offset at reference irradiance, °C
	IrradRef float64 // reference irradiance, W/m²
}

// DefaultSAPMParams returns glass/glass open-rack coefficients.
func DefaultSAPMParams() SAPMParams {
	return SAPMParams{A: -3.47, B: -0.0594, DeltaT: 3.0, IrradRef: 1000.0}
}

// SAPMModel computes module back temperature then offsets to the cell:
// T_mod = POA·exp(a + b·wind) + T_air; T_cell = T_mod + (POA/E_ref)·ΔT.
func SAPMModel(poaGlobal, tempAir, windSpeed float64, p SAPMParams) float64 {
	tempModule := poaGlobal*math.Exp(p.A+p.B*windSpeed) + tempAir
	return tempModule + poaGlobal/p.IrradRef*p.DeltaT
}

// PVsystParams are the heat transfer coefficients of the PVsyst model.
type PVsystParams struct {
	UC               float64 // constant heat transfer, W/(m²·K)
	UV               float64 // wind-dependent heat transfer, W/(m²·K)/(m/s)
	ModuleEfficiency float64 // electrical efficiency, 0-1
	AlphaAbsorption  float64 // light absorptance, 0-1
}

// DefaultPVsystParams returns free-standing module coefficients.
func DefaultPVsystParams() PVsystParams {
	return PVsystParams{UC: 29.0, UV: 0.0, ModuleEfficiency: 0.1, AlphaAbsorption: 0.9}
}

// PVsystModel removes the electrically converted fraction from the heat
// balance: T = T_air + α·POA·(1−η) / (u_c + u_v·wind).
func PVsystModel(poaGlobal, tempAir, windSpeed float64, p PVsystParams) float64 {
	absorbed := p.AlphaAbsorption * poaGlobal * (1 - p.ModuleEfficiency)
	return tempAir + absorbed/(p.UC+p.UV*windSpeed)
}

// GenericLinearParams are the fully free coefficients of the generic
// linear heat-loss model. There are no defaults; callers must supply a
// calibrated set.
type GenericLinearParams struct {
	UConst           float64 // constant heat transfer, W/(m²·K)
	DUWind           float64 // wind-dependent heat transfer, W/(m²·K)/(m/s)
	ModuleEfficiency float64 // electrical efficiency, 0-1
	Absorptance      float64 // light absorptance, 0-1
}

// GenericLinearModel is the same heat balance as PVsyst with free
// coefficients, a superset able to reproduce any of the other models.
func GenericLinearModel(poaGlobal, tempAir, windSpeed float64, p GenericLinearParams) float64 {
	absorbed := p.Absorptance * poaGlobal * (1 - p.ModuleEfficiency)
	return tempAir + absorbed/(p.UConst+p.DUWind*windSpeed)
}

// Params optionally overrides the coefficients of one model for the
// CellTemperature dispatch. A nil field means "use the model default".
type Params struct {
	Faiman        *FaimanParams
	SAPM          *SAPMParams
	PVsyst        *PVsystParams
	GenericLinear *GenericLinearParams
}

// CellTemperature dispatches to the named model. Model matching is
// case-insensitive; an unknown name is an error listing the valid options.
func CellTemperature(poaGlobal, tempAir, windSpeed float64, m Model, params *Params) (float64, error) {
	if params == nil {
		params = &Params{}
	}
	switch Model(strings.ToLower(string(m))) {
	case Faiman, "":
		p := DefaultFaimanParams()
		if params.Faiman != nil {
			p = *params.Faiman
		}
		return FaimanModel(poaGlobal, tempAir, windSpeed, p), nil
	case SAPM:
		p := DefaultSAPMParams()
		if params.SAPM != nil {
			p = *params.SAPM
		}
		return SAPMModel(poaGlobal, tempAir, windSpeed, p), nil
	case PVsyst:
		p := DefaultPVsystParams()
		if params.PVsyst != nil {
			p = *params.PVsyst
		}
		return PVsystModel(poaGlobal, tempAir, windSpeed, p), nil
	case GenericLinear:
		if params.GenericLinear == nil {
			return 0, fmt.Errorf("generic_linear model requires explicit coefficients")
		}
		return GenericLinearModel(poaGlobal, tempAir, windSpeed, *params.GenericLinear), nil
	default:
		return 0, fmt.Errorf("invalid temperature model %q, valid options: %s, %s, %s, %s",
			m, Faiman, SAPM, PVsyst, GenericLinear)
	}
}

// CellTemperatureSeries is the element-wise form of CellTemperature over
// parallel slices.
func CellTemperatureSeries(poaGlobal, tempAir, windSpeed []float64, m Model, params *Params) ([]float64, error) {
	n := len(poaGlobal)
	if len(tempAir) != n || len(windSpeed) != n {
		return nil, fmt.Errorf("series lengths differ: poa=%d temp=%d wind=%d",
			len(poaGlobal), len(tempAir), len(windSpeed))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t, err := CellTemperature(poaGlobal[i], tempAir[i], windSpeed[i], m, params)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// CorrectionFactor is the linear power derate for cell temperature:
// 1 + coeff·(T_cell − T_ref). It equals exactly 1 at the reference
// temperature; this is the single point where temperature affects power.
func CorrectionFactor(cellTemperature, tempCoefficient, tempRef float64) float64 {
	return 1 + tempCoefficient*(cellTemperature-tempRef)
}

// DefaultCorrectionFactor applies the typical crystalline silicon
// coefficient (−0.4%/°C) against the 25 °C STC reference.
func DefaultCorrectionFactor(cellTemperature float64) float64 {
	return CorrectionFactor(cellTemperature, -0.004, 25.0)
}
