// Package atmosphere adjusts clear-sky irradiance for cloud cover using
// empirical attenuation models.
package atmosphere

import (
	"fmt"
	"math"

	"pvsimulator/internal/model"
)

// CloudModel selects a cloud attenuation model.
type CloudModel string

const (
	// CampbellNorman accounts for solar elevation effects on cloud
	// transmission (Campbell & Norman 1998).
	CampbellNorman CloudModel = "campbell_norman"
	// SimpleLinear assumes a 75% irradiance reduction at full overcast.
	SimpleLinear CloudModel = "simple_linear"
	// KastenCzeplak is the empirical fit of Kasten & Czeplak (1980).
	KastenCzeplak CloudModel = "kasten_czeplak"
)

// CloudAdjustedIrradiance is irradiance after cloud attenuation, together
// with the cloud fraction that produced it.
type CloudAdjustedIrradiance struct {
	model.IrradianceComponents
	CloudFraction float64
}

// NormalizeCloudCover converts a cloud amount given as either a 0-1
// fraction or a 0-100 percentage into a fraction. Values strictly between
// 1 and 2 cannot be told apart and are rejected.
func NormalizeCloudCover(cloudCover float64) (float64, error) {
	if cloudCover < 0 {
		return 0, fmt.Errorf("cloud cover must be 0-100%% or 0-1, got %v", cloudCover)
	}
	if cloudCover > 1 && cloudCover < 2 {
		return 0, fmt.Errorf(
			"cloud cover values between 1.0 and 2.0 are ambiguous, use 0-1 for fraction or 0-100 for percentage, got %v",
			cloudCover)
	}
	if cloudCover >= 2 {
		if cloudCover > 100 {
			return 0, fmt.Errorf("cloud cover must be 0-100%% or 0-1, got %v", cloudCover)
		}
		return cloudCover / 100, nil
	}
	return cloudCover, nil
}

// CalculateAttenuation returns the irradiance attenuation factor for the
// given cloud amount and solar elevation (degrees). A factor of 1 means no
// attenuation.
func CalculateAttenuation(cloudCover, solarElevation float64, cloudModel CloudModel) (float64, error) {
	fraction, err := NormalizeCloudCover(cloudCover)
	if err != nil {
		return 0, err
	}

	if cloudModel == "" {
		cloudModel = CampbellNorman
	}
	switch cloudModel {
	case CampbellNorman:
		return campbellNorman(fraction, solarElevation), nil
	case SimpleLinear:
		return 1 - 0.75*fraction, nil
	case KastenCzeplak:
		return kastenCzeplak(fraction), nil
	default:
		return 0, fmt.Errorf("invalid cloud cover model %q, valid options: %s, %s, %s",
			cloudModel, CampbellNorman, SimpleLinear, KastenCzeplak)
	}
}

// CalculateAttenuationSeries is the element-wise form of
// CalculateAttenuation over parallel slices.
func CalculateAttenuationSeries(cloudCover, solarElevation []float64, cloudModel CloudModel) ([]float64, error) {
	if len(cloudCover) != len(solarElevation) {
		return nil, fmt.Errorf("cloud cover and elevation lengths differ: %d vs %d",
			len(cloudCover), len(solarElevation))
	}
	out := make([]float64, len(cloudCover))
	for i := range cloudCover {
		f, err := CalculateAttenuation(cloudCover[i], solarElevation[i], cloudModel)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func campbellNorman(cloudFraction, solarElevation float64) float64 {
	sinElev := math.Sin(radians(solarElevation))
	// Floor avoids the horizon singularity.
	sinElev = math.Max(sinElev, 0.01)

	// Overcast transmittance: 0.35 at the horizon rising slowly with sun
	// height, interpolated against the clear-sky value of 1.
	tauOvercast := 0.35 + 0.1*sinElev
	return 1 - cloudFraction*(1-tauOvercast)
}

func kastenCzeplak(cloudFraction float64) float64 {
	const (
		a = 0.88
		b = -0.84
	)
	return math.Max(1+b*math.Pow(cloudFraction, a), 0)
}

// ApplyCloudCover attenuates clear-sky irradiance for cloud cover and
// redistributes the blocked energy: the beam is attenuated quadratically,
// half of the blocked beam reappears as forward-scattered diffuse, and GHI
// is recomputed from the adjusted components so the bundle stays
// internally consistent. The redistribution is an engineering heuristic,
// not a radiative-transfer result.
func ApplyCloudCover(ghi, dni, dhi, cloudCover, solarElevation float64,
	cloudModel CloudModel) (CloudAdjustedIrradiance, error) {

	attenuation, err := CalculateAttenuation(cloudCover, solarElevation, cloudModel)
	if err != nil {
		return CloudAdjustedIrradiance{}, err
	}
	fraction, err := NormalizeCloudCover(cloudCover)
	if err != nil {
		return CloudAdjustedIrradiance{}, err
	}

	att2 := attenuation * attenuation
	dniCloudy := dni * att2
	dhiCloudy := dhi + dni*(1-att2)*0.5

	// GHI is rebuilt from the adjusted beam and diffuse components rather
	// than attenuated independently.
	cosZenith := math.Max(math.Cos(radians(90-solarElevation)), 0)
	ghiCloudy := dniCloudy*cosZenith + dhiCloudy

	return CloudAdjustedIrradiance{
		IrradianceComponents: model.IrradianceComponents{
			GHI: ghiCloudy,
			DNI: dniCloudy,
			DHI: dhiCloudy,
		},
		CloudFraction: fraction,
	}, nil
}

// ApplyCloudCoverSeries applies ApplyCloudCover element-wise over parallel
// slices of equal length.
func ApplyCloudCoverSeries(ghi, dni, dhi, cloudCover, solarElevation []float64,
	cloudModel CloudModel) ([]CloudAdjustedIrradiance, error) {

	n := len(ghi)
	if len(dni) != n || len(dhi) != n || len(cloudCover) != n || len(solarElevation) != n {
		return nil, fmt.Errorf("series lengths differ: ghi=%d dni=%d dhi=%d cloud=%d elevation=%d",
			len(ghi), len(dni), len(dhi), len(cloudCover), len(solarElevation))
	}
	out := make([]CloudAdjustedIrradiance, n)
	for i := 0; i < n; i++ {
		adj, err := ApplyCloudCover(ghi[i], dni[i], dhi[i], cloudCover[i], solarElevation[i], cloudModel)
		if err != nil {
			return nil, err
		}
		out[i] = adj
	}
	return out, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
