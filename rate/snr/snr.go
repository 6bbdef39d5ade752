// Package snr scores events with an analytic inspiral signal-to-noise
// model and converts scores into detection probabilities.
package snr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Scorer assigns optimal single-detector SNRs to sampled events.
type Scorer interface {
	// Score returns one SNR per event, reading the source distance from
	// the named batch field.
	Score(batch map[string][]float64, distanceField string) ([]float64, error)
}

// InspiralScorer approximates the SNR of a compact binary inspiral by
// chirp mass and distance scaling against a fixed reference system,
// modulated by the detector's antenna response when the batch carries
// orientation angles.
type InspiralScorer struct {
	RhoRef  float64 // optimal SNR of the reference system
	McRef   float64 // reference chirp mass, solar masses
	DistRef float64 // reference luminosity distance, Mpc
}

// NewInspiralScorer returns a scorer tuned so a 30+30 binary near 1.6 Gpc
// sits at the detection threshold when optimally oriented.
func NewInspiralScorer() *InspiralScorer {
	return &InspiralScorer{RhoRef: 8, McRef: 25, DistRef: 1600}
}

// angleFields are consumed together; a batch missing any of them is
// scored at optimal orientation.
var angleFields = []string{"ra", "dec", "theta_jn", "psi"}

// Score implements Scorer. Events at non-positive distance score zero:
// they carry no image to detect.
func (s *InspiralScorer) Score(batch map[string][]float64, distanceField string) ([]float64, error) {
	for _, f := range []string{"mass_1", "mass_2", distanceField} {
		if _, ok := batch[f]; !ok {
			return nil, fmt.Errorf("snr scorer needs field %q", f)
		}
	}
	m1 := batch["mass_1"]
	m2 := batch["mass_2"]
	dist := batch[distanceField]
	if len(m1) != len(dist) || len(m2) != len(dist) {
		return nil, fmt.Errorf("snr scorer: field lengths disagree (%d, %d, %d)",
			len(m1), len(m2), len(dist))
	}

	withAngles := true
	for _, f := range angleFields {
		if len(batch[f]) != len(dist) {
			withAngles = false
			break
		}
	}

	out := make([]float64, len(dist))
	for i := range out {
		if dist[i] <= 0 {
			continue
		}
		rho := s.RhoRef * math.Pow(ChirpMass(m1[i], m2[i])/s.McRef, 5.0/6.0) * s.DistRef / dist[i]
		if withAngles {
			rho *= projectionFactor(batch["ra"][i], batch["dec"][i], batch["theta_jn"][i], batch["psi"][i])
		}
		out[i] = rho
	}
	return out, nil
}

// ChirpMass returns (m1 m2)^(3/5) / (m1+m2)^(1/5), the mass combination
// that sets the inspiral amplitude.
func ChirpMass(m1, m2 float64) float64 {
	return math.Pow(m1*m2, 0.6) / math.Pow(m1+m2, 0.2)
}

// projectionFactor folds the quadrupole antenna response and the binary
// inclination into a factor in [0, 1]; an optimally oriented overhead
// source scores 1.
func projectionFactor(ra, dec, thetaJN, psi float64) float64 {
	theta := math.Pi/2 - dec
	ct := math.Cos(theta)
	half := 0.5 * (1 + ct*ct)
	fplus := half*math.Cos(2*ra)*math.Cos(2*psi) - ct*math.Sin(2*ra)*math.Sin(2*psi)
	fcross := half*math.Cos(2*ra)*math.Sin(2*psi) + ct*math.Sin(2*ra)*math.Cos(2*psi)
	ci := math.Cos(thetaJN)
	plusAmp := fplus * (1 + ci*ci) / 2
	return math.Sqrt(plusAmp*plusAmp + fcross*fcross*ci*ci)
}

// Pdet returns the probability that Gaussian noise fluctuations lift an
// event of optimal SNR rho across the detection threshold.
func Pdet(rho, threshold float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: 1}.CDF(rho - threshold)
}
