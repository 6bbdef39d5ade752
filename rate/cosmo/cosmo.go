// Package cosmo provides a flat Lambda-CDM cosmology: exact distance and
// volume integrals, plus cached interpolant tables for the hot paths.
package cosmo

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// SpeedOfLight is c in km/s.
const SpeedOfLight = 299792.458

// FlatLambdaCDM is a flat Friedmann cosmology with matter density Om0 and
// Hubble constant H0 in km/s/Mpc. All distances are Mpc.
type FlatLambdaCDM struct {
	H0  float64 `json:"h0"`
	Om0 float64 `json:"om0"`
}

// Default returns the cosmology the reference rates are quoted for.
func Default() FlatLambdaCDM {
	return FlatLambdaCDM{H0: 70, Om0: 0.3}
}

// E returns the dimensionless Hubble parameter E(z).
func (c FlatLambdaCDM) E(z float64) float64 {
	zp := 1 + z
	return math.Sqrt(c.Om0*zp*zp*zp + (1 - c.Om0))
}

// HubbleDistance returns c/H0 in Mpc.
func (c FlatLambdaCDM) HubbleDistance() float64 {
	return SpeedOfLight / c.H0
}

// ComovingDistance returns the line-of-sight comoving distance to z in
// Mpc, by fixed-order Gauss-Legendre quadrature of 1/E.
func (c FlatLambdaCDM) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	integral := quad.Fixed(func(zz float64) float64 { return 1 / c.E(zz) }, 0, z, 128, nil, 0)
	return c.HubbleDistance() * integral
}

// LuminosityDistance returns (1+z) times the comoving distance, Mpc.
func (c FlatLambdaCDM) LuminosityDistance(z float64) float64 {
	return (1 + z) * c.ComovingDistance(z)
}

// AngularDiameterDistance returns the comoving distance over (1+z), Mpc.
func (c FlatLambdaCDM) AngularDiameterDistance(z float64) float64 {
	return c.ComovingDistance(z) / (1 + z)
}

// AngularDiameterDistanceZ1Z2 returns the angular diameter distance of z2
// as seen from z1 < z2, Mpc. Flat geometry: comoving distances subtract.
func (c FlatLambdaCDM) AngularDiameterDistanceZ1Z2(z1, z2 float64) float64 {
	return (c.ComovingDistance(z2) - c.ComovingDistance(z1)) / (1 + z2)
}

// DifferentialComovingVolume returns dVc/dz over the full sky in Mpc^3.
func (c FlatLambdaCDM) DifferentialComovingVolume(z float64) float64 {
	dc := c.ComovingDistance(z)
	return 4 * math.Pi * c.HubbleDistance() * dc * dc / c.E(z)
}
