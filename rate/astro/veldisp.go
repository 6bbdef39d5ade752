package astro

import (
	"fmt"
	"math"
	"math/rand"
)

// GengammaVelDisp models the velocity dispersion function of elliptical
// lens galaxies as a generalized gamma law: sigma/sigmaStar = G^(1/c)
// with G ~ Gamma(a, 1). The evolving variant scales the knee with lens
// redshift, sigmaStar (1+z)^eta.
type GengammaVelDisp struct {
	A         float64 // gamma shape
	C         float64 // power transform exponent
	SigmaStar float64 // knee of the dispersion function, km/s
	Eta       float64 // redshift evolution exponent; 0 = no evolution
	SigmaMin  float64 // truncation bounds, km/s
	SigmaMax  float64
}

func newGengammaVelDisp(p PriorSpec) (*GengammaVelDisp, error) {
	const prefix = "lens.velocity_dispersion"
	g := &GengammaVelDisp{}
	fields := []struct {
		dst  *float64
		name string
		def  float64
	}{
		{&g.A, "a", 0.869},
		{&g.C, "c", 2.67},
		{&g.SigmaStar, "sigma_star", 161.0},
		{&g.Eta, "eta", 0.2},
		{&g.SigmaMin, "sigma_min", 10.0},
		{&g.SigmaMax, "sigma_max", 600.0},
	}
	for _, f := range fields {
		v, err := floatParamOr(prefix, p, f.name, f.def)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if p.Type == "gengamma" {
		g.Eta = 0
	}
	if g.A <= 0 || g.C <= 0 || g.SigmaStar <= 0 {
		return nil, fmt.Errorf("%s: a, c and sigma_star must be positive", prefix)
	}
	if g.SigmaMin <= 0 || g.SigmaMax <= g.SigmaMin {
		return nil, fmt.Errorf("%s: need 0 < sigma_min < sigma_max, got [%g, %g]", prefix, g.SigmaMin, g.SigmaMax)
	}
	return g, nil
}

func (g *GengammaVelDisp) sigmaStarAt(z float64) float64 {
	if g.Eta == 0 {
		return g.SigmaStar
	}
	return g.SigmaStar * math.Pow(1+z, g.Eta)
}

// Density returns the gengamma density of sigma at lens redshift z,
// before truncation to [SigmaMin, SigmaMax].
func (g *GengammaVelDisp) Density(sigma, z float64) float64 {
	star := g.sigmaStarAt(z)
	x := sigma / star
	if x <= 0 {
		return 0
	}
	return g.C * math.Pow(x, g.A*g.C-1) * math.Exp(-math.Pow(x, g.C)) / (star * math.Gamma(g.A))
}

// Draw samples one velocity dispersion at lens redshift z, redrawing
// until the variate lands inside the truncation bounds.
func (g *GengammaVelDisp) Draw(rng *rand.Rand, z float64) float64 {
	star := g.sigmaStarAt(z)
	for {
		sigma := star * math.Pow(gammaRand(rng, g.A, 1), 1/g.C)
		if sigma >= g.SigmaMin && sigma <= g.SigmaMax {
			return sigma
		}
	}
}

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's
// method. For shape >= 1: direct method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		// Ahrens-Dieter: Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	// Marsaglia-Tsang for shape >= 1
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}
