package astro

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat"
)

func TestGammaRand_MeanAndVariance_MatchTheoretical(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 50000
	for _, shape := range []float64{0.5, 2.0} {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = gammaRand(rng, shape, 1)
		}
		mean := stat.Mean(vals, nil)
		variance := stat.Variance(vals, nil)
		// Gamma(k, 1) has mean k and variance k.
		if math.Abs(mean-shape)/shape > 0.05 {
			t.Errorf("shape %g: mean = %.3f, want ≈ %.3f (within 5%%)", shape, mean, shape)
		}
		if math.Abs(variance-shape)/shape > 0.15 {
			t.Errorf("shape %g: variance = %.3f, want ≈ %.3f (within 15%%)", shape, variance, shape)
		}
	}
}

func TestGengammaDensity_IntegratesToUnitMass(t *testing.T) {
	vd := &GengammaVelDisp{A: 0.869, C: 2.67, SigmaStar: 161, SigmaMin: 10, SigmaMax: 600}
	mass := quad.Fixed(func(s float64) float64 { return vd.Density(s, 0) }, 0, 1000, 400, nil, 0)
	if math.Abs(mass-1) > 5e-3 {
		t.Errorf("density mass = %f, want 1", mass)
	}
}

func TestGengammaDraw_StaysWithinTruncation(t *testing.T) {
	vd := &GengammaVelDisp{A: 0.869, C: 2.67, SigmaStar: 161, SigmaMin: 80, SigmaMax: 300}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		s := vd.Draw(rng, 0)
		if s < vd.SigmaMin || s > vd.SigmaMax {
			t.Fatalf("draw %g outside [%g, %g]", s, vd.SigmaMin, vd.SigmaMax)
		}
	}
}

func TestGengammaDraw_EvolvingKneeShiftsDispersionsUp(t *testing.T) {
	// GIVEN a dispersion function whose knee grows with redshift
	vd := &GengammaVelDisp{A: 0.869, C: 2.67, SigmaStar: 161, Eta: 0.2, SigmaMin: 10, SigmaMax: 600}
	rng := rand.New(rand.NewSource(11))

	// WHEN drawing at z=0 and z=2
	n := 20000
	low := make([]float64, n)
	high := make([]float64, n)
	for i := 0; i < n; i++ {
		low[i] = vd.Draw(rng, 0)
		high[i] = vd.Draw(rng, 2)
	}

	// THEN the z=2 draws are roughly (1+2)^0.2 larger on average
	meanLow := stat.Mean(low, nil)
	meanHigh := stat.Mean(high, nil)
	if meanHigh <= meanLow {
		t.Fatalf("mean sigma at z=2 (%.1f) not above z=0 (%.1f)", meanHigh, meanLow)
	}
	wantRatio := math.Pow(3, 0.2)
	if ratio := meanHigh / meanLow; math.Abs(ratio-wantRatio) > 0.08 {
		t.Errorf("mean ratio = %.3f, want ≈ %.3f", ratio, wantRatio)
	}
}

func TestNewGengammaVelDisp_NonEvolvingIgnoresEta(t *testing.T) {
	vd, err := newGengammaVelDisp(PriorSpec{
		Type:   "gengamma",
		Params: map[string]any{"eta": 0.4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if vd.Eta != 0 {
		t.Errorf("eta = %g, want 0 for the non-evolving model", vd.Eta)
	}
	if vd.sigmaStarAt(3) != vd.SigmaStar {
		t.Errorf("knee should not evolve, got %g at z=3", vd.sigmaStarAt(3))
	}
}

func TestNewGengammaVelDisp_RejectsBadBounds(t *testing.T) {
	_, err := newGengammaVelDisp(PriorSpec{
		Type:   "gengamma",
		Params: map[string]any{"sigma_min": 300.0, "sigma_max": 100.0},
	})
	if err == nil {
		t.Fatal("expected inverted truncation bounds to error")
	}
}
