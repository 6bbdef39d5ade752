package astro

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/lensrate/lensrate/rate/cosmo"
	"github.com/lensrate/lensrate/rate/interp"
)

// yearSeconds spans one Julian year, for drawing geocentric event times.
const yearSeconds = 365.25 * 86400

// SourcePopulation samples the intrinsic parameters of compact binary
// mergers: redshift from the cached merger-rate quantile table, component
// masses from the configured mass model, and isotropic orientations.
type SourcePopulation struct {
	spec   *PopulationSpec
	lookup *cosmo.Lookup

	rate func(z float64) float64
	zInv *interp.Interpolant
	mass massModel

	// NormZ is the detector-frame merger rate integrated over the sampled
	// volume, events per year. Monte Carlo means of per-event detection
	// outcomes scale against it.
	NormZ float64
}

// NewSourcePopulation builds or loads the population's quantile tables
// through the cache.
func NewSourcePopulation(spec *PopulationSpec, lookup *cosmo.Lookup, cache *interp.Cache, force bool) (*SourcePopulation, error) {
	rate, rateParams, err := redshiftRateDensity(spec.Source.Redshift)
	if err != nil {
		return nil, err
	}
	p := &SourcePopulation{spec: spec, lookup: lookup, rate: rate}

	zgrid, err := interp.Linspace(0, spec.ZMax, spec.Grids.redshift())
	if err != nil {
		return nil, fmt.Errorf("source redshift grid: %w", err)
	}
	params := map[string]float64{"h0": lookup.Cosmo.H0, "om0": lookup.Cosmo.Om0}
	for name, v := range rateParams {
		params[name] = v
	}
	key := interp.Key{
		Model:    "source_redshift_" + spec.Source.Redshift.Type,
		Category: interp.CategoryInverseCDF,
		Dim:      1,
		XGrid:    zgrid.Spec(),
		Params:   params,
	}
	p.zInv, err = cache.GetInterpolant(key, force, func() (*interp.Interpolant, error) {
		return interp.Build(interp.CategoryInverseCDF, zgrid, p.ZPriorDensity)
	})
	if err != nil {
		return nil, fmt.Errorf("source redshift table: %w", err)
	}
	p.NormZ = quad.Fixed(p.ZPriorDensity, 0, spec.ZMax, 256, nil, 0)

	p.mass, err = newMassModel(spec, cache, force)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MergerRateDensity returns the source-frame merger rate density at z in
// Mpc^-3 yr^-1 for the configured model.
func (p *SourcePopulation) MergerRateDensity(z float64) float64 {
	return p.rate(z)
}

// ZPriorDensity returns the unnormalized detector-frame merger rate per
// unit redshift: R(z)/(1+z) dVc/dz. Its integral over [0, zmax] is the
// total event rate per year.
func (p *SourcePopulation) ZPriorDensity(z float64) float64 {
	return p.rate(z) / (1 + z) * p.lookup.DVcDz(z)
}

// redshiftRateDensity resolves the merger rate density model named by the
// prior and reports the parameters that pin its cache keys.
func redshiftRateDensity(prior PriorSpec) (func(float64) float64, map[string]float64, error) {
	const prefix = "source.redshift"
	r0, err := floatParamOr(prefix, prior, "r0", 2.39e-8)
	if err != nil {
		return nil, nil, err
	}
	switch prior.Type {
	case "oguri2018":
		// Madau-Dickinson style fit: rises to a peak near z~2, decays
		// exponentially beyond.
		var b2, b3, b4 float64
		for _, f := range []struct {
			dst  *float64
			name string
			def  float64
		}{{&b2, "b2", 1.6}, {&b3, "b3", 2.1}, {&b4, "b4", 30.0}} {
			v, err := floatParamOr(prefix, prior, f.name, f.def)
			if err != nil {
				return nil, nil, err
			}
			*f.dst = v
		}
		fn := func(z float64) float64 {
			return r0 * (b4 + 1) * math.Exp(b2*z) / (b4 + math.Exp(b3*z))
		}
		return fn, map[string]float64{"r0": r0, "b2": b2, "b3": b3, "b4": b4}, nil
	case "uniform_comoving":
		fn := func(float64) float64 { return r0 }
		return fn, map[string]float64{"r0": r0}, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown model %q", prefix, prior.Type)
	}
}

// Sample draws n merger events. Fields: zs, mass_1, mass_2, ra, dec,
// theta_jn, psi, phase, geocent_time, luminosity_distance.
func (p *SourcePopulation) Sample(eng *interp.Engine, rng *rand.Rand, n int) (map[string][]float64, error) {
	zs, err := eng.Draw(p.zInv, n)
	if err != nil {
		return nil, fmt.Errorf("drawing source redshifts: %w", err)
	}
	m1, m2, err := p.mass.Sample(eng, rng, n)
	if err != nil {
		return nil, fmt.Errorf("drawing component masses: %w", err)
	}
	out := sampleAngles(rng, n)
	dl := make([]float64, n)
	for i, z := range zs {
		dl[i] = p.lookup.DL(z)
	}
	out["zs"] = zs
	out["mass_1"] = m1
	out["mass_2"] = m2
	out["luminosity_distance"] = dl
	return out, nil
}

// SampleMasses draws n component mass pairs, heavier first.
func (p *SourcePopulation) SampleMasses(eng *interp.Engine, rng *rand.Rand, n int) (m1, m2 []float64, err error) {
	return p.mass.Sample(eng, rng, n)
}

// sampleAngles draws isotropic sky position and orientation angles plus a
// geocentric arrival time within one year.
func sampleAngles(rng *rand.Rand, n int) map[string][]float64 {
	ra := make([]float64, n)
	dec := make([]float64, n)
	thetaJN := make([]float64, n)
	psi := make([]float64, n)
	phase := make([]float64, n)
	gpsTime := make([]float64, n)
	for i := 0; i < n; i++ {
		ra[i] = 2 * math.Pi * rng.Float64()
		dec[i] = math.Asin(2*rng.Float64() - 1)
		thetaJN[i] = math.Acos(2*rng.Float64() - 1)
		psi[i] = math.Pi * rng.Float64()
		phase[i] = 2 * math.Pi * rng.Float64()
		gpsTime[i] = yearSeconds * rng.Float64()
	}
	return map[string][]float64{
		"ra": ra, "dec": dec, "theta_jn": thetaJN,
		"psi": psi, "phase": phase, "geocent_time": gpsTime,
	}
}

// massModel draws component masses in solar masses, heavier first.
type massModel interface {
	Sample(eng *interp.Engine, rng *rand.Rand, n int) (m1, m2 []float64, err error)
}

func newMassModel(spec *PopulationSpec, cache *interp.Cache, force bool) (massModel, error) {
	prior := spec.Source.Mass
	switch prior.Type {
	case "powerlaw_peak":
		return newPowerlawPeakMasses(spec, cache, force)
	case "uniform_pair":
		return newUniformPairMasses(prior)
	default:
		return nil, fmt.Errorf("source.mass: unknown model %q", prior.Type)
	}
}

// plpParams holds the truncated power law + Gaussian peak mass function.
type plpParams struct {
	MMin, MMax   float64
	Alpha, Beta  float64
	DeltaM       float64
	LambdaPeak   float64
	MuG, SigmaG  float64
	powerlawNorm float64
}

// powerlawPeakMasses draws the primary mass by inverse transform from the
// cached quantile table and the mass ratio from a family conditioned on
// the primary.
type powerlawPeakMasses struct {
	par   plpParams
	m1Inv *interp.Interpolant
	qFam  *interp.Family
}

func newPowerlawPeakMasses(spec *PopulationSpec, cache *interp.Cache, force bool) (*powerlawPeakMasses, error) {
	const prefix = "source.mass"
	prior := spec.Source.Mass
	var par plpParams
	fields := []struct {
		dst  *float64
		name string
		def  float64
	}{
		{&par.MMin, "mmin", 4.98},
		{&par.MMax, "mmax", 112.5},
		{&par.Alpha, "alpha", 3.78},
		{&par.Beta, "beta", 0.81},
		{&par.DeltaM, "delta_m", 4.8},
		{&par.LambdaPeak, "lambda_peak", 0.03},
		{&par.MuG, "mu_g", 32.27},
		{&par.SigmaG, "sigma_g", 3.88},
	}
	for _, f := range fields {
		v, err := floatParamOr(prefix, prior, f.name, f.def)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if par.MMin <= 0 || par.MMax <= par.MMin {
		return nil, fmt.Errorf("%s: need 0 < mmin < mmax, got [%g, %g]", prefix, par.MMin, par.MMax)
	}
	if par.Alpha == 1 {
		return nil, fmt.Errorf("%s: alpha = 1 has no normalizable power law", prefix)
	}
	if par.DeltaM <= 0 || par.SigmaG <= 0 {
		return nil, fmt.Errorf("%s: delta_m and sigma_g must be positive", prefix)
	}
	if par.LambdaPeak < 0 || par.LambdaPeak > 1 {
		return nil, fmt.Errorf("%s: lambda_peak must lie in [0, 1], got %g", prefix, par.LambdaPeak)
	}
	par.powerlawNorm = (1 - par.Alpha) /
		(math.Pow(par.MMax, 1-par.Alpha) - math.Pow(par.MMin, 1-par.Alpha))

	m := &powerlawPeakMasses{par: par}
	params := map[string]float64{
		"mmin": par.MMin, "mmax": par.MMax, "alpha": par.Alpha, "beta": par.Beta,
		"delta_m": par.DeltaM, "lambda_peak": par.LambdaPeak, "mu_g": par.MuG, "sigma_g": par.SigmaG,
	}

	mgrid, err := interp.Linspace(par.MMin, par.MMax, spec.Grids.mass())
	if err != nil {
		return nil, fmt.Errorf("primary mass grid: %w", err)
	}
	m1Key := interp.Key{
		Model:    "source_mass_primary_" + prior.Type,
		Category: interp.CategoryInverseCDF,
		Dim:      1,
		XGrid:    mgrid.Spec(),
		Params:   params,
	}
	m.m1Inv, err = cache.GetInterpolant(m1Key, force, func() (*interp.Interpolant, error) {
		return interp.Build(interp.CategoryInverseCDF, mgrid, par.primaryDensity)
	})
	if err != nil {
		return nil, fmt.Errorf("primary mass table: %w", err)
	}

	// Condition the mass ratio on primaries above mmin+delta_m, where the
	// low-mass smoothing window fits inside the allowed ratio range.
	// Lighter primaries clamp to the first member.
	qgrid, err := interp.Linspace(0.05, 1, spec.Grids.mass())
	if err != nil {
		return nil, fmt.Errorf("mass ratio grid: %w", err)
	}
	m1grid, err := interp.Linspace(par.MMin+par.DeltaM, par.MMax, spec.Grids.conditioning())
	if err != nil {
		return nil, fmt.Errorf("mass ratio conditioning grid: %w", err)
	}
	qKey := interp.Key{
		Model:    "source_mass_ratio_" + prior.Type,
		Category: interp.CategoryInverseCDF,
		Dim:      2,
		XGrid:    qgrid.Spec(),
		YGrid:    m1grid.Spec(),
		Params:   params,
	}
	m.qFam, err = cache.GetFamily(qKey, force, func() (*interp.Family, error) {
		return interp.BuildFamily(interp.CategoryInverseCDF, qgrid, m1grid, par.ratioDensity)
	})
	if err != nil {
		return nil, fmt.Errorf("mass ratio table: %w", err)
	}
	return m, nil
}

// primaryDensity evaluates the unnormalized powerlaw+peak density at m1.
func (p plpParams) primaryDensity(m float64) float64 {
	if m < p.MMin || m > p.MMax {
		return 0
	}
	pl := (1 - p.LambdaPeak) * p.powerlawNorm * math.Pow(m, -p.Alpha)
	t := (m - p.MuG) / p.SigmaG
	peak := p.LambdaPeak * math.Exp(-0.5*t*t) / (p.SigmaG * math.Sqrt(2*math.Pi))
	return (pl + peak) * smoothing(m-p.MMin, p.DeltaM)
}

// ratioDensity evaluates the unnormalized mass ratio density q^beta,
// smoothed so the secondary stays above the minimum mass.
func (p plpParams) ratioDensity(q, m1 float64) float64 {
	if q <= 0 || q > 1 {
		return 0
	}
	return math.Pow(q, p.Beta) * smoothing(q*m1-p.MMin, p.DeltaM)
}

// smoothing rises smoothly from 0 at the window start to 1 past delta.
func smoothing(dm, delta float64) float64 {
	if dm <= 0 {
		return 0
	}
	if dm >= delta {
		return 1
	}
	return 1 / (math.Exp(delta/dm+delta/(dm-delta)) + 1)
}

func (m *powerlawPeakMasses) Sample(eng *interp.Engine, rng *rand.Rand, n int) ([]float64, []float64, error) {
	m1, err := eng.Draw(m.m1Inv, n)
	if err != nil {
		return nil, nil, fmt.Errorf("primary mass: %w", err)
	}
	q, err := eng.DrawAt(m.qFam, m1)
	if err != nil {
		return nil, nil, fmt.Errorf("mass ratio: %w", err)
	}
	m2 := make([]float64, n)
	for i := range m2 {
		m2[i] = q[i] * m1[i]
		if m2[i] < m.par.MMin {
			m2[i] = m.par.MMin
		}
	}
	return m1, m2, nil
}

// uniformPairMasses draws both components uniformly and orders them.
type uniformPairMasses struct {
	mmin, mmax float64
}

func newUniformPairMasses(prior PriorSpec) (*uniformPairMasses, error) {
	const prefix = "source.mass"
	mmin, err := floatParamOr(prefix, prior, "mmin", 1.0)
	if err != nil {
		return nil, err
	}
	mmax, err := floatParamOr(prefix, prior, "mmax", 2.5)
	if err != nil {
		return nil, err
	}
	if mmin <= 0 || mmax <= mmin {
		return nil, fmt.Errorf("%s: need 0 < mmin < mmax, got [%g, %g]", prefix, mmin, mmax)
	}
	return &uniformPairMasses{mmin: mmin, mmax: mmax}, nil
}

func (m *uniformPairMasses) Sample(_ *interp.Engine, rng *rand.Rand, n int) ([]float64, []float64, error) {
	m1 := make([]float64, n)
	m2 := make([]float64, n)
	for i := 0; i < n; i++ {
		a := m.mmin + (m.mmax-m.mmin)*rng.Float64()
		b := m.mmin + (m.mmax-m.mmin)*rng.Float64()
		if a < b {
			a, b = b, a
		}
		m1[i], m2[i] = a, b
	}
	return m1, m2, nil
}
