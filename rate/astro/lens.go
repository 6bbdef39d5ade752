package astro

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/lensrate/lensrate/rate/cosmo"
	"github.com/lensrate/lensrate/rate/interp"
)

// RadToArcsec converts angles on the sky from radians to arcseconds.
const RadToArcsec = 180 * 3600 / math.Pi

// maxEmptyTopUps aborts cross section sampling after this many
// consecutive proposal rounds without a single accepted system.
const maxEmptyTopUps = 32

// LensPopulation samples strongly lensed systems: the lensed source
// redshift weighted by optical depth, the lens redshift and velocity
// dispersion, axis ratio, external shear and density slope, and the
// Einstein radius. Candidates are accepted in proportion to the SIS
// lensing cross section and topped up until the requested count.
type LensPopulation struct {
	spec   *PopulationSpec
	lookup *cosmo.Lookup
	source *SourcePopulation

	zsInv    *interp.Interpolant
	ratioInv *interp.Interpolant
	vd       *GengammaVelDisp
	vdFam    *interp.Family // nil when the model draws directly
	qFam     *interp.Family

	shearScale float64 // 0 disables external shear
	slopeMean  float64
	slopeStd   float64 // 0 pins the slope to the mean

	// NormZLensed is the detector-frame rate of mergers with a lens along
	// the line of sight, events per year, before detectability.
	NormZLensed float64
}

// NewLensPopulation builds or loads the lens tables through the cache.
// The source population supplies the merger rate prior being lensed.
func NewLensPopulation(spec *PopulationSpec, lookup *cosmo.Lookup, source *SourcePopulation, cache *interp.Cache, force bool) (*LensPopulation, error) {
	l := &LensPopulation{spec: spec, lookup: lookup, source: source}

	cosmoParams := map[string]float64{"h0": lookup.Cosmo.H0, "om0": lookup.Cosmo.Om0}

	// Lensed source redshifts: the merger rate prior reweighted by the
	// strong lensing optical depth.
	zgrid, err := interp.Linspace(0, spec.ZMax, spec.Grids.redshift())
	if err != nil {
		return nil, fmt.Errorf("lensed redshift grid: %w", err)
	}
	lensedDensity := func(z float64) float64 {
		return source.ZPriorDensity(z) * l.OpticalDepth(z)
	}
	zsKey := interp.Key{
		Model:    "lensed_source_redshift_" + spec.Source.Redshift.Type,
		Category: interp.CategoryInverseCDF,
		Dim:      1,
		XGrid:    zgrid.Spec(),
		Params:   cosmoParams,
	}
	l.zsInv, err = cache.GetInterpolant(zsKey, force, func() (*interp.Interpolant, error) {
		return interp.Build(interp.CategoryInverseCDF, zgrid, lensedDensity)
	})
	if err != nil {
		return nil, fmt.Errorf("lensed source redshift table: %w", err)
	}
	l.NormZLensed = quad.Fixed(lensedDensity, 0, spec.ZMax, 256, nil, 0)

	// Lens position along the line of sight, as the ratio of comoving
	// distances Dc(zl)/Dc(zs).
	rgrid, err := interp.Linspace(0, 1, 200)
	if err != nil {
		return nil, fmt.Errorf("lens ratio grid: %w", err)
	}
	ratioKey := interp.Key{
		Model:    "lens_distance_ratio",
		Category: interp.CategoryInverseCDF,
		Dim:      1,
		XGrid:    rgrid.Spec(),
	}
	l.ratioInv, err = cache.GetInterpolant(ratioKey, force, func() (*interp.Interpolant, error) {
		return interp.Build(interp.CategoryInverseCDF, rgrid, lensRatioDensity)
	})
	if err != nil {
		return nil, fmt.Errorf("lens distance ratio table: %w", err)
	}

	if err := l.buildVelocityDispersion(cache, force); err != nil {
		return nil, err
	}
	if err := l.buildAxisRatio(cache, force); err != nil {
		return nil, err
	}

	switch spec.Lens.Shear.Type {
	case "normal":
		l.shearScale, err = floatParamOr("lens.shear", spec.Lens.Shear, "scale", 0.05)
		if err != nil {
			return nil, err
		}
	case "none":
		l.shearScale = 0
	}
	switch spec.Lens.Slope.Type {
	case "normal":
		l.slopeMean, err = floatParamOr("lens.slope", spec.Lens.Slope, "mean", 2.0)
		if err != nil {
			return nil, err
		}
		l.slopeStd, err = floatParamOr("lens.slope", spec.Lens.Slope, "std", 0.2)
		if err != nil {
			return nil, err
		}
	case "constant":
		l.slopeMean, err = floatParamOr("lens.slope", spec.Lens.Slope, "value", 2.0)
		if err != nil {
			return nil, err
		}
		l.slopeStd = 0
	}
	return l, nil
}

func (l *LensPopulation) buildVelocityDispersion(cache *interp.Cache, force bool) error {
	vd, err := newGengammaVelDisp(l.spec.Lens.VelocityDispersion)
	if err != nil {
		return err
	}
	l.vd = vd
	if l.spec.Lens.VelocityDispersion.Type != "gengamma_evolving" {
		return nil
	}

	sgrid, err := interp.Linspace(vd.SigmaMin, vd.SigmaMax, l.spec.Grids.sigma())
	if err != nil {
		return fmt.Errorf("velocity dispersion grid: %w", err)
	}
	zlgrid, err := interp.Linspace(0, l.spec.ZMax, l.spec.Grids.conditioning())
	if err != nil {
		return fmt.Errorf("velocity dispersion conditioning grid: %w", err)
	}
	key := interp.Key{
		Model:    "velocity_dispersion_" + l.spec.Lens.VelocityDispersion.Type,
		Category: interp.CategoryInverseCDF,
		Dim:      2,
		XGrid:    sgrid.Spec(),
		YGrid:    zlgrid.Spec(),
		Params: map[string]float64{
			"a": vd.A, "c": vd.C, "sigma_star": vd.SigmaStar, "eta": vd.Eta,
		},
	}
	l.vdFam, err = cache.GetFamily(key, force, func() (*interp.Family, error) {
		return interp.BuildFamily(interp.CategoryInverseCDF, sgrid, zlgrid, vd.Density)
	})
	if err != nil {
		return fmt.Errorf("velocity dispersion table: %w", err)
	}
	return nil
}

func (l *LensPopulation) buildAxisRatio(cache *interp.Cache, force bool) error {
	const prefix = "lens.axis_ratio"
	prior := l.spec.Lens.AxisRatio
	qmin, err := floatParamOr(prefix, prior, "q_min", 0.2)
	if err != nil {
		return err
	}
	if qmin <= 0 || qmin >= 1 {
		return fmt.Errorf("%s: q_min must lie in (0, 1), got %g", prefix, qmin)
	}
	qgrid, err := interp.Linspace(qmin, 1, 200)
	if err != nil {
		return fmt.Errorf("axis ratio grid: %w", err)
	}
	sgrid, err := interp.Linspace(l.vd.SigmaMin, l.vd.SigmaMax, l.spec.Grids.conditioning())
	if err != nil {
		return fmt.Errorf("axis ratio conditioning grid: %w", err)
	}
	key := interp.Key{
		Model:    "axis_ratio_" + prior.Type,
		Category: interp.CategoryPDF,
		Dim:      2,
		XGrid:    qgrid.Spec(),
		YGrid:    sgrid.Spec(),
		Params:   map[string]float64{"q_min": qmin},
	}
	l.qFam, err = cache.GetFamily(key, force, func() (*interp.Family, error) {
		return interp.BuildFamily(interp.CategoryPDF, qgrid, sgrid, axisRatioDensity)
	})
	if err != nil {
		return fmt.Errorf("axis ratio table: %w", err)
	}
	return nil
}

// OpticalDepth returns the strong lensing optical depth to redshift z for
// a comoving population of SIS lenses.
func (l *LensPopulation) OpticalDepth(z float64) float64 {
	r := l.lookup.Dc(z) / 1000 / 62.2 // comoving distance in units of 62.2 Gpc
	return r * r * r
}

// lensRatioDensity is the distribution of Dc(zl)/Dc(zs) for SIS lenses
// between observer and source: 30 r^2 (1-r)^2 on [0, 1].
func lensRatioDensity(r float64) float64 {
	if r < 0 || r > 1 {
		return 0
	}
	return 30 * r * r * (1 - r) * (1 - r)
}

// axisRatioDensity is a Rayleigh law in the ellipticity 1-q whose scale
// shrinks with velocity dispersion: massive ellipticals are rounder.
func axisRatioDensity(q, sigma float64) float64 {
	if q <= 0 || q >= 1 {
		return 0
	}
	s := 0.38 - 5.7e-4*sigma
	if s < 1e-3 {
		s = 1e-3
	}
	b := 1 - q
	return b / (s * s) * math.Exp(-b*b/(2*s*s))
}

// EinsteinRadius returns the SIS Einstein radius in arcseconds for a lens
// with velocity dispersion sigma km/s at zl in front of a source at zs.
func (l *LensPopulation) EinsteinRadius(sigma, zl, zs float64) float64 {
	ds := l.lookup.Da(zs)
	if ds <= 0 {
		return 0
	}
	dls := l.lookup.Da12(zl, zs)
	if dls <= 0 {
		return 0
	}
	v := sigma / cosmo.SpeedOfLight
	return 4 * math.Pi * v * v * dls / ds * RadToArcsec
}

// Sample draws n accepted lens systems with their lensed sources. Fields:
// everything the source population emits, plus zl, sigma, q, theta_E, phi,
// gamma1, gamma2, and slope.
func (l *LensPopulation) Sample(eng *interp.Engine, rng *rand.Rand, n int) (map[string][]float64, error) {
	var out map[string][]float64
	have := 0
	emptyRounds := 0
	for have < n {
		batch, err := l.propose(eng, rng, n-have)
		if err != nil {
			return nil, err
		}
		keep := acceptCrossSection(rng, batch["theta_E"])
		if len(keep) == 0 {
			emptyRounds++
			if emptyRounds >= maxEmptyTopUps {
				return nil, fmt.Errorf("%w: no lens systems accepted after %d rounds",
					interp.ErrSamplingExhausted, emptyRounds)
			}
			continue
		}
		emptyRounds = 0
		out = appendSelected(out, batch, keep)
		have = len(out["zl"])
	}
	trimFields(out, n)
	return out, nil
}

// propose draws one round of candidate systems before the cross section
// acceptance test.
func (l *LensPopulation) propose(eng *interp.Engine, rng *rand.Rand, n int) (map[string][]float64, error) {
	zs, err := eng.Draw(l.zsInv, n)
	if err != nil {
		return nil, fmt.Errorf("drawing lensed source redshifts: %w", err)
	}
	ratios, err := eng.Draw(l.ratioInv, n)
	if err != nil {
		return nil, fmt.Errorf("drawing lens distance ratios: %w", err)
	}
	zl := make([]float64, n)
	for i := range zl {
		zl[i] = l.lookup.Z(ratios[i] * l.lookup.Dc(zs[i]))
		if zl[i] > zs[i] {
			zl[i] = zs[i]
		}
	}

	var sigma []float64
	if l.vdFam != nil {
		sigma, err = eng.DrawAt(l.vdFam, zl)
		if err != nil {
			return nil, fmt.Errorf("drawing velocity dispersions: %w", err)
		}
	} else {
		sigma = make([]float64, n)
		for i := range sigma {
			sigma[i] = l.vd.Draw(rng, zl[i])
		}
	}
	q, err := eng.DrawAt(l.qFam, sigma)
	if err != nil {
		return nil, fmt.Errorf("drawing axis ratios: %w", err)
	}

	thetaE := make([]float64, n)
	phi := make([]float64, n)
	gamma1 := make([]float64, n)
	gamma2 := make([]float64, n)
	slope := make([]float64, n)
	for i := 0; i < n; i++ {
		thetaE[i] = l.EinsteinRadius(sigma[i], zl[i], zs[i])
		phi[i] = math.Pi * rng.Float64()
		gamma1[i] = l.shearScale * rng.NormFloat64()
		gamma2[i] = l.shearScale * rng.NormFloat64()
		slope[i] = l.drawSlope(rng)
	}

	m1, m2, err := l.source.SampleMasses(eng, rng, n)
	if err != nil {
		return nil, fmt.Errorf("drawing lensed source masses: %w", err)
	}
	dl := make([]float64, n)
	for i := range dl {
		dl[i] = l.lookup.DL(zs[i])
	}

	out := sampleAngles(rng, n)
	out["zs"] = zs
	out["zl"] = zl
	out["sigma"] = sigma
	out["q"] = q
	out["theta_E"] = thetaE
	out["phi"] = phi
	out["gamma1"] = gamma1
	out["gamma2"] = gamma2
	out["slope"] = slope
	out["mass_1"] = m1
	out["mass_2"] = m2
	out["luminosity_distance"] = dl
	return out, nil
}

// drawSlope samples the mass density slope, redrawing the rare variate
// shallower than 1 where the profile stops being a lens.
func (l *LensPopulation) drawSlope(rng *rand.Rand) float64 {
	if l.slopeStd == 0 {
		return l.slopeMean
	}
	for {
		s := l.slopeMean + l.slopeStd*rng.NormFloat64()
		if s > 1 {
			return s
		}
	}
}

// acceptCrossSection keeps each candidate with probability proportional
// to its lensing cross section theta_E^2, normalized by the round's
// maximum.
func acceptCrossSection(rng *rand.Rand, thetaE []float64) []int {
	best := 0.0
	for _, t := range thetaE {
		if t*t > best {
			best = t * t
		}
	}
	if best <= 0 {
		return nil
	}
	var keep []int
	for i, t := range thetaE {
		if rng.Float64() < t*t/best {
			keep = append(keep, i)
		}
	}
	return keep
}

// appendSelected appends the kept rows of batch onto dst, field by field.
func appendSelected(dst, batch map[string][]float64, keep []int) map[string][]float64 {
	if dst == nil {
		dst = make(map[string][]float64, len(batch))
	}
	for name, vals := range batch {
		for _, i := range keep {
			dst[name] = append(dst[name], vals[i])
		}
	}
	return dst
}

// trimFields truncates every field to the first n rows.
func trimFields(m map[string][]float64, n int) {
	for name, vals := range m {
		if len(vals) > n {
			m[name] = vals[:n]
		}
	}
}
