// Package image solves the lens equation for accepted systems and derives
// per-image observables: positions, magnifications, time delays, Morse
// phases, and effective luminosity distances.
package image

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/lensrate/lensrate/rate/cosmo"
)

// NumImages is the image multiplicity of a singular isothermal sphere for
// a source inside the Einstein ring.
const NumImages = 2

// mpcMeters converts megaparsecs to meters for time delay factors.
const mpcMeters = 3.0856775814913673e22

// arcsecRad converts arcseconds to radians.
const arcsecRad = math.Pi / (180 * 3600)

// Solver maps a batch of lens systems onto per-image observables. The
// returned map holds only the new image fields, one row per input system.
type Solver interface {
	Solve(batch map[string][]float64, seed int64, npool int) (map[string][]float64, error)
}

// SISSolver treats every lens as a singular isothermal sphere, which has a
// closed-form solution: a source at angle beta inside the Einstein ring
// forms two colinear images at beta+thetaE and beta-thetaE with
// magnifications 1+thetaE/beta and 1-thetaE/beta. Source positions are
// drawn uniformly over the lensing cross section.
type SISSolver struct {
	Lookup *cosmo.Lookup
}

// NewSISSolver returns a solver computing time delays against the given
// distance tables.
func NewSISSolver(lookup *cosmo.Lookup) *SISSolver {
	return &SISSolver{Lookup: lookup}
}

// Solve fans the batch out over npool workers. Each worker owns a
// disjoint index range and a seed derived from its id, so results do not
// depend on scheduling.
func (s *SISSolver) Solve(batch map[string][]float64, seed int64, npool int) (map[string][]float64, error) {
	for _, f := range []string{"theta_E", "zl", "zs", "luminosity_distance"} {
		if _, ok := batch[f]; !ok {
			return nil, fmt.Errorf("image solver needs field %q", f)
		}
	}
	thetaE := batch["theta_E"]
	zl := batch["zl"]
	zs := batch["zs"]
	dl := batch["luminosity_distance"]
	n := len(thetaE)

	out := map[string][]float64{
		"n_images": make([]float64, n),
		"beta":     make([]float64, n),
	}
	for img := 0; img < NumImages; img++ {
		out[imageField("theta_image", img)] = make([]float64, n)
		out[imageField("magnification", img)] = make([]float64, n)
		out[imageField("time_delay", img)] = make([]float64, n)
		out[imageField("morse_phase", img)] = make([]float64, n)
		out[imageField("effective_luminosity_distance", img)] = make([]float64, n)
	}
	if n == 0 {
		return out, nil
	}

	if npool < 1 {
		npool = 1
	}
	if npool > n {
		npool = n
	}
	chunk := (n + npool - 1) / npool
	var wg sync.WaitGroup
	for w := 0; w < npool; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wid := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed ^ int64(uint64(wid)*0x9e3779b97f4a7c15)))
			for i := lo; i < hi; i++ {
				s.solveOne(out, i, thetaE[i], zl[i], zs[i], dl[i], rng)
			}
		}()
	}
	wg.Wait()
	return out, nil
}

// solveOne fills row i of the output fields. Workers touch disjoint rows,
// so no locking is needed.
func (s *SISSolver) solveOne(out map[string][]float64, i int, thetaE, zl, zs, dl float64, rng *rand.Rand) {
	// Uniform over the cross section disc: beta = thetaE sqrt(u).
	beta := thetaE * math.Sqrt(rng.Float64())
	out["beta"][i] = beta
	out["n_images"][i] = NumImages

	if thetaE <= 0 || beta <= 0 {
		// Degenerate geometry: a single unmagnified image. The missing
		// image keeps zeroed fields so rows stay JSON-encodable.
		out[imageField("magnification", 0)][i] = 1
		out[imageField("effective_luminosity_distance", 0)][i] = dl
		out["n_images"][i] = 1
		return
	}

	ratio := thetaE / beta
	muMin := 1 + ratio  // minimum image, positive parity
	muSad := 1 - ratio  // saddle image, negative parity
	out[imageField("theta_image", 0)][i] = beta + thetaE
	out[imageField("theta_image", 1)][i] = beta - thetaE
	out[imageField("magnification", 0)][i] = muMin
	out[imageField("magnification", 1)][i] = muSad
	out[imageField("morse_phase", 0)][i] = 0
	out[imageField("morse_phase", 1)][i] = 0.5

	// The minimum arrives first; the saddle trails by the SIS delay
	// 2 (1+zl) Dd Ds / (c Dls) thetaE beta.
	out[imageField("time_delay", 0)][i] = 0
	out[imageField("time_delay", 1)][i] = s.delaySeconds(zl, zs, thetaE, beta)

	out[imageField("effective_luminosity_distance", 0)][i] = dl / math.Sqrt(math.Abs(muMin))
	out[imageField("effective_luminosity_distance", 1)][i] = dl / math.Sqrt(math.Abs(muSad))
}

// delaySeconds returns the arrival time gap between the two SIS images in
// seconds, for angles in arcseconds and table distances in Mpc.
func (s *SISSolver) delaySeconds(zl, zs, thetaE, beta float64) float64 {
	dd := s.Lookup.Da(zl)
	ds := s.Lookup.Da(zs)
	dls := s.Lookup.Da12(zl, zs)
	if dls <= 0 {
		return 0
	}
	factor := (1 + zl) * dd * ds / dls * mpcMeters / (cosmo.SpeedOfLight * 1000)
	return factor * 2 * (thetaE * arcsecRad) * (beta * arcsecRad)
}

func imageField(name string, img int) string {
	return fmt.Sprintf("%s_%d", name, img)
}
