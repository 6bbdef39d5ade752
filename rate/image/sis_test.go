package image

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensrate/lensrate/rate/cosmo"
	"github.com/lensrate/lensrate/rate/interp"
)

func newTestSolver(t *testing.T) *SISSolver {
	t.Helper()
	cache, err := interp.NewCache(t.TempDir())
	require.NoError(t, err)
	lookup, err := cosmo.NewLookup(cache, cosmo.Default(), 10, 150, false)
	require.NoError(t, err)
	return NewSISSolver(lookup)
}

func testBatch() map[string][]float64 {
	return map[string][]float64{
		"theta_E":             {0.8, 1.5, 0.3, 2.1},
		"zl":                  {0.4, 0.8, 0.2, 1.1},
		"zs":                  {1.5, 2.2, 0.9, 3.0},
		"luminosity_distance": {11000, 18000, 6000, 26000},
	}
}

func TestSISSolve_ClosedFormRelations(t *testing.T) {
	s := newTestSolver(t)
	batch := testBatch()
	out, err := s.Solve(batch, 17, 2)
	require.NoError(t, err)

	n := len(batch["theta_E"])
	for i := 0; i < n; i++ {
		thetaE := batch["theta_E"][i]
		beta := out["beta"][i]
		require.Greater(t, beta, 0.0, "row %d", i)
		require.LessOrEqual(t, beta, thetaE, "row %d: source outside the Einstein ring", i)

		mu0 := out["magnification_0"][i]
		mu1 := out["magnification_1"][i]
		// SIS identities: images at beta +/- thetaE, mu0 + mu1 = 2.
		assert.InDelta(t, beta+thetaE, out["theta_image_0"][i], 1e-12, "row %d", i)
		assert.InDelta(t, beta-thetaE, out["theta_image_1"][i], 1e-12, "row %d", i)
		assert.InDelta(t, 2, mu0+mu1, 1e-9, "row %d", i)
		assert.GreaterOrEqual(t, mu0, 2.0, "row %d: minimum image is magnified", i)
		assert.LessOrEqual(t, mu1, 0.0, "row %d: saddle image has negative parity", i)

		dl := batch["luminosity_distance"][i]
		assert.InDelta(t, dl/math.Sqrt(mu0), out["effective_luminosity_distance_0"][i], 1e-9, "row %d", i)
		assert.InDelta(t, dl/math.Sqrt(math.Abs(mu1)), out["effective_luminosity_distance_1"][i], 1e-9, "row %d", i)

		assert.Equal(t, 0.0, out["morse_phase_0"][i], "row %d", i)
		assert.Equal(t, 0.5, out["morse_phase_1"][i], "row %d", i)
		assert.Equal(t, float64(NumImages), out["n_images"][i], "row %d", i)

		// The saddle image trails the minimum by the closed-form delay.
		assert.Equal(t, 0.0, out["time_delay_0"][i], "row %d", i)
		want := s.delaySeconds(batch["zl"][i], batch["zs"][i], thetaE, beta)
		assert.Equal(t, want, out["time_delay_1"][i], "row %d", i)
		assert.Greater(t, want, 0.0, "row %d", i)
	}
}

func TestSISSolve_DelayMagnitudeIsGalaxyScale(t *testing.T) {
	s := newTestSolver(t)
	out, err := s.Solve(map[string][]float64{
		"theta_E":             {0.74},
		"zl":                  {0.5},
		"zs":                  {2.0},
		"luminosity_distance": {16000},
	}, 3, 1)
	require.NoError(t, err)

	// Galaxy-scale SIS delays run from hours to months, not milliseconds
	// or millennia.
	delay := out["time_delay_1"][0]
	assert.Greater(t, delay, 1e2)
	assert.Less(t, delay, 1e9)
}

func TestSISSolve_DeterministicForFixedSeedAndPool(t *testing.T) {
	s := newTestSolver(t)
	a, err := s.Solve(testBatch(), 99, 4)
	require.NoError(t, err)
	b, err := s.Solve(testBatch(), 99, 4)
	require.NoError(t, err)
	for name := range a {
		assert.Equal(t, a[name], b[name], "field %q", name)
	}
}

func TestSISSolve_DegenerateLensKeepsRowsEncodable(t *testing.T) {
	s := newTestSolver(t)
	out, err := s.Solve(map[string][]float64{
		"theta_E":             {0},
		"zl":                  {0.4},
		"zs":                  {1.5},
		"luminosity_distance": {11000},
	}, 5, 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out["n_images"][0])
	assert.Equal(t, 1.0, out["magnification_0"][0])
	assert.Equal(t, 0.0, out["magnification_1"][0])
	for name, vals := range out {
		assert.False(t, math.IsInf(vals[0], 0) || math.IsNaN(vals[0]),
			"field %q must stay finite", name)
	}
}

func TestSISSolve_MissingFieldErrors(t *testing.T) {
	s := newTestSolver(t)
	_, err := s.Solve(map[string][]float64{"theta_E": {1}}, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zl")
}

func TestSISSolve_EmptyBatch(t *testing.T) {
	s := newTestSolver(t)
	out, err := s.Solve(map[string][]float64{
		"theta_E": {}, "zl": {}, "zs": {}, "luminosity_distance": {},
	}, 1, 4)
	require.NoError(t, err)
	assert.Empty(t, out["beta"])
}
