package interp

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{
		Model:    "source_redshift",
		Category: CategoryInverseCDF,
		Dim:      1,
		XGrid:    GridSpec{Lo: 0, Hi: 10, N: 500},
		Params:   map[string]float64{"r0": 2.39e-8, "b2": 1.6},
	}
}

func testBuilder(t *testing.T, calls *int) BuildInterpolantFunc {
	t.Helper()
	return func() (*Interpolant, error) {
		*calls++
		grid, err := Linspace(0, 10, 500)
		require.NoError(t, err)
		return Build(CategoryInverseCDF, grid, func(x float64) float64 {
			return math.Exp(-x / 2)
		})
	}
}

func TestCache_IdempotentGet(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	calls := 0
	key := testKey()

	first, err := c.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)
	bytesAfterFirst, err := os.ReadFile(c.ArtifactPath(key, 1))
	require.NoError(t, err)

	second, err := c.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)
	bytesAfterSecond, err := os.ReadFile(c.ArtifactPath(key, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second get must not rebuild")
	assert.Equal(t, bytesAfterFirst, bytesAfterSecond, "artifact must not be rewritten")
	assert.Equal(t, first.Spline.Knots, second.Spline.Knots)
}

func TestCache_SurvivesProcessRestart(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	key := testKey()

	c1, err := NewCache(dir)
	require.NoError(t, err)
	built, err := c1.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)

	// A fresh Cache has an empty in-memory layer and must load from disk
	// without invoking the builder.
	c2, err := NewCache(dir)
	require.NoError(t, err)
	loaded, err := c2.GetInterpolant(key, false, func() (*Interpolant, error) {
		t.Fatal("builder must not run on a warm disk cache")
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, built.Category, loaded.Category)
	assert.Equal(t, built.Spline.Coeffs, loaded.Spline.Coeffs)
	assert.InDelta(t, built.At(0.5), loaded.At(0.5), 1e-15)
}

func TestCache_ForceRebuildWritesNewVersion(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	calls := 0
	key := testKey()

	_, err = c.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)
	v1Before, err := os.ReadFile(c.ArtifactPath(key, 1))
	require.NoError(t, err)

	_, err = c.GetInterpolant(key, true, testBuilder(t, &calls))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	v1After, err := os.ReadFile(c.ArtifactPath(key, 1))
	require.NoError(t, err)
	assert.Equal(t, v1Before, v1After, "old version must stay intact")
	assert.FileExists(t, c.ArtifactPath(key, 2))

	// A plain lookup now serves the newest version.
	_, err = c.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_CorruptArtifactRebuilds(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	key := testKey()

	c1, err := NewCache(dir)
	require.NoError(t, err)
	_, err = c1.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(c1.ArtifactPath(key, 1), []byte("not json"), 0o644))

	c2, err := NewCache(dir)
	require.NoError(t, err)
	_, err = c2.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "corrupt artifact must trigger a rebuild")
	assert.FileExists(t, c2.ArtifactPath(key, 2))
}

func TestCache_DistinctParamsDistinctArtifacts(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	calls := 0
	a := testKey()
	b := testKey()
	b.Params = map[string]float64{"r0": 2.39e-8, "b2": 2.5}

	_, err = c.GetInterpolant(a, false, testBuilder(t, &calls))
	require.NoError(t, err)
	_, err = c.GetInterpolant(b, false, testBuilder(t, &calls))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.NotEqual(t, c.ArtifactPath(a, 1), c.ArtifactPath(b, 1))
	assert.FileExists(t, c.ArtifactPath(a, 1))
	assert.FileExists(t, c.ArtifactPath(b, 1))
}

func TestCache_FamilyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := Key{
		Model:    "velocity_dispersion",
		Category: CategoryInverseCDF,
		Dim:      2,
		XGrid:    GridSpec{Lo: 10, Hi: 600, N: 200},
		YGrid:    GridSpec{Lo: 0, Hi: 3, N: 20},
	}

	c1, err := NewCache(dir)
	require.NoError(t, err)
	built, err := c1.GetFamily(key, false, func() (*Family, error) {
		xg, err := Linspace(10, 600, 200)
		require.NoError(t, err)
		yg, err := Linspace(0, 3, 20)
		require.NoError(t, err)
		return BuildFamily(CategoryInverseCDF, xg, yg, func(x, y float64) float64 {
			s := 160 * (1 + 0.2*y)
			return math.Exp(-(x / s) * (x / s))
		})
	})
	require.NoError(t, err)

	c2, err := NewCache(dir)
	require.NoError(t, err)
	loaded, err := c2.GetFamily(key, false, func() (*Family, error) {
		t.Fatal("builder must not run on a warm disk cache")
		return nil, nil
	})
	require.NoError(t, err)

	require.Len(t, loaded.Members, len(built.Members))
	assert.Equal(t, built.YGrid, loaded.YGrid)
	assert.Equal(t, built.Members[7].Spline.Coeffs, loaded.Members[7].Spline.Coeffs)
}

func TestCache_InterpolantFamilyMismatch(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	key := testKey()
	calls := 0
	_, err = c.GetInterpolant(key, false, testBuilder(t, &calls))
	require.NoError(t, err)

	// The same key read back as a family is a caller bug: surfaced as
	// ErrCacheIO, not a panic.
	_, err = c.GetFamily(key, false, func() (*Family, error) {
		t.Fatal("builder must not run, the artifact exists")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCacheIO)
}
