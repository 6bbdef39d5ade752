package interp

import (
	"errors"
	"math"
	"testing"
)

// A uniform density on [0, 1] has the identity as its quantile function.
func TestBuildInverseCDF_UniformIsIdentity(t *testing.T) {
	grid, _ := Linspace(0, 1, 101)
	raw := make([]float64, grid.Len())
	for i := range raw {
		raw[i] = 1
	}
	_, cdf, err := NormalizeDensity(grid, raw)
	if err != nil {
		t.Fatalf("normalizing: %v", err)
	}
	inv, err := BuildInverseCDF(grid, cdf)
	if err != nil {
		t.Fatalf("building inverse cdf: %v", err)
	}

	for _, u := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		if got := inv.At(u); math.Abs(got-u) > 1e-6 {
			t.Errorf("At(%g) = %g, want %g", u, got, u)
		}
	}
}

// Zero-density intervals collapse out of the inverse: no quantile lands
// strictly inside them.
func TestBuildInverseCDF_FlatRunsReceiveNoMass(t *testing.T) {
	grid, _ := Linspace(0, 3, 301)
	raw := make([]float64, grid.Len())
	for i, x := range grid {
		if x <= 1 || x >= 2 {
			raw[i] = 1
		}
	}
	_, cdf, err := NormalizeDensity(grid, raw)
	if err != nil {
		t.Fatalf("normalizing: %v", err)
	}
	inv, err := BuildInverseCDF(grid, cdf)
	if err != nil {
		t.Fatalf("building inverse cdf: %v", err)
	}

	for u := 0.005; u < 1; u += 0.01 {
		x := inv.At(u)
		if x > 1.05 && x < 1.95 {
			t.Errorf("At(%g) = %g landed inside the zero-density interval (1, 2)", u, x)
		}
	}
}

func TestBuildInverseCDF_DecreasingCDF(t *testing.T) {
	grid, _ := Linspace(0, 1, 5)
	cdf := []float64{0, 0.5, 0.4, 0.8, 1}

	_, err := BuildInverseCDF(grid, cdf)
	if !errors.Is(err, ErrNonMonotonicCDF) {
		t.Fatalf("expected ErrNonMonotonicCDF, got %v", err)
	}
}

func TestBuildInverseCDF_TooFewDistinctValues(t *testing.T) {
	grid, _ := Linspace(0, 1, 6)
	cdf := []float64{0, 0, 0, 0.5, 1, 1}

	_, err := BuildInverseCDF(grid, cdf)
	if !errors.Is(err, ErrNonMonotonicCDF) {
		t.Fatalf("expected ErrNonMonotonicCDF, got %v", err)
	}
}

func TestBuildInverseCDF_LengthMismatch(t *testing.T) {
	grid, _ := Linspace(0, 1, 6)
	_, err := BuildInverseCDF(grid, []float64{0, 0.5, 1})
	if err == nil {
		t.Fatal("expected error for length mismatch, got nil")
	}
}
