package interp

import (
	"errors"
	"math"
	"testing"
)

func TestBuild_FunctionLookup(t *testing.T) {
	grid, _ := Linspace(0, 4, 80)
	it, err := Build(CategoryFunction, grid, func(x float64) float64 { return x * x })
	if err != nil {
		t.Fatalf("building: %v", err)
	}
	for _, x := range []float64{0.5, 1.3, 2.2, 3.9} {
		if got := it.At(x); math.Abs(got-x*x) > 1e-4 {
			t.Errorf("At(%g) = %g, want %g", x, got, x*x)
		}
	}
}

func TestBuild_InverseFunctionInvertsMonotonic(t *testing.T) {
	grid, _ := Linspace(0.1, 2, 120)
	cube := func(x float64) float64 { return x * x * x }

	it, err := Build(CategoryInverseFunction, grid, cube)
	if err != nil {
		t.Fatalf("building: %v", err)
	}
	for _, x := range []float64{0.3, 0.9, 1.4, 1.9} {
		if got := it.At(cube(x)); math.Abs(got-x) > 1e-4 {
			t.Errorf("At(%g) = %g, want %g", cube(x), got, x)
		}
	}
}

func TestBuild_InverseFunctionHandlesDecreasing(t *testing.T) {
	grid, _ := Linspace(0, 3, 100)
	decay := func(x float64) float64 { return math.Exp(-x) }

	it, err := Build(CategoryInverseFunction, grid, decay)
	if err != nil {
		t.Fatalf("building: %v", err)
	}
	for _, x := range []float64{0.5, 1.5, 2.5} {
		if got := it.At(decay(x)); math.Abs(got-x) > 1e-3 {
			t.Errorf("At(%g) = %g, want %g", decay(x), got, x)
		}
	}
}

func TestBuild_InverseFunctionRejectsNonMonotonic(t *testing.T) {
	grid, _ := Linspace(0, 2*math.Pi, 50)
	_, err := Build(CategoryInverseFunction, grid, math.Sin)
	if !errors.Is(err, ErrNonMonotonicCDF) {
		t.Fatalf("expected ErrNonMonotonicCDF, got %v", err)
	}
}

func TestBuild_PDFNormalizes(t *testing.T) {
	grid, _ := Linspace(-4, 4, 161)
	it, err := Build(CategoryPDF, grid, func(x float64) float64 { return 123 * math.Exp(-x*x/2) })
	if err != nil {
		t.Fatalf("building: %v", err)
	}

	// Trapezoid over the fitted pdf should be unit mass.
	var mass float64
	for i := 1; i < grid.Len(); i++ {
		mass += 0.5 * (it.At(grid[i]) + it.At(grid[i-1])) * (grid[i] - grid[i-1])
	}
	if math.Abs(mass-1) > 1e-6 {
		t.Errorf("fitted pdf mass = %g, want 1", mass)
	}
}

func TestBuild_InverseCDFQuantiles(t *testing.T) {
	// GIVEN a uniform density over [0, 1]
	grid, _ := Linspace(0, 1, 101)
	it, err := Build(CategoryInverseCDF, grid, func(x float64) float64 { return 1 })
	if err != nil {
		t.Fatalf("building: %v", err)
	}

	// WHEN evaluating the canonical probe quantiles
	// THEN the quantile function is the identity
	for _, u := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		if got := it.At(u); math.Abs(got-u) > 1e-6 {
			t.Errorf("quantile(%g) = %g, want %g", u, got, u)
		}
	}
}

func TestBuild_UnknownCategory(t *testing.T) {
	grid, _ := Linspace(0, 1, 10)
	_, err := Build(Category("bogus"), grid, func(x float64) float64 { return x })
	if err == nil {
		t.Fatal("expected error for unknown category, got nil")
	}
}

func TestBuild_DegenerateDensity(t *testing.T) {
	grid, _ := Linspace(0, 1, 20)
	_, err := Build(CategoryInverseCDF, grid, func(x float64) float64 { return 0 })
	if !errors.Is(err, ErrDegenerateDensity) {
		t.Fatalf("expected ErrDegenerateDensity, got %v", err)
	}
}

func TestInterpolantAt_ClampsToSpan(t *testing.T) {
	grid, _ := Linspace(0, 1, 50)
	it, err := Build(CategoryFunction, grid, func(x float64) float64 { return 2 * x })
	if err != nil {
		t.Fatalf("building: %v", err)
	}
	if got := it.At(-10); math.Abs(got-0) > 1e-9 {
		t.Errorf("At(-10) = %g, want clamp to 0", got)
	}
	if got := it.At(10); math.Abs(got-2) > 1e-9 {
		t.Errorf("At(10) = %g, want clamp to 2", got)
	}
}
