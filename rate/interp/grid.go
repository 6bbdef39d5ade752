package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is a strictly increasing axis of finite tabulation points.
type Grid []float64

// NewGrid validates points as a grid: at least two entries, all finite,
// strictly increasing.
func NewGrid(points []float64) (Grid, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("grid needs at least 2 points, got %d", len(points))
	}
	for i, p := range points {
		if !isFinite(p) {
			return nil, fmt.Errorf("grid point %d is not finite: %g", i, p)
		}
		if i > 0 && p <= points[i-1] {
			return nil, fmt.Errorf("grid must be strictly increasing: point %d is %g, point %d is %g",
				i-1, points[i-1], i, p)
		}
	}
	return Grid(points), nil
}

// Linspace returns n evenly spaced points spanning [lo, hi].
func Linspace(lo, hi float64, n int) (Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("linspace needs at least 2 points, got %d", n)
	}
	if !(hi > lo) || !isFinite(lo) || !isFinite(hi) {
		return nil, fmt.Errorf("linspace bounds invalid: [%g, %g]", lo, hi)
	}
	return Grid(floats.Span(make([]float64, n), lo, hi)), nil
}

// Geomspace returns n logarithmically spaced points spanning [lo, hi],
// with lo > 0. Endpoints are pinned exactly.
func Geomspace(lo, hi float64, n int) (Grid, error) {
	if lo <= 0 {
		return nil, fmt.Errorf("geomspace needs lo > 0, got %g", lo)
	}
	g, err := Linspace(math.Log(lo), math.Log(hi), n)
	if err != nil {
		return nil, err
	}
	for i := range g {
		g[i] = math.Exp(g[i])
	}
	g[0], g[n-1] = lo, hi
	return g, nil
}

func (g Grid) Len() int     { return len(g) }
func (g Grid) Min() float64 { return g[0] }
func (g Grid) Max() float64 { return g[len(g)-1] }

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
