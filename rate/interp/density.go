package interp

import "fmt"

// NormalizeDensity turns raw non-negative density samples over grid into a
// unit-mass pdf and its cumulative distribution, both by the trapezoid
// rule. Negative or non-finite entries are rejected. cdf[0] is 0 and the
// final entry is pinned to exactly 1.
func NormalizeDensity(grid Grid, raw []float64) (pdf, cdf []float64, err error) {
	if len(raw) != grid.Len() {
		return nil, nil, fmt.Errorf("density length %d does not match grid length %d", len(raw), grid.Len())
	}

	pdf = make([]float64, len(raw))
	for i, v := range raw {
		if !isFinite(v) {
			return nil, nil, fmt.Errorf("%w: value at grid point %g is not finite", ErrDegenerateDensity, grid[i])
		}
		if v < 0 {
			return nil, nil, fmt.Errorf("%w: negative value %g at grid point %g", ErrDegenerateDensity, v, grid[i])
		}
		pdf[i] = v
	}

	total := trapezoid(grid, pdf)
	if !(total > 0) || !isFinite(total) {
		return nil, nil, fmt.Errorf("%w: trapezoid mass %g over [%g, %g]", ErrDegenerateDensity, total, grid.Min(), grid.Max())
	}
	for i := range pdf {
		pdf[i] /= total
	}

	cdf = make([]float64, len(pdf))
	for i := 1; i < len(pdf); i++ {
		cdf[i] = cdf[i-1] + 0.5*(pdf[i]+pdf[i-1])*(grid[i]-grid[i-1])
		if cdf[i] > 1 {
			cdf[i] = 1
		}
	}
	cdf[len(cdf)-1] = 1
	return pdf, cdf, nil
}

// trapezoid integrates ys over the grid.
func trapezoid(grid Grid, ys []float64) float64 {
	var sum float64
	for i := 1; i < len(ys); i++ {
		sum += 0.5 * (ys[i] + ys[i-1]) * (grid[i] - grid[i-1])
	}
	return sum
}
