package interp

import "fmt"

// BuildInverseCDF fits the quantile function: a monotone spline through
// (cdf, x). Flat cdf runs are deduplicated first. Each run keeps its
// rightmost point so intervals of zero density receive no probability
// mass; the final run keeps its leftmost point for the same reason. Fewer
// than four distinct cumulative values, or any decrease, is
// ErrNonMonotonicCDF.
func BuildInverseCDF(grid Grid, cdf []float64) (*Spline, error) {
	if len(cdf) != grid.Len() {
		return nil, fmt.Errorf("cdf length %d does not match grid length %d", len(cdf), grid.Len())
	}

	n := len(cdf)
	us := make([]float64, 0, n)
	xs := make([]float64, 0, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && cdf[j+1] == cdf[i] {
			j++
		}
		keep := j
		if j == n-1 {
			keep = i
		}
		us = append(us, cdf[keep])
		xs = append(xs, grid[keep])
		i = j + 1
	}

	for i := 1; i < len(us); i++ {
		if us[i] <= us[i-1] {
			return nil, fmt.Errorf("%w: cdf decreases from %g to %g near grid point %g",
				ErrNonMonotonicCDF, us[i-1], us[i], xs[i])
		}
	}
	if len(us) < minSplinePoints {
		return nil, fmt.Errorf("%w: %d distinct cdf values after deduplication, need %d",
			ErrNonMonotonicCDF, len(us), minSplinePoints)
	}
	return BuildMonotoneSpline(us, xs)
}
