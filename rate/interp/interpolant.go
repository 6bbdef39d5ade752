package interp

import "fmt"

// Category tags what an Interpolant's spline represents and therefore how
// it may be used. The tag decides the build path at construction time and
// whether the sampling engine may draw from the result.
type Category string

const (
	// CategoryFunction tabulates y = f(x) over the grid.
	CategoryFunction Category = "function"
	// CategoryInverseFunction tabulates x as a function of f(x) for
	// strictly monotonic f, so lookups run in the inverse direction.
	CategoryInverseFunction Category = "inverse_function"
	// CategoryPDF tabulates a unit-mass probability density.
	CategoryPDF Category = "pdf"
	// CategoryInverseCDF tabulates the quantile function: x as a function
	// of cumulative probability on [0, 1].
	CategoryInverseCDF Category = "inverse_cdf"
)

// validCategories guards category names arriving from configuration.
var validCategories = map[Category]bool{
	CategoryFunction:        true,
	CategoryInverseFunction: true,
	CategoryPDF:             true,
	CategoryInverseCDF:      true,
}

func (c Category) valid() bool { return validCategories[c] }

// Interpolant is a category-tagged spline. Function and InverseFunction
// interpolants answer lookups; PDF and InverseCDF interpolants feed the
// sampling engine.
type Interpolant struct {
	Category Category `json:"category"`
	Spline   *Spline  `json:"spline"`
}

// builderFunc turns the grid and the tabulated function values into the
// category's spline payload.
type builderFunc func(grid Grid, ys []float64) (*Spline, error)

// builders is the single dispatch table resolving a category to its build
// path.
var builders = map[Category]builderFunc{
	CategoryFunction:        buildFunction,
	CategoryInverseFunction: buildInverseFunction,
	CategoryPDF:             buildPDF,
	CategoryInverseCDF:      buildInverseCDFRaw,
}

// Build tabulates fn over the grid and fits an interpolant of the given
// category.
func Build(cat Category, grid Grid, fn func(float64) float64) (*Interpolant, error) {
	if !cat.valid() {
		return nil, fmt.Errorf("unknown interpolant category %q", cat)
	}
	ys := make([]float64, grid.Len())
	for i, x := range grid {
		ys[i] = fn(x)
	}
	sp, err := builders[cat](grid, ys)
	if err != nil {
		return nil, fmt.Errorf("building %s interpolant: %w", cat, err)
	}
	return &Interpolant{Category: cat, Spline: sp}, nil
}

func buildFunction(grid Grid, ys []float64) (*Spline, error) {
	return BuildSpline(grid, ys)
}

// buildInverseFunction swaps the axes so the tabulated values become the
// lookup key. Decreasing tabulations are reversed; anything not strictly
// monotonic has no inverse.
func buildInverseFunction(grid Grid, ys []float64) (*Spline, error) {
	n := len(ys)
	xs := make([]float64, n)
	vals := make([]float64, n)
	copy(xs, grid)
	copy(vals, ys)
	if n >= 2 && vals[0] > vals[n-1] {
		reverse(xs)
		reverse(vals)
	}
	for i := 1; i < n; i++ {
		if vals[i] <= vals[i-1] {
			return nil, fmt.Errorf("%w: tabulated values are not strictly monotonic at index %d", ErrNonMonotonicCDF, i)
		}
	}
	return BuildSpline(vals, xs)
}

func buildPDF(grid Grid, ys []float64) (*Spline, error) {
	pdf, _, err := NormalizeDensity(grid, ys)
	if err != nil {
		return nil, err
	}
	return BuildSpline(grid, pdf)
}

func buildInverseCDFRaw(grid Grid, ys []float64) (*Spline, error) {
	_, cdf, err := NormalizeDensity(grid, ys)
	if err != nil {
		return nil, err
	}
	return BuildInverseCDF(grid, cdf)
}

// At evaluates the interpolant, clamping the query into the tabulated
// span.
func (it *Interpolant) At(x float64) float64 {
	lo, hi := it.Spline.Span()
	if x < lo {
		x = lo
	} else if x > hi {
		x = hi
	}
	return it.Spline.At(x)
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
