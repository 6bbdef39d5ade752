package interp

import (
	"fmt"
	"math"
	"sort"
)

// minSplinePoints is the smallest tabulation a cubic spline accepts.
const minSplinePoints = 4

// Spline is a natural cubic spline tabulated over strictly increasing
// knots. Coeffs holds the per-segment cubics flattened as
// [a0 b0 c0 d0 a1 b1 ...], evaluated as d + t*(c + t*(b + t*a)) with
// t = x - Knots[i]. The flat layout is exactly what cache artifacts
// persist.
type Spline struct {
	Knots  []float64 `json:"knots"`
	Vals   []float64 `json:"vals"`
	Coeffs []float64 `json:"coeffs"`
}

// BuildSpline fits a natural cubic spline through (xs, ys): the second
// derivative vanishes at both boundary knots. xs must be strictly
// increasing and everything finite. Inputs are copied.
func BuildSpline(xs, ys []float64) (*Spline, error) {
	if err := validateSplineInput(xs, ys); err != nil {
		return nil, err
	}

	n := len(xs)
	y2s := secondDerivs(xs, ys)
	coeffs := make([]float64, 4*(n-1))
	for i := 0; i < n-1; i++ {
		dx := xs[i+1] - xs[i]
		coeffs[4*i] = (y2s[i+1] - y2s[i]) / (6 * dx)
		coeffs[4*i+1] = y2s[i] / 2
		coeffs[4*i+2] = (ys[i+1]-ys[i])/dx - dx*(y2s[i]/3+y2s[i+1]/6)
		coeffs[4*i+3] = ys[i]
	}

	knots := make([]float64, n)
	vals := make([]float64, n)
	copy(knots, xs)
	copy(vals, ys)
	return &Spline{Knots: knots, Vals: vals, Coeffs: coeffs}, nil
}

// BuildMonotoneSpline fits a monotonicity-preserving cubic (Fritsch and
// Carlson slope limiting) through (xs, ys). For monotone data the result
// never overshoots the tabulated values, dropping to lower order next to
// flat or near-flat runs. This is the builder the inverse-CDF path uses:
// a natural cubic through a cdf cliff would scatter quantiles outside
// their segment.
func BuildMonotoneSpline(xs, ys []float64) (*Spline, error) {
	if err := validateSplineInput(xs, ys); err != nil {
		return nil, err
	}

	n := len(xs)
	ms := limitedSlopes(xs, ys)
	coeffs := make([]float64, 4*(n-1))
	for i := 0; i < n-1; i++ {
		h := xs[i+1] - xs[i]
		delta := (ys[i+1] - ys[i]) / h
		coeffs[4*i] = (ms[i] + ms[i+1] - 2*delta) / (h * h)
		coeffs[4*i+1] = (3*delta - 2*ms[i] - ms[i+1]) / h
		coeffs[4*i+2] = ms[i]
		coeffs[4*i+3] = ys[i]
	}

	knots := make([]float64, n)
	vals := make([]float64, n)
	copy(knots, xs)
	copy(vals, ys)
	return &Spline{Knots: knots, Vals: vals, Coeffs: coeffs}, nil
}

func validateSplineInput(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("spline axes differ in length: %d vs %d", len(xs), len(ys))
	}
	if len(xs) < minSplinePoints {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientPoints, len(xs), minSplinePoints)
	}
	for i := range xs {
		if !isFinite(xs[i]) || !isFinite(ys[i]) {
			return fmt.Errorf("spline input %d is not finite: (%g, %g)", i, xs[i], ys[i])
		}
		if i > 0 && xs[i] <= xs[i-1] {
			return fmt.Errorf("spline knots must be strictly increasing: knot %d is %g, knot %d is %g",
				i-1, xs[i-1], i, xs[i])
		}
	}
	return nil
}

// limitedSlopes computes knot derivatives by the Fritsch-Carlson rules: a
// weighted harmonic mean of neighboring secants inside the span, zero at
// local extrema, and clipped three-point estimates at the ends.
func limitedSlopes(xs, ys []float64) []float64 {
	n := len(xs)
	hs := make([]float64, n-1)
	deltas := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		hs[i] = xs[i+1] - xs[i]
		deltas[i] = (ys[i+1] - ys[i]) / hs[i]
	}

	ms := make([]float64, n)
	for i := 1; i < n-1; i++ {
		if deltas[i-1]*deltas[i] <= 0 {
			continue
		}
		w1 := 2*hs[i] + hs[i-1]
		w2 := hs[i] + 2*hs[i-1]
		ms[i] = (w1 + w2) / (w1/deltas[i-1] + w2/deltas[i])
	}
	ms[0] = edgeSlope(hs[0], hs[1], deltas[0], deltas[1])
	ms[n-1] = edgeSlope(hs[n-2], hs[n-3], deltas[n-2], deltas[n-3])
	return ms
}

// edgeSlope is the one-sided three-point derivative estimate with the
// standard monotonicity clips.
func edgeSlope(h0, h1, d0, d1 float64) float64 {
	m := ((2*h0+h1)*d0 - h0*d1) / (h0 + h1)
	if m*d0 <= 0 {
		return 0
	}
	if d0*d1 <= 0 && math.Abs(m) > 3*math.Abs(d0) {
		return 3 * d0
	}
	return m
}

// secondDerivs solves the natural-boundary tridiagonal system for the
// spline's second derivative at every knot.
func secondDerivs(xs, ys []float64) []float64 {
	n := len(xs)
	y2s := make([]float64, n)
	m := n - 2
	as := make([]float64, m)
	bs := make([]float64, m)
	cs := make([]float64, m)
	rs := make([]float64, m)
	for i := 0; i < m; i++ {
		j := i + 1
		hl := xs[j] - xs[j-1]
		hr := xs[j+1] - xs[j]
		as[i] = hl / 6
		bs[i] = (hl + hr) / 3
		cs[i] = hr / 6
		rs[i] = (ys[j+1]-ys[j])/hr - (ys[j]-ys[j-1])/hl
	}
	triDiagSolve(as, bs, cs, rs, y2s[1:n-1])
	return y2s
}

// triDiagSolve solves the tridiagonal system with subdiagonal as, diagonal
// bs, superdiagonal cs and right-hand side rs, writing the solution into
// out. The spline system is diagonally dominant, so a zero pivot is a
// programmer error.
func triDiagSolve(as, bs, cs, rs, out []float64) {
	if len(as) != len(bs) || len(as) != len(cs) || len(as) != len(rs) || len(as) != len(out) {
		panic("triDiagSolve: argument lengths are unequal")
	}
	tmp := make([]float64, len(as))
	beta := bs[0]
	if beta == 0 {
		panic("triDiagSolve: zero pivot")
	}
	out[0] = rs[0] / beta
	for i := 1; i < len(out); i++ {
		tmp[i] = cs[i-1] / beta
		beta = bs[i] - as[i]*tmp[i]
		if beta == 0 {
			panic("triDiagSolve: zero pivot")
		}
		out[i] = (rs[i] - as[i]*out[i-1]) / beta
	}
	for i := len(out) - 2; i >= 0; i-- {
		out[i] -= tmp[i+1] * out[i+1]
	}
}

// At evaluates the spline at x. Outside the knot span the boundary
// segment's cubic extends; callers clamp where extrapolation is unwanted.
func (s *Spline) At(x float64) float64 {
	i := s.segment(x)
	t := x - s.Knots[i]
	return s.Coeffs[4*i+3] + t*(s.Coeffs[4*i+2]+t*(s.Coeffs[4*i+1]+t*s.Coeffs[4*i]))
}

// segment returns the index of the cubic governing x.
func (s *Spline) segment(x float64) int {
	i := sort.SearchFloat64s(s.Knots, x)
	if i > 0 {
		i--
	}
	if last := len(s.Knots) - 2; i > last {
		i = last
	}
	return i
}

// Span returns the first and last knot.
func (s *Spline) Span() (lo, hi float64) {
	return s.Knots[0], s.Knots[len(s.Knots)-1]
}

// Max returns the largest value over an evenly spaced scan of the knot
// span with the given number of samples. Knot values seed the scan so
// peaks pinned at knots are never missed.
func (s *Spline) Max(samples int) float64 {
	best := s.Vals[0]
	for _, v := range s.Vals[1:] {
		if v > best {
			best = v
		}
	}
	if samples > 1 {
		lo, hi := s.Span()
		step := (hi - lo) / float64(samples-1)
		for i := 0; i < samples; i++ {
			if v := s.At(lo + float64(i)*step); v > best {
				best = v
			}
		}
	}
	return best
}
