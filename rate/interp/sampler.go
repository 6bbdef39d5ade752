package interp

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

const (
	defaultChunkSize      = 8192
	defaultMaxEmptyChunks = 64
	defaultEnvelopeScan   = 4096
)

// Engine draws random variates from sampleable interpolants. InverseCDF
// interpolants sample by inverse transform; PDF interpolants fall back to
// chunked rejection against a scanned constant envelope.
type Engine struct {
	rng *rand.Rand

	// ChunkSize is the number of proposals drawn per rejection round.
	ChunkSize int
	// MaxEmptyChunks aborts rejection after this many consecutive rounds
	// with zero acceptances.
	MaxEmptyChunks int
	// EnvelopeScan is the resolution of the scan bounding a pdf from
	// above.
	EnvelopeScan int
}

// NewEngine returns an engine drawing from rng with default rejection
// settings.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{
		rng:            rng,
		ChunkSize:      defaultChunkSize,
		MaxEmptyChunks: defaultMaxEmptyChunks,
		EnvelopeScan:   defaultEnvelopeScan,
	}
}

// Draw samples n values from the interpolant. Only PDF and InverseCDF
// categories are sampleable; n of zero returns an empty slice.
func (e *Engine) Draw(it *Interpolant, n int) ([]float64, error) {
	switch it.Category {
	case CategoryInverseCDF:
		return e.inverseTransform(it.Spline, n), nil
	case CategoryPDF:
		return e.reject(it.Spline, n)
	default:
		return nil, fmt.Errorf("category %s is not sampleable", it.Category)
	}
}

// DrawAt draws one sample per conditioning value, routing each through the
// family member nearest that value. Draws are grouped per member, in
// member order, so results are reproducible for a fixed rng stream.
func (e *Engine) DrawAt(f *Family, ys []float64) ([]float64, error) {
	groups := make(map[int][]int, len(f.Members))
	for i, y := range ys {
		mi := f.selectIndex(y)
		groups[mi] = append(groups[mi], i)
	}
	out := make([]float64, len(ys))
	for mi := range f.Members {
		idxs := groups[mi]
		if len(idxs) == 0 {
			continue
		}
		vals, err := e.Draw(f.Members[mi], len(idxs))
		if err != nil {
			return nil, fmt.Errorf("family member at node %g: %w", f.YGrid[mi], err)
		}
		for j, pos := range idxs {
			out[pos] = vals[j]
		}
	}
	return out, nil
}

// DrawConditioned draws n samples conditioned on a single value.
func (e *Engine) DrawConditioned(f *Family, n int, y float64) ([]float64, error) {
	vals, err := e.Draw(f.Select(y), n)
	if err != nil {
		return nil, fmt.Errorf("family member nearest y=%g: %w", y, err)
	}
	return vals, nil
}

// inverseTransform maps uniform draws through the quantile spline. Inputs
// clamp into the spline's cumulative span and outputs into its value span.
func (e *Engine) inverseTransform(sp *Spline, n int) []float64 {
	uLo, uHi := sp.Span()
	xLo, xHi := sp.Vals[0], sp.Vals[len(sp.Vals)-1]
	out := make([]float64, n)
	for i := range out {
		u := e.rng.Float64()
		if u < uLo {
			u = uLo
		} else if u > uHi {
			u = uHi
		}
		x := sp.At(u)
		if x < xLo {
			x = xLo
		} else if x > xHi {
			x = xHi
		}
		out[i] = x
	}
	return out
}

// reject draws by chunked rejection: uniform proposals over the pdf's span
// against a constant envelope. A run of MaxEmptyChunks rounds without a
// single acceptance, or a non-positive envelope, is ErrSamplingExhausted.
func (e *Engine) reject(sp *Spline, n int) ([]float64, error) {
	lo, hi := sp.Span()
	env := sp.Max(e.EnvelopeScan)
	if !(env > 0) || !isFinite(env) {
		return nil, fmt.Errorf("%w: envelope %g over [%g, %g]", ErrSamplingExhausted, env, lo, hi)
	}

	out := make([]float64, 0, n)
	proposed := 0
	empty := 0
	for len(out) < n {
		accepted := 0
		for i := 0; i < e.ChunkSize && len(out) < n; i++ {
			proposed++
			x := lo + (hi-lo)*e.rng.Float64()
			if e.rng.Float64()*env < sp.At(x) {
				out = append(out, x)
				accepted++
			}
		}
		if accepted == 0 {
			empty++
			if empty >= e.MaxEmptyChunks {
				return nil, fmt.Errorf("%w: %d of %d proposals accepted, %d consecutive empty chunks",
					ErrSamplingExhausted, len(out), proposed, empty)
			}
		} else {
			empty = 0
		}
	}
	logrus.Debugf("rejection sampling accepted %d of %d proposals on [%g, %g]", n, proposed, lo, hi)
	return out, nil
}
