// Package interp builds, caches, and samples from cubic-spline
// interpolants of one-dimensional densities and functions.
//
// # Reading Guide
//
// Construction flows bottom-up: a Grid fixes the tabulation axis
// (grid.go), BuildSpline fits a natural cubic through tabulated values
// (spline.go), NormalizeDensity turns raw density samples into a
// unit-mass pdf and its cdf (density.go), and BuildInverseCDF inverts
// the cdf into a quantile spline (inverse_cdf.go). Build ties these
// together under a Category tag (interpolant.go); BuildFamily repeats a
// build across the nodes of a conditioning axis (family.go).
//
// # Caching
//
// Cache (cache.go) persists built artifacts as JSON files named by a
// digest of everything that determines their content. Publication is
// atomic and existing versions are never overwritten: a forced rebuild
// writes the next version suffix. Within a process, an in-memory layer
// short-circuits repeat lookups.
//
// # Sampling
//
// Engine (sampler.go) draws variates from sampleable interpolants:
// inverse transform for CategoryInverseCDF, chunked rejection against a
// scanned envelope for CategoryPDF. Conditioned draws route each sample
// through the family member nearest its conditioning value.
package interp
