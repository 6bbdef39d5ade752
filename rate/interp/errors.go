package interp

import "errors"

// Package error taxonomy. Wrap sites add the offending sizes, values, or
// paths; callers match with errors.Is.
var (
	// ErrInsufficientPoints: a cubic spline needs at least four points.
	ErrInsufficientPoints = errors.New("interp: too few points for cubic spline construction")

	// ErrDegenerateDensity: the tabulated density carries no positive mass.
	ErrDegenerateDensity = errors.New("interp: density has no positive mass on the grid")

	// ErrNonMonotonicCDF: values that must increase strictly do not, or too
	// few distinct values survive deduplication of flat runs.
	ErrNonMonotonicCDF = errors.New("interp: values are not strictly increasing")

	// ErrSamplingExhausted: rejection sampling made no progress.
	ErrSamplingExhausted = errors.New("interp: rejection sampling acceptance is numerically zero")

	// ErrCacheIO: reading, writing, or decoding a cache artifact failed.
	ErrCacheIO = errors.New("interp: cache artifact io failure")
)
