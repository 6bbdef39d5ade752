package cosmo

import (
	"fmt"

	"github.com/lensrate/lensrate/rate/interp"
)

// defaultResolution is the table size used when the caller passes a
// non-positive resolution.
const defaultResolution = 500

// Lookup serves the cosmology's hot functions from cached interpolant
// tables: comoving distance in both directions, luminosity distance, and
// the differential comoving volume, all tabulated over [0, zmax].
type Lookup struct {
	Cosmo FlatLambdaCDM
	ZMax  float64

	zToDc *interp.Interpolant
	dcToZ *interp.Interpolant
	zToDL *interp.Interpolant
	dVcDz *interp.Interpolant
}

// NewLookup builds or loads the distance tables through the cache. Force
// bypasses existing artifacts and publishes fresh versions.
func NewLookup(cache *interp.Cache, c FlatLambdaCDM, zmax float64, resolution int, force bool) (*Lookup, error) {
	if zmax <= 0 {
		return nil, fmt.Errorf("cosmology tables need zmax > 0, got %g", zmax)
	}
	if resolution <= 0 {
		resolution = defaultResolution
	}
	grid, err := interp.Linspace(0, zmax, resolution)
	if err != nil {
		return nil, fmt.Errorf("cosmology grid: %w", err)
	}
	params := map[string]float64{"h0": c.H0, "om0": c.Om0}

	l := &Lookup{Cosmo: c, ZMax: zmax}
	tables := []struct {
		model string
		cat   interp.Category
		fn    func(float64) float64
		dst   **interp.Interpolant
	}{
		{"z_to_dc", interp.CategoryFunction, c.ComovingDistance, &l.zToDc},
		{"dc_to_z", interp.CategoryInverseFunction, c.ComovingDistance, &l.dcToZ},
		{"z_to_dl", interp.CategoryFunction, c.LuminosityDistance, &l.zToDL},
		{"dvc_dz", interp.CategoryFunction, c.DifferentialComovingVolume, &l.dVcDz},
	}
	for _, t := range tables {
		key := interp.Key{
			Model:    t.model,
			Category: t.cat,
			Dim:      1,
			XGrid:    grid.Spec(),
			Params:   params,
		}
		fn := t.fn
		it, err := cache.GetInterpolant(key, force, func() (*interp.Interpolant, error) {
			return interp.Build(key.Category, grid, fn)
		})
		if err != nil {
			return nil, fmt.Errorf("cosmology table %q: %w", t.model, err)
		}
		*t.dst = it
	}
	return l, nil
}

// Dc returns the comoving distance at z from the table, Mpc.
func (l *Lookup) Dc(z float64) float64 { return l.zToDc.At(z) }

// Z returns the redshift whose comoving distance is dc Mpc.
func (l *Lookup) Z(dc float64) float64 { return l.dcToZ.At(dc) }

// DL returns the luminosity distance at z from the table, Mpc.
func (l *Lookup) DL(z float64) float64 { return l.zToDL.At(z) }

// DVcDz returns the full-sky differential comoving volume at z, Mpc^3.
func (l *Lookup) DVcDz(z float64) float64 { return l.dVcDz.At(z) }

// Da returns the angular diameter distance at z from the table, Mpc.
func (l *Lookup) Da(z float64) float64 { return l.Dc(z) / (1 + z) }

// Da12 returns the angular diameter distance between z1 < z2, Mpc.
func (l *Lookup) Da12(z1, z2 float64) float64 {
	return (l.Dc(z2) - l.Dc(z1)) / (1 + z2)
}
