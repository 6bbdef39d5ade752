package astro

import "fmt"

// Built-in population presets for common survey configurations.
// Each returns a valid PopulationSpec ready for sampling.

// ScenarioBBH is the stellar mass binary black hole population behind the
// SDSS elliptical galaxy lens population.
func ScenarioBBH() *PopulationSpec {
	return &PopulationSpec{
		Version: "1", EventType: "bbh", ZMax: 10,
		Source: SourceSpec{
			Redshift: PriorSpec{Type: "oguri2018",
				Params: map[string]any{"r0": 2.39e-8, "b2": 1.6, "b3": 2.1, "b4": 30.0}},
			Mass: PriorSpec{Type: "powerlaw_peak",
				Params: map[string]any{
					"mmin": 4.98, "mmax": 112.5, "alpha": 3.78, "beta": 0.81,
					"delta_m": 4.8, "lambda_peak": 0.03, "mu_g": 32.27, "sigma_g": 3.88,
				}},
		},
		Lens: LensSpec{
			VelocityDispersion: PriorSpec{Type: "gengamma_evolving",
				Params: map[string]any{
					"a": 0.869, "c": 2.67, "sigma_star": 161.0, "eta": 0.2,
					"sigma_min": 10.0, "sigma_max": 600.0,
				}},
			AxisRatio: PriorSpec{Type: "rayleigh", Params: map[string]any{"q_min": 0.2}},
			Shear:     PriorSpec{Type: "normal", Params: map[string]any{"scale": 0.05}},
			Slope:     PriorSpec{Type: "normal", Params: map[string]any{"mean": 2.0, "std": 0.2}},
		},
	}
}

// ScenarioBNS is the binary neutron star population behind the same lens
// population, with a shallower sampled volume.
func ScenarioBNS() *PopulationSpec {
	spec := ScenarioBBH()
	spec.EventType = "bns"
	spec.ZMax = 2
	spec.Source.Redshift = PriorSpec{Type: "oguri2018",
		Params: map[string]any{"r0": 1.05e-7, "b2": 1.6, "b3": 2.1, "b4": 30.0}}
	spec.Source.Mass = PriorSpec{Type: "uniform_pair",
		Params: map[string]any{"mmin": 1.0, "mmax": 2.5}}
	return spec
}

// Scenario returns the named preset. Valid names: bbh, bns.
func Scenario(name string) (*PopulationSpec, error) {
	switch name {
	case "bbh":
		return ScenarioBBH(), nil
	case "bns":
		return ScenarioBNS(), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q; valid: bbh, bns", name)
	}
}
