package cmd

import (
	"github.com/sirupsen/logrus"

	"github.com/lensrate/lensrate/rate/astro"
)

// loadPopulation resolves the population spec from CLI flags. An explicit
// YAML file wins over the preset scenario name.
func loadPopulation() (*astro.PopulationSpec, error) {
	spec, err := resolvePopulation()
	if err != nil {
		return nil, err
	}
	if zMaxOverride > 0 {
		spec.ZMax = zMaxOverride
	}
	return spec, nil
}

func resolvePopulation() (*astro.PopulationSpec, error) {
	if populationFile != "" {
		spec, err := astro.LoadPopulationSpec(populationFile)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Using population spec %v", populationFile)
		return spec, nil
	}
	spec, err := astro.Scenario(scenario)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Using preset population %v", scenario)
	return spec, nil
}
