package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensrate/lensrate/rate"
)

// tablesCmd builds every cached interpolation table the populations need,
// so later runs start sampling immediately
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Build or refresh the cached interpolation tables",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := loadPopulation()
		if err != nil {
			logrus.Fatalf("Could not load population: %v", err)
		}
		if _, err := rate.NewEstimator(estimatorConfig(), spec); err != nil {
			logrus.Fatalf("Could not build tables: %v", err)
		}
		logrus.Infof("Interpolation tables ready under %s", cacheDir)
	},
}

func init() {
	tablesCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for random sampling")
	tablesCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	tablesCmd.Flags().StringVar(&scenario, "scenario", "bbh", "Preset population (bbh, bns)")
	tablesCmd.Flags().StringVar(&populationFile, "population", "", "Population spec YAML (overrides --scenario)")
	tablesCmd.Flags().Float64Var(&zMaxOverride, "z-max", 0, "Override the population's maximum source redshift (0 keeps the configured value)")
	tablesCmd.Flags().StringVar(&cacheDir, "cache-dir", "./interpolator_cache", "Interpolator artifact cache root")
	tablesCmd.Flags().BoolVar(&forceRebuild, "force-rebuild", false, "Rebuild cached tables even when present")

	rootCmd.AddCommand(tablesCmd)
}
