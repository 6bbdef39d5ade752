package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensrate/lensrate/rate"
)

var (
	nDetectable  int  // Detectable events to collect
	selectLensed bool // Select from the lensed population instead of the unlensed one
)

// selectCmd keeps sampling until it has collected the requested number of
// detectable events and persists exactly that many
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select a fixed number of detectable events",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec, err := loadPopulation()
		if err != nil {
			logrus.Fatalf("Could not load population: %v", err)
		}
		est, err := rate.NewEstimator(estimatorConfig(), spec)
		if err != nil {
			logrus.Fatalf("Could not build estimator: %v", err)
		}

		var store *rate.ParamStore
		if selectLensed {
			store, err = est.SelectDetectableLensed(cmd.Context(), nDetectable)
		} else {
			store, err = est.SelectDetectableUnlensed(cmd.Context(), nDetectable)
		}
		if err != nil {
			logrus.Fatalf("Selection failed: %v", err)
		}
		logrus.Infof("Wrote %d detectable events to %s", store.Len(), store.Path())
	},
}

func init() {
	selectCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for random sampling")
	selectCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	selectCmd.Flags().StringVar(&scenario, "scenario", "bbh", "Preset population (bbh, bns)")
	selectCmd.Flags().StringVar(&populationFile, "population", "", "Population spec YAML (overrides --scenario)")
	selectCmd.Flags().StringVar(&cacheDir, "cache-dir", "./interpolator_cache", "Interpolator artifact cache root")
	selectCmd.Flags().BoolVar(&forceRebuild, "force-rebuild", false, "Rebuild cached tables even when present")

	selectCmd.Flags().IntVar(&nDetectable, "count", 1000, "Detectable events to collect")
	selectCmd.Flags().BoolVar(&selectLensed, "lensed", false, "Select lensed systems instead of unlensed mergers")
	selectCmd.Flags().IntVar(&batchSize, "batch-size", 25000, "Events per sampling round")
	selectCmd.Flags().StringVar(&outDir, "out", ".", "Directory for parameter stores")
	selectCmd.Flags().BoolVar(&resume, "resume", false, "Continue from an existing selection store")
	selectCmd.Flags().IntVar(&nPool, "npool", 4, "Worker goroutines for the image solver")
	selectCmd.Flags().Float64Var(&snrThreshold, "snr-threshold", 8, "Optimal-SNR detection threshold")
	selectCmd.Flags().IntVar(&minImages, "min-images", 2, "Images above threshold for a lensed detection")

	rootCmd.AddCommand(selectCmd)
}
