package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensrate/lensrate/rate"
)

var (
	unlensedStorePath string // Scored unlensed parameter store
	lensedStorePath   string // Scored lensed parameter store
)

// ratesCmd recomputes yearly rates from parameter stores persisted by a
// previous run, without any new sampling
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Recompute yearly rates from existing parameter stores",
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

		unlensedStore, err := rate.LoadParamStore(unlensedStorePath)
		if err != nil {
			logrus.Fatalf("Could not load unlensed store: %v", err)
		}
		lensedStore, err := rate.LoadParamStore(lensedStorePath)
		if err != nil {
			logrus.Fatalf("Could not load lensed store: %v", err)
		}

		if sum, err := rate.Summarize(unlensedStore, "snr", snrThreshold); err == nil {
			sum.Log("unlensed")
		}
		if sum, err := rate.Summarize(lensedStore, "snr_image_0", snrThreshold); err == nil {
			sum.Log("lensed brightest image")
		}

		unlensedRate, err := est.UnlensedRate(unlensedStore)
		if err != nil {
			logrus.Fatalf("Unlensed rate: %v", err)
		}
		lensedRate, err := est.LensedRate(lensedStore)
		if err != nil {
			logrus.Fatalf("Lensed rate: %v", err)
		}
		rate.RateComparison(unlensedRate, lensedRate)
	},
}

func init() {
	ratesCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for random sampling")
	ratesCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	ratesCmd.Flags().StringVar(&scenario, "scenario", "bbh", "Preset population (bbh, bns)")
	ratesCmd.Flags().StringVar(&populationFile, "population", "", "Population spec YAML (overrides --scenario)")
	ratesCmd.Flags().StringVar(&cacheDir, "cache-dir", "./interpolator_cache", "Interpolator artifact cache root")

	ratesCmd.Flags().StringVar(&unlensedStorePath, "unlensed", "./unlensed_params.json", "Scored unlensed parameter store")
	ratesCmd.Flags().StringVar(&lensedStorePath, "lensed", "./lensed_params.json", "Scored lensed parameter store")
	ratesCmd.Flags().Float64Var(&snrThreshold, "snr-threshold", 8, "Optimal-SNR detection threshold")
	ratesCmd.Flags().IntVar(&minImages, "min-images", 2, "Images above threshold for a lensed detection")

	rootCmd.AddCommand(ratesCmd)
}
