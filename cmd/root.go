package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensrate/lensrate/rate"
)

var (
	// CLI flags shared across subcommands
	seed           int64  // Master seed for all sampling subsystems
	logLevel       string // Log verbosity level
	scenario       string  // Preset population name (bbh, bns)
	populationFile string  // Population spec YAML path, overrides --scenario
	zMaxOverride   float64 // Override the population's maximum source redshift when > 0
	cacheDir       string  // Interpolator artifact cache root
	forceRebuild   bool    // Rebuild cached tables even when versions exist

	// CLI flags for Monte Carlo runs
	nUnlensed int    // Unlensed merger events to draw
	nLensed   int    // Lensed systems to draw
	batchSize int    // Events per persisted batch
	outDir    string // Directory holding the parameter stores
	resume    bool   // Continue from existing parameter stores
	nPool     int    // Worker goroutines for the image solver

	// CLI flags for detectability
	snrThreshold float64 // Optimal-SNR threshold for a detection
	minImages    int     // Images above threshold for a lensed detection
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lensrate",
	Short: "Monte Carlo rate estimation for lensed and unlensed compact-binary mergers",
}

// setupLogging applies the --log flag process-wide.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// estimatorConfig assembles a rate.Config from CLI flags.
func estimatorConfig() rate.Config {
	cfg := rate.DefaultConfig()
	cfg.Seed = seed
	cfg.NPool = nPool
	cfg.Cache.Dir = cacheDir
	cfg.Cache.ForceRebuild = forceRebuild
	cfg.Batch.Size = batchSize
	cfg.Batch.OutDir = outDir
	cfg.Batch.Resume = resume
	cfg.Detection.SNRThreshold = snrThreshold
	cfg.Detection.MinImages = minImages
	return cfg
}

// runCmd executes the full estimation pipeline using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample both populations and estimate yearly rates",
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

		logrus.Infof("Starting estimation with %d unlensed and %d lensed events, threshold=%.1f",
			nUnlensed, nLensed, snrThreshold)
		startTime := time.Now()

		unlensedStore, err := est.UnlensedStatistics(cmd.Context(), nUnlensed)
		if err != nil {
			logrus.Fatalf("Unlensed sampling failed: %v", err)
		}
		lensedStore, err := est.LensedStatistics(cmd.Context(), nLensed)
		if err != nil {
			logrus.Fatalf("Lensed sampling failed: %v", err)
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

		logrus.Infof("Estimation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for random sampling")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Population configs
	runCmd.Flags().StringVar(&scenario, "scenario", "bbh", "Preset population (bbh, bns)")
	runCmd.Flags().StringVar(&populationFile, "population", "", "Population spec YAML (overrides --scenario)")
	runCmd.Flags().Float64Var(&zMaxOverride, "z-max", 0, "Override the population's maximum source redshift (0 keeps the configured value)")

	// Monte Carlo configs
	runCmd.Flags().IntVar(&nUnlensed, "n-unlensed", 100000, "Unlensed merger events to draw")
	runCmd.Flags().IntVar(&nLensed, "n-lensed", 25000, "Lensed systems to draw")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 25000, "Events per persisted batch")
	runCmd.Flags().StringVar(&outDir, "out", ".", "Directory for parameter stores")
	runCmd.Flags().BoolVar(&resume, "resume", false, "Continue from existing parameter stores")
	runCmd.Flags().IntVar(&nPool, "npool", 4, "Worker goroutines for the image solver")

	// Cache configs
	runCmd.Flags().StringVar(&cacheDir, "cache-dir", "./interpolator_cache", "Interpolator artifact cache root")
	runCmd.Flags().BoolVar(&forceRebuild, "force-rebuild", false, "Rebuild cached tables even when present")

	// Detection configs
	runCmd.Flags().Float64Var(&snrThreshold, "snr-threshold", 8, "Optimal-SNR detection threshold")
	runCmd.Flags().IntVar(&minImages, "min-images", 2, "Images above threshold for a lensed detection")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
