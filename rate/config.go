package rate

// CacheConfig groups interpolation artifact cache parameters.
type CacheConfig struct {
	Dir          string // artifact root directory
	ForceRebuild bool   // write a new artifact version even when one exists
}

// BatchConfig groups batch execution parameters.
type BatchConfig struct {
	Size   int    // events per persisted batch (must be > 0)
	OutDir string // directory holding the parameter stores
	Resume bool   // continue from existing stores instead of replacing them
}

// DetectionConfig groups the detectability criteria applied to scored
// events.
type DetectionConfig struct {
	SNRThreshold float64 // optimal-SNR threshold for a detection
	MinImages    int     // lensed events need this many images above threshold
}

// Config wires an Estimator.
type Config struct {
	Seed      int64 // master seed for all subsystem streams
	NPool     int   // worker goroutines for the image solver
	Cache     CacheConfig
	Batch     BatchConfig
	Detection DetectionConfig
}

// DefaultConfig mirrors the reference defaults: 25k-event batches, a local
// cache directory, single-detector threshold of 8 with two lensed images.
func DefaultConfig() Config {
	return Config{
		Seed:  42,
		NPool: 4,
		Cache: CacheConfig{Dir: "./interpolator_cache"},
		Batch: BatchConfig{Size: 25000, OutDir: "."},
		Detection: DetectionConfig{
			SNRThreshold: 8,
			MinImages:    2,
		},
	}
}
