// rates.go
//
// The estimator wires the cosmology tables, the populations, the image
// solver and the SNR model into resumable Monte Carlo runs, then turns
// the persisted parameter stores into yearly event rates.

package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/lensrate/lensrate/rate/astro"
	"github.com/lensrate/lensrate/rate/cosmo"
	"github.com/lensrate/lensrate/rate/image"
	"github.com/lensrate/lensrate/rate/interp"
	"github.com/lensrate/lensrate/rate/snr"
)

// Parameter store names under BatchConfig.OutDir.
const (
	UnlensedStoreName           = "unlensed_params.json"
	LensedStoreName             = "lensed_params.json"
	UnlensedDetectableStoreName = "unlensed_detectable.json"
	LensedDetectableStoreName   = "lensed_detectable.json"
)

// maxEmptySelectionRounds aborts detectable-event selection after this
// many consecutive rounds without a single accepted event.
const maxEmptySelectionRounds = 64

// Estimator runs the lensed and unlensed Monte Carlo pipelines against
// one population spec and one cache.
type Estimator struct {
	cfg    Config
	spec   *astro.PopulationSpec
	rng    *PartitionedRNG
	cache  *interp.Cache
	lookup *cosmo.Lookup
	source *astro.SourcePopulation
	lenses *astro.LensPopulation
	solver image.Solver
	scorer snr.Scorer

	srcEngine  *interp.Engine
	lensEngine *interp.Engine
}

// NewEstimator validates the spec, builds or loads every cached table the
// populations need, and wires the sampling stages.
func NewEstimator(cfg Config, spec *astro.PopulationSpec) (*Estimator, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("population spec: %w", err)
	}
	if cfg.NPool < 1 {
		cfg.NPool = 1
	}
	if cfg.Detection.MinImages < 1 {
		cfg.Detection.MinImages = 1
	}

	cache, err := interp.NewCache(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}
	lookup, err := cosmo.NewLookup(cache, cosmo.Default(), spec.ZMax, spec.Grids.RedshiftResolution, cfg.Cache.ForceRebuild)
	if err != nil {
		return nil, err
	}
	source, err := astro.NewSourcePopulation(spec, lookup, cache, cfg.Cache.ForceRebuild)
	if err != nil {
		return nil, err
	}
	lenses, err := astro.NewLensPopulation(spec, lookup, source, cache, cfg.Cache.ForceRebuild)
	if err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(RunKey(cfg.Seed))
	return &Estimator{
		cfg:        cfg,
		spec:       spec,
		rng:        rng,
		cache:      cache,
		lookup:     lookup,
		source:     source,
		lenses:     lenses,
		solver:     image.NewSISSolver(lookup),
		scorer:     snr.NewInspiralScorer(),
		srcEngine:  interp.NewEngine(rng.ForSubsystem(SubsystemSource)),
		lensEngine: interp.NewEngine(rng.ForSubsystem(SubsystemLens)),
	}, nil
}

// Lookup exposes the estimator's cosmology tables.
func (e *Estimator) Lookup() *cosmo.Lookup { return e.lookup }

// Source exposes the source population.
func (e *Estimator) Source() *astro.SourcePopulation { return e.source }

// Lenses exposes the lens population.
func (e *Estimator) Lenses() *astro.LensPopulation { return e.lenses }

// openStore loads the named store when resuming over an existing file,
// otherwise starts a fresh one.
func (e *Estimator) openStore(name string, labels map[string]string) (*ParamStore, error) {
	path := filepath.Join(e.cfg.Batch.OutDir, name)
	if e.cfg.Batch.Resume {
		store, err := LoadParamStore(path)
		if err == nil {
			logrus.Infof("resuming parameter store %s holding %d events", path, store.Len())
			return store, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return NewParamStore(path, StoreMeta{Labels: labels}), nil
}

// unlensedStep samples and scores one batch of unlensed mergers.
func (e *Estimator) unlensedStep(n int) (map[string][]float64, error) {
	rng := e.rng.ForSubsystem(SubsystemSource)
	batch, err := e.source.Sample(e.srcEngine, rng, n)
	if err != nil {
		return nil, err
	}
	scores, err := e.scorer.Score(batch, "luminosity_distance")
	if err != nil {
		return nil, err
	}
	pdet := make([]float64, n)
	for i, r := range scores {
		pdet[i] = snr.Pdet(r, e.cfg.Detection.SNRThreshold)
	}
	batch["snr"] = scores
	batch["pdet"] = pdet
	return batch, nil
}

// lensedStep samples one batch of lensed systems, solves their images and
// scores every image separately.
func (e *Estimator) lensedStep(n int) (map[string][]float64, error) {
	rng := e.rng.ForSubsystem(SubsystemLens)
	batch, err := e.lenses.Sample(e.lensEngine, rng, n)
	if err != nil {
		return nil, err
	}
	// A fresh solver seed per batch keeps source-position draws from
	// repeating across batches while staying tied to the run seed.
	images, err := e.solver.Solve(batch, rng.Int63(), e.cfg.NPool)
	if err != nil {
		return nil, err
	}
	for name, vals := range images {
		batch[name] = vals
	}
	for img := 0; img < image.NumImages; img++ {
		distField := fmt.Sprintf("effective_luminosity_distance_%d", img)
		scores, err := e.scorer.Score(batch, distField)
		if err != nil {
			return nil, err
		}
		pdet := make([]float64, n)
		for i, r := range scores {
			pdet[i] = snr.Pdet(r, e.cfg.Detection.SNRThreshold)
		}
		batch[fmt.Sprintf("snr_image_%d", img)] = scores
		batch[fmt.Sprintf("pdet_image_%d", img)] = pdet
	}
	return batch, nil
}

// UnlensedStatistics samples and scores size merger events in persisted
// batches and returns the store. With resume enabled it continues from
// whatever the store already holds.
func (e *Estimator) UnlensedStatistics(ctx context.Context, size int) (*ParamStore, error) {
	store, err := e.openStore(UnlensedStoreName, map[string]string{
		"population": "unlensed", "event_type": e.spec.EventType,
	})
	if err != nil {
		return nil, err
	}
	runner := NewRunner(store, e.cfg.Batch.Size)
	if err := runner.Run(ctx, size, e.unlensedStep); err != nil {
		return nil, err
	}
	return store, nil
}

// LensedStatistics samples and scores size lensed systems in persisted
// batches and returns the store.
func (e *Estimator) LensedStatistics(ctx context.Context, size int) (*ParamStore, error) {
	store, err := e.openStore(LensedStoreName, map[string]string{
		"population": "lensed", "event_type": e.spec.EventType,
	})
	if err != nil {
		return nil, err
	}
	runner := NewRunner(store, e.cfg.Batch.Size)
	if err := runner.Run(ctx, size, e.lensedStep); err != nil {
		return nil, err
	}
	return store, nil
}

// RateResult is a Monte Carlo rate integral over one scored store.
type RateResult struct {
	TotalPerYear float64 // intrinsic events per year in the sampled population
	PerYear      float64 // detected events per year, step detectability
	PerYearPdet  float64 // detected events per year, noise-marginalized
	Detectable   int
	Events       int
}

// UnlensedRate scales the store's detectable fraction by the population's
// intrinsic yearly rate.
func (e *Estimator) UnlensedRate(store *ParamStore) (*RateResult, error) {
	snrs := store.Field("snr")
	pdets := store.Field("pdet")
	if snrs == nil || pdets == nil {
		return nil, fmt.Errorf("store %s is not scored: need snr and pdet fields", store.Path())
	}
	if len(snrs) == 0 {
		return nil, fmt.Errorf("store %s holds no events", store.Path())
	}
	det := 0
	sumP := 0.0
	for i, r := range snrs {
		if r > e.cfg.Detection.SNRThreshold {
			det++
		}
		sumP += pdets[i]
	}
	n := float64(len(snrs))
	return &RateResult{
		TotalPerYear: e.source.NormZ,
		PerYear:      e.source.NormZ * float64(det) / n,
		PerYearPdet:  e.source.NormZ * sumP / n,
		Detectable:   det,
		Events:       len(snrs),
	}, nil
}

// LensedRate scales the fraction of systems with enough detectable images
// by the lensed population's intrinsic yearly rate.
func (e *Estimator) LensedRate(store *ParamStore) (*RateResult, error) {
	s0 := store.Field("snr_image_0")
	s1 := store.Field("snr_image_1")
	p0 := store.Field("pdet_image_0")
	p1 := store.Field("pdet_image_1")
	if s0 == nil || s1 == nil || p0 == nil || p1 == nil {
		return nil, fmt.Errorf("store %s is not image-scored", store.Path())
	}
	if len(s0) == 0 {
		return nil, fmt.Errorf("store %s holds no events", store.Path())
	}

	th := e.cfg.Detection.SNRThreshold
	det := 0
	sumP := 0.0
	for i := range s0 {
		images := 0
		if s0[i] > th {
			images++
		}
		if s1[i] > th {
			images++
		}
		if images >= e.cfg.Detection.MinImages {
			det++
		}
		if e.cfg.Detection.MinImages <= 1 {
			sumP += p0[i] + p1[i] - p0[i]*p1[i]
		} else {
			sumP += p0[i] * p1[i]
		}
	}
	n := float64(len(s0))
	return &RateResult{
		TotalPerYear: e.lenses.NormZLensed,
		PerYear:      e.lenses.NormZLensed * float64(det) / n,
		PerYearPdet:  e.lenses.NormZLensed * sumP / n,
		Detectable:   det,
		Events:       len(s0),
	}, nil
}

// RateComparison reports how many detectable mergers pass for every
// detectable lensed one. Infinite when the lensed sample has none.
func RateComparison(unlensed, lensed *RateResult) float64 {
	logrus.Infof("unlensed rate: %.4g / yr (pdet-weighted %.4g / yr)",
		unlensed.PerYear, unlensed.PerYearPdet)
	logrus.Infof("lensed rate:   %.4g / yr (pdet-weighted %.4g / yr)",
		lensed.PerYear, lensed.PerYearPdet)
	if lensed.PerYear == 0 {
		return math.Inf(1)
	}
	ratio := unlensed.PerYear / lensed.PerYear
	logrus.Infof("rate ratio: %.4g", ratio)
	return ratio
}

// SelectDetectableUnlensed keeps sampling until n detectable mergers are
// collected and persists exactly n of them.
func (e *Estimator) SelectDetectableUnlensed(ctx context.Context, n int) (*ParamStore, error) {
	store, err := e.openStore(UnlensedDetectableStoreName, map[string]string{
		"population": "unlensed_detectable", "event_type": e.spec.EventType,
	})
	if err != nil {
		return nil, err
	}
	keep := func(batch map[string][]float64, i int) bool {
		return batch["snr"][i] > e.cfg.Detection.SNRThreshold
	}
	if err := e.topUpDetectable(ctx, store, n, e.unlensedStep, keep); err != nil {
		return nil, err
	}
	return store, nil
}

// SelectDetectableLensed keeps sampling until n lensed systems with
// enough detectable images are collected and persists exactly n of them.
func (e *Estimator) SelectDetectableLensed(ctx context.Context, n int) (*ParamStore, error) {
	store, err := e.openStore(LensedDetectableStoreName, map[string]string{
		"population": "lensed_detectable", "event_type": e.spec.EventType,
	})
	if err != nil {
		return nil, err
	}
	keep := func(batch map[string][]float64, i int) bool {
		images := 0
		if batch["snr_image_0"][i] > e.cfg.Detection.SNRThreshold {
			images++
		}
		if batch["snr_image_1"][i] > e.cfg.Detection.SNRThreshold {
			images++
		}
		return images >= e.cfg.Detection.MinImages
	}
	if err := e.topUpDetectable(ctx, store, n, e.lensedStep, keep); err != nil {
		return nil, err
	}
	return store, nil
}

// topUpDetectable appends filtered batches until the store holds target
// events, flushing after every round and trimming the final overshoot.
func (e *Estimator) topUpDetectable(ctx context.Context, store *ParamStore, target int, step StepFunc, keep func(map[string][]float64, int) bool) error {
	store.Meta.Target = target
	store.Meta.BatchSize = e.cfg.Batch.Size
	emptyRounds := 0
	for store.Len() < target {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("selection cancelled at %d of %d events: %w", store.Len(), target, err)
		}
		batch, err := step(e.cfg.Batch.Size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStepFunction, err)
		}
		kept := filterBatch(batch, keep)
		if kept == nil {
			emptyRounds++
			if emptyRounds >= maxEmptySelectionRounds {
				return fmt.Errorf("%w: no detectable events in %d rounds of %d samples",
					ErrSelectionStalled, emptyRounds, e.cfg.Batch.Size)
			}
			continue
		}
		emptyRounds = 0
		if overshoot := store.Len() + batchLen(kept) - target; overshoot > 0 {
			trimBatch(kept, batchLen(kept)-overshoot)
		}
		if err := store.Append(kept); err != nil {
			return fmt.Errorf("%w: %w", ErrStepFunction, err)
		}
		if err := store.Flush(); err != nil {
			return err
		}
		logrus.Infof("selected %d of %d detectable events", store.Len(), target)
	}
	return nil
}

// filterBatch returns the rows keep admits, or nil when none survive.
func filterBatch(batch map[string][]float64, keep func(map[string][]float64, int) bool) map[string][]float64 {
	var idx []int
	for i := 0; i < batchLen(batch); i++ {
		if keep(batch, i) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	out := make(map[string][]float64, len(batch))
	for name, vals := range batch {
		sel := make([]float64, len(idx))
		for j, i := range idx {
			sel[j] = vals[i]
		}
		out[name] = sel
	}
	return out
}

// batchLen returns the row count of a batch.
func batchLen(batch map[string][]float64) int {
	for _, vals := range batch {
		return len(vals)
	}
	return 0
}

// trimBatch truncates every field to the first n rows.
func trimBatch(batch map[string][]float64, n int) {
	for name, vals := range batch {
		if len(vals) > n {
			batch[name] = vals[:n]
		}
	}
}
