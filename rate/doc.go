// Package rate estimates yearly rates of gravitationally lensed and
// unlensed compact-binary mergers by Monte Carlo.
//
// # Reading Guide
//
// Start with these three files to understand the pipeline:
//   - rates.go: the Estimator, which wires populations, image solving and
//     SNR scoring into resumable runs and turns stores into rates
//   - batch.go: the batch runner (run states, persistence after every
//     batch, resume semantics)
//   - store.go: the on-disk parameter store the runner appends to
//
// # Architecture
//
// The rate package orchestrates; the heavy lifting lives in sub-packages:
//   - rate/interp/: cached interpolants (splines, normalized densities,
//     inverse CDFs, conditioned families) and the sampling engine
//   - rate/cosmo/: flat LambdaCDM distances and their cached lookup tables
//   - rate/astro/: source and lens populations built from a YAML spec
//   - rate/image/: strong-lensing image solving (positions,
//     magnifications, time delays)
//   - rate/snr/: inspiral signal-to-noise scoring and detection
//     probability
//
// Randomness is partitioned per subsystem from one run seed, so
// interleaving or resuming one pipeline never perturbs another.
package rate
