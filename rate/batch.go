// batch.go
//
// Batched, resumable execution of a sampling step. The parameter store is
// flushed after every batch, so an interrupted run loses at most the batch
// in flight and resumes from the last persisted one.

package rate

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// RunState tracks a batch run through its lifecycle.
type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateRunning    RunState = "running"
	StateCompleted  RunState = "completed"
	StateFailed     RunState = "failed"
)

// StepFunc produces one batch of n sampled events as equally long arrays
// keyed by parameter name. Implementations must return arrays of exactly n
// entries.
type StepFunc func(n int) (map[string][]float64, error)

// Runner drives a StepFunc to a target event count in persisted batches.
// Batches run strictly one after another on the calling goroutine, and
// every batch is flushed before the next starts. A store that already
// holds samples toward the target resumes where it stopped.
type Runner struct {
	store     *ParamStore
	batchSize int
	state     RunState
}

// NewRunner wraps store with a batch executor.
func NewRunner(store *ParamStore, batchSize int) *Runner {
	return &Runner{store: store, batchSize: batchSize, state: StateNotStarted}
}

// State reports the runner's lifecycle state.
func (r *Runner) State() RunState { return r.state }

// Store returns the underlying parameter store.
func (r *Runner) Store() *ParamStore { return r.store }

// Run executes step in batches until the store holds target events.
// Cancellation is honored between batches only: the unit of cancellation
// and resume is one whole batch. A step failure, a short or ragged batch,
// or a field-set change surfaces as ErrStepFunction with the partial store
// preserved on disk.
func (r *Runner) Run(ctx context.Context, target int, step StepFunc) error {
	done := r.store.Len()
	r.store.Meta.Target = target
	r.store.Meta.BatchSize = r.batchSize

	if done >= target {
		if err := r.store.Flush(); err != nil {
			r.state = StateFailed
			return err
		}
		r.state = StateCompleted
		logrus.Infof("run %s already holds %s of %s events, nothing to do",
			r.store.Meta.RunID, humanize.Comma(int64(done)), humanize.Comma(int64(target)))
		return nil
	}
	if done > 0 {
		logrus.Infof("run %s resuming at %s of %s events",
			r.store.Meta.RunID, humanize.Comma(int64(done)), humanize.Comma(int64(target)))
	}

	r.state = StateRunning
	sizes := batchSizes(target-done, r.batchSize)
	for i, n := range sizes {
		if err := ctx.Err(); err != nil {
			r.state = StateFailed
			return fmt.Errorf("run cancelled before batch %d of %d: %w", i+1, len(sizes), err)
		}

		batch, err := step(n)
		if err != nil {
			r.state = StateFailed
			return fmt.Errorf("%w: batch %d of %d: %w", ErrStepFunction, i+1, len(sizes), err)
		}
		if err := validateBatch(batch, n); err != nil {
			r.state = StateFailed
			return fmt.Errorf("%w: batch %d of %d: %w", ErrStepFunction, i+1, len(sizes), err)
		}
		if err := r.store.Append(batch); err != nil {
			r.state = StateFailed
			return fmt.Errorf("%w: batch %d of %d: %w", ErrStepFunction, i+1, len(sizes), err)
		}
		if err := r.store.Flush(); err != nil {
			r.state = StateFailed
			return fmt.Errorf("persisting batch %d of %d: %w", i+1, len(sizes), err)
		}
		logrus.Infof("collected %s of %s events (batch %d/%d)",
			humanize.Comma(int64(r.store.Len())), humanize.Comma(int64(target)), i+1, len(sizes))
	}

	r.state = StateCompleted
	return nil
}

// batchSizes splits remaining into an optional leading fractional batch
// followed by full batches. Putting the remainder first keeps later
// batches full-sized, so a resumed run realigns on the same boundaries.
func batchSizes(remaining, batchSize int) []int {
	if batchSize <= 0 || batchSize >= remaining {
		return []int{remaining}
	}
	var sizes []int
	if frac := remaining % batchSize; frac > 0 {
		sizes = append(sizes, frac)
	}
	for i := 0; i < remaining/batchSize; i++ {
		sizes = append(sizes, batchSize)
	}
	return sizes
}

func validateBatch(batch map[string][]float64, n int) error {
	if len(batch) == 0 {
		return fmt.Errorf("step returned no fields")
	}
	for name, vals := range batch {
		if len(vals) != n {
			return fmt.Errorf("step returned %d values for field %q, want %d", len(vals), name, n)
		}
	}
	return nil
}
