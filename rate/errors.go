package rate

import "errors"

// ErrStepFunction marks a failure raised by, or a contract violation of, a
// caller-supplied batch step. The batch index and underlying cause are
// attached where the step runs; match with errors.Is.
var ErrStepFunction = errors.New("rate: batch step failed")

// ErrSelectionStalled reports that detectable-event selection went too
// many rounds without accepting anything.
var ErrSelectionStalled = errors.New("rate: detectable selection stalled")
