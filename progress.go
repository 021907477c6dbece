package pointdensity

// ProgressFunc reports pipeline progress. completed is the number of fully
// finished phases, total the overall phase count. It is polled strictly
// between phases, never inside one: a running phase always completes before
// the callback fires. Returning false cancels the computation; the partial
// result is discarded and the pipeline returns ErrCanceled.
type ProgressFunc func(completed, total int) bool
