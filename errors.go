package pointdensity

import "errors"

// Sentinel errors returned by the public API. Call sites wrap them with
// fmt.Errorf("pointdensity: ...: %w", err) so callers can match with
// errors.Is while still seeing which operation failed.
var (
	// ErrInvalidArgument reports a caller value rejected by eager validation:
	// a non-positive radius, a negative neighbour count, an empty point set,
	// or mismatched slice lengths. Validation happens at the public API
	// boundary before any work begins.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyHeap reports Pop, Peek, PeekKey or PopReplace on a heap that
	// holds no entries.
	ErrEmptyHeap = errors.New("empty heap")

	// ErrCanceled reports that a ProgressFunc returned false between
	// pipeline phases.
	ErrCanceled = errors.New("canceled")
)
