package mapping

import "github.com/pkg/errors"

// Error kinds the engine reports. Precondition violations are
// programmer errors; every other condition is reported through the normal
// (success, error) return of the public operation that hit it and
// leaves the engine's state consistent.
var (
	// ErrPreconditionViolated is returned when a command runs against a
	// precondition the caller is responsible for upholding (e.g. optimize
	// or save on an engine that has never mapped a frame).
	ErrPreconditionViolated = errors.New("mapping: precondition violated")
	// ErrOptimizerDiverged is surfaced when the smoother reports a failed
	// relinearization; the frame's factors are kept but mapping() returns
	// false and does not advance the keyframe reference pose.
	ErrOptimizerDiverged = errors.New("mapping: optimizer diverged")
	// ErrIOFailure wraps a failed save operation.
	ErrIOFailure = errors.New("mapping: io failure")
)
