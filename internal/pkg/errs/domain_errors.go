package errs

import "errors"

// Error categories shared by every component. Domain and infra errors are
// marked with one of these so callers can branch with Is.
var (
	// Transient: the backing store cannot be reached right now.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Permanent, caller-facing
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrNotEmpty          = errors.New("storage location not empty")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Malformed input to a storage-location or report-schedule call
	ErrValidation = errors.New("validation error")
)

// IsRetryable is true only for transient store failures.
func IsRetryable(err error) bool {
	return Is(err, ErrStoreUnavailable)
}
