package domain

import "errors"

var (
	// ErrConflict means an apply-time precondition failed because of a
	// concurrent mutation (unit no longer vacant, request already fulfilled).
	// Recoverable: re-run the matcher on a fresh snapshot.
	ErrConflict = errors.New("conflict: state changed since snapshot")

	// ErrAlreadyReleased means release was attempted on a non-active allocation.
	ErrAlreadyReleased = errors.New("allocation already released")

	ErrUnitNotFound       = errors.New("unit not found")
	ErrRequestNotFound    = errors.New("request not found")
	ErrAllocationNotFound = errors.New("allocation not found")

	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidUnitType   = errors.New("unit type is required")
	ErrInvalidUnitStatus = errors.New("invalid unit status")
	ErrInvalidPriority   = errors.New("priority rank must be zero or positive")
)
