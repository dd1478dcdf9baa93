package motion

import "errors"

var (
	// ErrEmptyLibrary is returned when a library has no playable segments.
	ErrEmptyLibrary = errors.New("motion library is empty")

	// ErrUnknownMode is returned when a mode index has no library.
	ErrUnknownMode = errors.New("unknown motion mode")

	// ErrSkeletonMismatch is returned when clips do not share one skeleton.
	ErrSkeletonMismatch = errors.New("clips do not share a skeleton")

	// ErrNoContactJoint is returned when a contact or facing joint is missing.
	ErrNoContactJoint = errors.New("contact joint not found")
)
