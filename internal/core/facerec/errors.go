package facerec

import "errors"

var (
	// ErrNoSamples is returned when a registration is attempted without a
	// single usable face sample.
	ErrNoSamples = errors.New("no face samples captured")

	// ErrEmptyStore is returned when matching is attempted against an empty
	// embedding store.
	ErrEmptyStore = errors.New("no registered identities to match against")

	// ErrUnknownFace is returned when the closest known identity is still
	// farther away than the match threshold.
	ErrUnknownFace = errors.New("no identity within match threshold")
)
