package domain

import "errors"

var (
	// ErrIndexMismatch signals two tables that must share positions (and,
	// for vector components, columns) but do not.
	ErrIndexMismatch = errors.New("index mismatch")

	// ErrMissingTable signals an extracted table absent for a required year.
	ErrMissingTable = errors.New("missing extracted table")

	// ErrMissingCategory signals a summary absent for a (time range, month).
	ErrMissingCategory = errors.New("missing summary category")

	// ErrOutOfDomain signals a value that a binning contract rules out, such
	// as a negative velocity.
	ErrOutOfDomain = errors.New("value outside binning domain")

	// ErrDuplicateColumn signals two messages mapping to the same column key.
	ErrDuplicateColumn = errors.New("duplicate column key")

	// ErrObjectNotFound is returned by storage gateways for an absent key.
	ErrObjectNotFound = errors.New("object not found")
)
