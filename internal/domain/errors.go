package domain

import "errors"

// Sentinel errors for the scheduling engine.
// Check with errors.Is: errors.Is(err, domain.ErrConflict)
var (
	// ErrNotFound is returned when a card id is unknown to the store.
	ErrNotFound = errors.New("srs: card not found")

	// ErrInvalidGrade is returned for review qualities outside [0,5].
	// The grade is not clamped; a bad value is a caller bug.
	ErrInvalidGrade = errors.New("srs: grade out of range")

	// ErrConflict is returned when a write carries a stale version token,
	// meaning the card was modified since the caller last read it.
	ErrConflict = errors.New("srs: scheduling state version conflict")

	// ErrNothingToUndo is returned when no grade is pending to revert.
	ErrNothingToUndo = errors.New("srs: nothing to undo")

	// ErrStorage wraps opaque persistence failures.
	ErrStorage = errors.New("srs: storage failure")
)
