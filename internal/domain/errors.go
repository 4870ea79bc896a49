// Package domain holds the error taxonomy shared by the coordination core.
package domain

import "errors"

var (
	// ErrIllegalTransition is returned when an action is not valid from the visit's state.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrAlreadyExited is returned for any action on a visit that has exited.
	ErrAlreadyExited = errors.New("visit already exited")

	ErrAlreadyCheckedIn      = errors.New("already checked in today")
	ErrAlreadyCheckedOut     = errors.New("already checked out today")
	ErrNotCheckedIn          = errors.New("not checked in today")
	ErrCheckOutBeforeCheckIn = errors.New("check-out precedes check-in")

	// ErrStoreUnavailable wraps any failure talking to the record store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConcurrentUpdateConflict is returned when a conditional write lost a race.
	// Callers retry it a bounded number of times.
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")

	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsInformational reports whether err only says the desired end state already holds.
func IsInformational(err error) bool {
	return errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrAlreadyCheckedOut) ||
		errors.Is(err, ErrAlreadyExited)
}

// IsRetryable reports whether the operation may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdateConflict)
}

// IsNotFound reports whether err means the addressed record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
