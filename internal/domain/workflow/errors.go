package workflow

import "errors"

var (
	// ErrInvalidTransition means the expense status does not permit the trigger,
	// e.g. submitting an expense that is already pending.
	ErrInvalidTransition = errors.New("expense status does not allow this transition")

	// ErrInvalidState means a stored status is not one of draft, pending, approved, rejected
	ErrInvalidState = errors.New("unknown expense status")

	ErrGuardFailed = errors.New("transition guard rejected the trigger")
)
