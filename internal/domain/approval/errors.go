package approval

import "errors"

var (
	// ErrNotFoundOrAlreadyProcessed is returned when the target approval row does not exist,
	// is not owned by the caller, is no longer pending, or belongs to a finalized expense.
	ErrNotFoundOrAlreadyProcessed = errors.New("approval not found or already processed")

	// ErrValidation is returned for invalid input or malformed rule configuration
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a referenced rule or expense does not exist
	ErrNotFound = errors.New("not found")
)

// ErrRuleInUse is returned when a rule still governs pending approvals and cannot change
var ErrRuleInUse = errors.New("approval rule governs pending expenses")
