package workflow

import "github.com/max-programming/expenso/internal/domain/entity"

// State is an expense lifecycle state
type State string

const (
	StateDraft    State = State(entity.ExpenseStatusDraft)
	StatePending  State = State(entity.ExpenseStatusPending)
	StateApproved State = State(entity.ExpenseStatusApproved)
	StateRejected State = State(entity.ExpenseStatusRejected)
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// FromStatus converts a persisted expense status to a State
func FromStatus(s entity.ExpenseStatus) State {
	return State(s)
}

// Status converts the state back to an expense status
func (s State) Status() entity.ExpenseStatus {
	return entity.ExpenseStatus(s)
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid expense state
func (s State) IsValid() bool {
	return validStates[s]
}
