package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseSubmitted Type = "expense.submitted"
	TypeApprovalRecorded Type = "approval.recorded"
	TypeExpenseApproved  Type = "expense.approved"
	TypeExpenseRejected  Type = "expense.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseSubmitted,
		TypeApprovalRecorded,
		TypeExpenseApproved,
		TypeExpenseRejected:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the event marks the end of an expense's approval flow
func (t Type) IsFinal() bool {
	return t == TypeExpenseApproved || t == TypeExpenseRejected
}
