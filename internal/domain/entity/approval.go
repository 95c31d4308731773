package entity

import "time"

// ExpenseApproval is one ledger row: one approver assigned to one expense
// under one rule instantiation.
//
// StepOrder 0 is the manager gate, a positive value is a rule step and nil
// means the row carries no inherent order (specific approver rows, or the
// implicit approval when no rule matched).
type ExpenseApproval struct {
	ID             string         `json:"id"`
	ExpenseID      string         `json:"expense_id"`
	ApprovalRuleID *string        `json:"approval_rule_id,omitempty"`
	ApproverID     string         `json:"approver_id"`
	StepOrder      *int           `json:"step_order,omitempty"`
	Action         ApprovalAction `json:"action"`
	Comments       *string        `json:"comments,omitempty"`
	AssignedAt     time.Time      `json:"assigned_at"`
	ActionAt       *time.Time     `json:"action_at,omitempty"`
}

// SlotKind distinguishes the manager gate from rule steps
type SlotKind int

const (
	SlotUnordered SlotKind = iota
	SlotGate
	SlotStep
)

// Slot is the tagged position of a ledger row within its rule
type Slot struct {
	Kind  SlotKind
	Order int
}

// Slot returns the row's position: GateStep, RuleStep(order) or unordered
func (a *ExpenseApproval) Slot() Slot {
	switch {
	case a.StepOrder == nil:
		return Slot{Kind: SlotUnordered}
	case *a.StepOrder == GateStepOrder:
		return Slot{Kind: SlotGate}
	default:
		return Slot{Kind: SlotStep, Order: *a.StepOrder}
	}
}

// IsGate returns true for the manager gate row
func (a *ExpenseApproval) IsGate() bool {
	return a.Slot().Kind == SlotGate
}

// IsPending returns true if the row has not been acted upon
func (a *ExpenseApproval) IsPending() bool {
	return a.Action == ActionPending
}

// IsApproved returns true if the row was approved
func (a *ExpenseApproval) IsApproved() bool {
	return a.Action == ActionApproved
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v
func StringPtr(v string) *string {
	return &v
}
