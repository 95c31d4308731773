// Package approval holds the pure decision logic of the approval engine:
// the rule evaluator, the visibility filter, rule validation, rule selection
// and assignment planning. Nothing here performs I/O or keeps state between calls.
package approval

import "github.com/max-programming/expenso/internal/domain/entity"

// Verdict is the evaluator's decision for an expense after an approval
type Verdict string

const (
	VerdictPending  Verdict = "pending"
	VerdictApproved Verdict = "approved"
)

// Evaluate decides whether the expense is now approved.
//
// rule is nil when no rule matched at assignment time; a single implicit
// approval then suffices. The manager gate row never counts. Malformed rules
// evaluate to pending.
func Evaluate(rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval, justApprovedBy string) Verdict {
	if rule == nil {
		return VerdictApproved
	}

	switch rule.RuleType {
	case entity.RuleTypeSequential:
		if allStepsApproved(ledger) {
			return VerdictApproved
		}
	case entity.RuleTypePercentage:
		if PercentageMet(rule, ledger) {
			return VerdictApproved
		}
	case entity.RuleTypeSpecificApprover:
		if rule.IsSpecificApprover(justApprovedBy) {
			return VerdictApproved
		}
	case entity.RuleTypeHybrid:
		if rule.IsSpecificApprover(justApprovedBy) || PercentageMet(rule, ledger) {
			return VerdictApproved
		}
	}

	return VerdictPending
}

// allStepsApproved is true when at least one rule step exists and all are approved
func allStepsApproved(ledger []*entity.ExpenseApproval) bool {
	steps := stepRows(ledger)
	if len(steps) == 0 {
		return false
	}
	for _, row := range steps {
		if !row.IsApproved() {
			return false
		}
	}
	return true
}

// PercentageMet reports whether the rule's approval percentage has been reached.
// A missing or out-of-range threshold, or an empty denominator, is never met.
func PercentageMet(rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval) bool {
	if rule == nil || rule.ApprovalPercentage == nil {
		return false
	}
	threshold := *rule.ApprovalPercentage
	if threshold < 1 || threshold > 100 {
		return false
	}

	approved, total := Tally(ledger)
	if total == 0 {
		return false
	}
	// 100*approved/total >= threshold without truncation
	return 100*approved >= threshold*total
}

// Tally counts approved and total rows that take part in percentage rules:
// rule steps (stepOrder > 0) when present, otherwise every non-gate row.
func Tally(ledger []*entity.ExpenseApproval) (approved, total int) {
	rows := stepRows(ledger)
	if len(rows) == 0 {
		rows = nonGateRows(ledger)
	}
	for _, row := range rows {
		if row.IsApproved() {
			approved++
		}
	}
	return approved, len(rows)
}

// ApprovedPercentage returns the current whole-number approval percentage.
// ok is false when there is nothing to count.
func ApprovedPercentage(ledger []*entity.ExpenseApproval) (pct int, ok bool) {
	approved, total := Tally(ledger)
	if total == 0 {
		return 0, false
	}
	return 100 * approved / total, true
}

func stepRows(ledger []*entity.ExpenseApproval) []*entity.ExpenseApproval {
	rows := make([]*entity.ExpenseApproval, 0, len(ledger))
	for _, row := range ledger {
		if row.Slot().Kind == entity.SlotStep {
			rows = append(rows, row)
		}
	}
	return rows
}

func nonGateRows(ledger []*entity.ExpenseApproval) []*entity.ExpenseApproval {
	rows := make([]*entity.ExpenseApproval, 0, len(ledger))
	for _, row := range ledger {
		if !row.IsGate() {
			rows = append(rows, row)
		}
	}
	return rows
}

// GateRow returns the manager gate row of the ledger, if any
func GateRow(ledger []*entity.ExpenseApproval) *entity.ExpenseApproval {
	for _, row := range ledger {
		if row.IsGate() {
			return row
		}
	}
	return nil
}
