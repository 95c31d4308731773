package approval

import (
	"fmt"
	"time"

	"github.com/max-programming/expenso/internal/domain/entity"
)

// PlanAssignments builds the pending ledger rows for an expense entering pending.
//
// managerID is the employee's direct manager, or nil when unknown. With no rule
// the manager gives the single implicit approval; without a manager that is
// impossible and a validation error is returned.
func PlanAssignments(expenseID string, rule *entity.ApprovalRule, managerID *string, now time.Time) ([]*entity.ExpenseApproval, error) {
	if rule == nil {
		if managerID == nil || *managerID == "" {
			return nil, fmt.Errorf("%w: no approval rule matched and the employee has no manager", ErrValidation)
		}
		return []*entity.ExpenseApproval{newRow(expenseID, nil, *managerID, nil, now)}, nil
	}

	ruleID := rule.ID
	var rows []*entity.ExpenseApproval

	if rule.IsManagerFirst && managerID != nil && *managerID != "" {
		rows = append(rows, newRow(expenseID, &ruleID, *managerID, entity.IntPtr(entity.GateStepOrder), now))
	}

	steps := append([]entity.ApprovalStep(nil), rule.Steps...)
	SortSteps(steps)
	for _, step := range steps {
		rows = append(rows, newRow(expenseID, &ruleID, step.ApproverID, entity.IntPtr(step.StepOrder), now))
	}

	if rule.RuleType.UsesSpecificApprover() && rule.SpecificApproverID != nil && !rule.HasStepApprover(*rule.SpecificApproverID) {
		rows = append(rows, newRow(expenseID, &ruleID, *rule.SpecificApproverID, nil, now))
	}

	if len(rows) == 0 || (len(rows) == 1 && rows[0].IsGate()) {
		return nil, fmt.Errorf("%w: rule %s yields no approvers", ErrValidation, rule.ID)
	}
	return rows, nil
}

func newRow(expenseID string, ruleID *string, approverID string, stepOrder *int, now time.Time) *entity.ExpenseApproval {
	return &entity.ExpenseApproval{
		ID:             entity.NewID(entity.PrefixApproval),
		ExpenseID:      expenseID,
		ApprovalRuleID: ruleID,
		ApproverID:     approverID,
		StepOrder:      stepOrder,
		Action:         entity.ActionPending,
		AssignedAt:     now,
	}
}
