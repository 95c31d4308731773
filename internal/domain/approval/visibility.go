package approval

import "github.com/max-programming/expenso/internal/domain/entity"

// IsVisible decides whether row should currently be presented to viewerID as actionable.
//
// ledger is the full set of rows for row's expense and must include row itself.
// Only pending rows owned by the viewer can be visible. The filter is a
// presentation concern; the orchestrator remains the source of truth for
// finalization.
func IsVisible(row *entity.ExpenseApproval, rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval, viewerID string) bool {
	if row == nil || !row.IsPending() || row.ApproverID != viewerID {
		return false
	}

	if rule == nil {
		return true
	}

	if rule.IsManagerFirst {
		if gate := GateRow(ledger); gate != nil {
			switch gate.Action {
			case entity.ActionPending:
				// only the gate itself; the manager's own step row waits for the gate
				return gate.ApproverID == viewerID && row.IsGate()
			case entity.ActionRejected:
				return false
			}
		}
	}

	// A gate row that is still pending after the gate check belongs to a
	// rule that is not manager-first; it is shown to its owner.
	if row.IsGate() {
		return !rule.IsManagerFirst
	}

	return ruleTypeVisible(row, rule, ledger, viewerID)
}

func ruleTypeVisible(row *entity.ExpenseApproval, rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval, viewerID string) bool {
	switch rule.RuleType {
	case entity.RuleTypeSequential:
		return previousStepsApproved(row, ledger)
	case entity.RuleTypePercentage:
		return true
	case entity.RuleTypeSpecificApprover:
		return rule.IsSpecificApprover(viewerID)
	case entity.RuleTypeHybrid:
		return !hybridDecided(rule, ledger)
	default:
		return false
	}
}

// previousStepsApproved is true if every step strictly before row's step is approved.
// Unordered rows have no predecessors.
func previousStepsApproved(row *entity.ExpenseApproval, ledger []*entity.ExpenseApproval) bool {
	slot := row.Slot()
	if slot.Kind != entity.SlotStep {
		return true
	}
	for _, other := range ledger {
		s := other.Slot()
		if s.Kind == entity.SlotStep && s.Order < slot.Order && !other.IsApproved() {
			return false
		}
	}
	return true
}

// hybridDecided reports whether either hybrid condition already holds
func hybridDecided(rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval) bool {
	if rule.SpecificApproverID != nil {
		for _, other := range ledger {
			if !other.IsGate() && other.ApproverID == *rule.SpecificApproverID && other.IsApproved() {
				return true
			}
		}
	}
	return PercentageMet(rule, ledger)
}

// FilterVisible returns the rows of ledger that viewerID may act on now
func FilterVisible(rule *entity.ApprovalRule, ledger []*entity.ExpenseApproval, viewerID string) []*entity.ExpenseApproval {
	var visible []*entity.ExpenseApproval
	for _, row := range ledger {
		if IsVisible(row, rule, ledger, viewerID) {
			visible = append(visible, row)
		}
	}
	return visible
}
