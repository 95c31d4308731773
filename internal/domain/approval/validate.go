package approval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/max-programming/expenso/internal/domain/entity"
)

// ValidateRule checks a rule at authoring time. Every returned error wraps ErrValidation.
func ValidateRule(rule *entity.ApprovalRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrValidation)
	}
	if strings.TrimSpace(rule.CompanyID) == "" {
		return fmt.Errorf("%w: company_id is required", ErrValidation)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !rule.RuleType.IsValid() {
		return fmt.Errorf("%w: unknown rule type %q", ErrValidation, rule.RuleType)
	}
	if rule.Amount != nil && *rule.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}

	if rule.RuleType.UsesPercentage() {
		if rule.ApprovalPercentage == nil {
			return fmt.Errorf("%w: %s rule requires approval_percentage", ErrValidation, rule.RuleType)
		}
		if p := *rule.ApprovalPercentage; p < 1 || p > 100 {
			return fmt.Errorf("%w: approval_percentage must be between 1 and 100, got %d", ErrValidation, p)
		}
	}

	if rule.RuleType.UsesSpecificApprover() {
		if rule.SpecificApproverID == nil || strings.TrimSpace(*rule.SpecificApproverID) == "" {
			return fmt.Errorf("%w: %s rule requires specific_approver_id", ErrValidation, rule.RuleType)
		}
	}

	if rule.RuleType.UsesSteps() && len(rule.Steps) == 0 {
		return fmt.Errorf("%w: %s rule requires at least one step", ErrValidation, rule.RuleType)
	}

	// percentage rules count their step approvers, so they need a population too
	if rule.RuleType == entity.RuleTypePercentage && len(rule.Steps) == 0 {
		return fmt.Errorf("%w: percentage rule requires at least one approver step", ErrValidation)
	}

	return validateSteps(rule.Steps)
}

// validateSteps enforces unique approvers and unique, contiguous step orders starting at 1
func validateSteps(steps []entity.ApprovalStep) error {
	orders := make([]int, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if strings.TrimSpace(s.ApproverID) == "" {
			return fmt.Errorf("%w: step %d has no approver", ErrValidation, s.StepOrder)
		}
		if seen[s.ApproverID] {
			return fmt.Errorf("%w: approver %s is assigned to more than one step", ErrValidation, s.ApproverID)
		}
		seen[s.ApproverID] = true
		if s.StepOrder == entity.GateStepOrder {
			return fmt.Errorf("%w: step order 0 is reserved for the manager gate", ErrValidation)
		}
		orders = append(orders, s.StepOrder)
	}

	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return fmt.Errorf("%w: step orders must be unique and contiguous from 1, got %v", ErrValidation, orders)
		}
	}
	return nil
}

// SortSteps orders steps by ascending step order in place
func SortSteps(steps []entity.ApprovalStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})
}
