package approval

import "github.com/max-programming/expenso/internal/domain/entity"

// Applies reports whether rule can govern expense: same company, matching
// category restriction and an amount threshold not above the expense amount.
func Applies(rule *entity.ApprovalRule, expense *entity.Expense) bool {
	if rule == nil || expense == nil || rule.CompanyID != expense.CompanyID {
		return false
	}
	if rule.SpecificCategoryID != nil {
		if expense.CategoryID == nil || *expense.CategoryID != *rule.SpecificCategoryID {
			return false
		}
	}
	if rule.Amount != nil && expense.Amount < *rule.Amount {
		return false
	}
	return true
}

// SelectRule picks the rule that governs expense, or nil when none applies.
// Category-specific rules beat generic ones, then the highest amount threshold
// wins, then the earliest created rule.
func SelectRule(rules []*entity.ApprovalRule, expense *entity.Expense) *entity.ApprovalRule {
	var best *entity.ApprovalRule
	for _, rule := range rules {
		if !Applies(rule, expense) {
			continue
		}
		if best == nil || moreSpecific(rule, best) {
			best = rule
		}
	}
	return best
}

func moreSpecific(a, b *entity.ApprovalRule) bool {
	aCat, bCat := a.SpecificCategoryID != nil, b.SpecificCategoryID != nil
	if aCat != bCat {
		return aCat
	}
	aAmt, bAmt := threshold(a), threshold(b)
	if aAmt != bAmt {
		return aAmt > bAmt
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func threshold(rule *entity.ApprovalRule) float64 {
	if rule.Amount == nil {
		return 0
	}
	return *rule.Amount
}
