package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/max-programming/expenso/internal/domain/entity"
)

func managerFirst(r *entity.ApprovalRule) *entity.ApprovalRule {
	r.IsManagerFirst = true
	return r
}

func TestIsVisible_OnlyOwnPendingRows(t *testing.T) {
	r := rule(entity.RuleTypePercentage)
	a := row("A", 1, pending)
	b := row("B", 2, approved)
	ledger := []*entity.ExpenseApproval{a, b}

	assert.True(t, IsVisible(a, r, ledger, "A"))
	assert.False(t, IsVisible(a, r, ledger, "B"), "row owned by someone else")
	assert.False(t, IsVisible(b, r, ledger, "B"), "already acted upon")
	assert.False(t, IsVisible(nil, r, ledger, "A"))
}

func TestIsVisible_NoRule(t *testing.T) {
	m := row("M", -1, pending)
	assert.True(t, IsVisible(m, nil, []*entity.ExpenseApproval{m}, "M"))
}

func TestIsVisible_ManagerGate(t *testing.T) {
	newLedger := func(gate entity.ApprovalAction) []*entity.ExpenseApproval {
		return []*entity.ExpenseApproval{
			row("M", 0, gate),
			row("A", 1, pending),
			row("B", 2, pending),
		}
	}

	types := []*entity.ApprovalRule{
		managerFirst(rule(entity.RuleTypeSequential)),
		managerFirst(withPct(rule(entity.RuleTypePercentage), 50)),
		managerFirst(withSpecific(rule(entity.RuleTypeSpecificApprover), "A")),
		managerFirst(withPct(withSpecific(rule(entity.RuleTypeHybrid), "B"), 100)),
	}

	for _, r := range types {
		t.Run(string(r.RuleType)+"/gate pending", func(t *testing.T) {
			ledger := newLedger(pending)
			assert.True(t, IsVisible(ledger[0], r, ledger, "M"), "manager sees gate")
			assert.False(t, IsVisible(ledger[1], r, ledger, "A"))
			assert.False(t, IsVisible(ledger[2], r, ledger, "B"))
		})

		t.Run(string(r.RuleType)+"/gate rejected", func(t *testing.T) {
			ledger := newLedger(rejected)
			assert.Empty(t, FilterVisible(r, ledger, "A"))
			assert.Empty(t, FilterVisible(r, ledger, "B"))
			assert.Empty(t, FilterVisible(r, ledger, "M"))
		})
	}

	t.Run("gate approved opens sequential step 1 only", func(t *testing.T) {
		r := types[0]
		ledger := newLedger(approved)
		assert.True(t, IsVisible(ledger[1], r, ledger, "A"))
		assert.False(t, IsVisible(ledger[2], r, ledger, "B"))
	})

	t.Run("gate approved opens percentage to all", func(t *testing.T) {
		r := types[1]
		ledger := newLedger(approved)
		assert.True(t, IsVisible(ledger[1], r, ledger, "A"))
		assert.True(t, IsVisible(ledger[2], r, ledger, "B"))
	})

	t.Run("gate approved opens specific approver only", func(t *testing.T) {
		r := types[2]
		ledger := newLedger(approved)
		assert.True(t, IsVisible(ledger[1], r, ledger, "A"))
		assert.False(t, IsVisible(ledger[2], r, ledger, "B"))
	})

	t.Run("manager step row hidden while own gate pending", func(t *testing.T) {
		r := managerFirst(rule(entity.RuleTypePercentage))
		r.ApprovalPercentage = entity.IntPtr(50)
		ledger := []*entity.ExpenseApproval{row("M", 0, pending), row("M", 1, pending), row("A", 2, pending)}
		visible := FilterVisible(r, ledger, "M")
		if assert.Len(t, visible, 1) {
			assert.True(t, visible[0].IsGate())
		}
	})

	t.Run("manager first without gate row falls through", func(t *testing.T) {
		r := managerFirst(withPct(rule(entity.RuleTypePercentage), 50))
		ledger := []*entity.ExpenseApproval{row("A", 1, pending)}
		assert.True(t, IsVisible(ledger[0], r, ledger, "A"))
	})
}

func TestIsVisible_Sequential(t *testing.T) {
	r := rule(entity.RuleTypeSequential)
	ledger := []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("C", 3, pending)}

	assert.True(t, IsVisible(ledger[1], r, ledger, "B"))
	assert.False(t, IsVisible(ledger[2], r, ledger, "C"))

	ledger[1].Action = approved
	assert.True(t, IsVisible(ledger[2], r, ledger, "C"))
}

func TestIsVisible_SpecificApprover(t *testing.T) {
	r := withSpecific(rule(entity.RuleTypeSpecificApprover), "D")
	ledger := []*entity.ExpenseApproval{row("D", -1, pending), row("E", 1, pending), row("F", 2, pending)}

	assert.True(t, IsVisible(ledger[0], r, ledger, "D"))
	assert.False(t, IsVisible(ledger[1], r, ledger, "E"))
	assert.False(t, IsVisible(ledger[2], r, ledger, "F"))
}

func TestIsVisible_Hybrid(t *testing.T) {
	t.Run("undecided visible to all", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 100)
		ledger := []*entity.ExpenseApproval{row("A", 1, pending), row("B", 2, pending), row("S", -1, pending)}
		assert.Len(t, FilterVisible(r, ledger, "A"), 1)
		assert.Len(t, FilterVisible(r, ledger, "B"), 1)
		assert.Len(t, FilterVisible(r, ledger, "S"), 1)
	})

	t.Run("specific approver already approved hides rest", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 100)
		ledger := []*entity.ExpenseApproval{row("A", 1, pending), row("S", 2, approved)}
		assert.False(t, IsVisible(ledger[0], r, ledger, "A"))
	})

	t.Run("percentage already met hides rest", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 50)
		ledger := []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("S", -1, pending)}
		assert.False(t, IsVisible(ledger[1], r, ledger, "B"))
		assert.False(t, IsVisible(ledger[2], r, ledger, "S"))
	})
}

func TestIsVisible_UnknownRuleType(t *testing.T) {
	r := rule(entity.RuleType("weighted"))
	a := row("A", 1, pending)
	assert.False(t, IsVisible(a, r, []*entity.ExpenseApproval{a}, "A"))
}
