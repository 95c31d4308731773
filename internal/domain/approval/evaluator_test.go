package approval

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/max-programming/expenso/internal/domain/entity"
)

// row builds a ledger row; step < 0 means unordered
func row(approver string, step int, action entity.ApprovalAction) *entity.ExpenseApproval {
	r := &entity.ExpenseApproval{
		ID:         "apr_" + approver + fmt.Sprint(step),
		ExpenseID:  "exp_1",
		ApproverID: approver,
		Action:     action,
	}
	if step >= 0 {
		r.StepOrder = entity.IntPtr(step)
	}
	return r
}

func rule(t entity.RuleType) *entity.ApprovalRule {
	return &entity.ApprovalRule{ID: "rul_1", CompanyID: "cmp_1", Name: "r", RuleType: t}
}

func withPct(r *entity.ApprovalRule, p int) *entity.ApprovalRule {
	r.ApprovalPercentage = entity.IntPtr(p)
	return r
}

func withSpecific(r *entity.ApprovalRule, id string) *entity.ApprovalRule {
	r.SpecificApproverID = entity.StringPtr(id)
	return r
}

const (
	pending  = entity.ActionPending
	approved = entity.ActionApproved
	rejected = entity.ActionRejected
)

func TestEvaluate_NoRule(t *testing.T) {
	ledger := []*entity.ExpenseApproval{row("M", -1, approved)}
	assert.Equal(t, VerdictApproved, Evaluate(nil, ledger, "M"))
}

func TestEvaluate_Sequential(t *testing.T) {
	r := rule(entity.RuleTypeSequential)

	tests := []struct {
		name   string
		ledger []*entity.ExpenseApproval
		want   Verdict
	}{
		{
			name:   "all steps approved",
			ledger: []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, approved), row("C", 3, approved)},
			want:   VerdictApproved,
		},
		{
			name:   "one step pending",
			ledger: []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("C", 3, approved)},
			want:   VerdictPending,
		},
		{
			name:   "out of order arrival still completes",
			ledger: []*entity.ExpenseApproval{row("C", 3, approved), row("A", 1, approved), row("B", 2, approved)},
			want:   VerdictApproved,
		},
		{
			name:   "gate excluded from counting",
			ledger: []*entity.ExpenseApproval{row("M", 0, pending), row("A", 1, approved)},
			want:   VerdictApproved,
		},
		{
			name:   "no steps is never satisfiable",
			ledger: []*entity.ExpenseApproval{row("M", 0, approved)},
			want:   VerdictPending,
		},
		{
			name:   "empty ledger",
			ledger: nil,
			want:   VerdictPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(r, tt.ledger, "A"))
		})
	}
}

func TestEvaluate_SequentialOrderIndependence(t *testing.T) {
	r := rule(entity.RuleTypeSequential)
	orders := [][]int{{1, 2, 3}, {3, 2, 1}, {2, 1, 3}, {2, 3, 1}, {1, 3, 2}, {3, 1, 2}}

	for _, order := range orders {
		ledger := []*entity.ExpenseApproval{row("A", 1, pending), row("B", 2, pending), row("C", 3, pending)}
		for i, step := range order {
			ledger[step-1].Action = approved
			got := Evaluate(r, ledger, ledger[step-1].ApproverID)
			if i < len(order)-1 {
				assert.Equal(t, VerdictPending, got, "order %v after %d approvals", order, i+1)
			} else {
				assert.Equal(t, VerdictApproved, got, "order %v after all approvals", order)
			}
		}
	}
}

func TestEvaluate_Percentage(t *testing.T) {
	tests := []struct {
		name      string
		threshold *int
		ledger    []*entity.ExpenseApproval
		want      Verdict
	}{
		{
			name:      "one of three below 60",
			threshold: entity.IntPtr(60),
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("C", 3, pending)},
			want:      VerdictPending,
		},
		{
			name:      "two of three meets 60",
			threshold: entity.IntPtr(60),
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, approved), row("C", 3, pending)},
			want:      VerdictApproved,
		},
		{
			name:      "exact boundary 50 of 2",
			threshold: entity.IntPtr(50),
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending)},
			want:      VerdictApproved,
		},
		{
			name:      "two of three below 67",
			threshold: entity.IntPtr(67),
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, approved), row("C", 3, pending)},
			want:      VerdictPending,
		},
		{
			name:      "gate approval does not count",
			threshold: entity.IntPtr(50),
			ledger:    []*entity.ExpenseApproval{row("M", 0, approved), row("A", 1, pending), row("B", 2, pending)},
			want:      VerdictPending,
		},
		{
			name:      "unordered rows counted when no steps",
			threshold: entity.IntPtr(50),
			ledger:    []*entity.ExpenseApproval{row("A", -1, approved), row("B", -1, pending)},
			want:      VerdictApproved,
		},
		{
			name:      "zero denominator is pending",
			threshold: entity.IntPtr(1),
			ledger:    []*entity.ExpenseApproval{row("M", 0, approved)},
			want:      VerdictPending,
		},
		{
			name:      "missing threshold is pending",
			threshold: nil,
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved)},
			want:      VerdictPending,
		},
		{
			name:      "out of range threshold is pending",
			threshold: entity.IntPtr(0),
			ledger:    []*entity.ExpenseApproval{row("A", 1, approved)},
			want:      VerdictPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule(entity.RuleTypePercentage)
			r.ApprovalPercentage = tt.threshold
			assert.Equal(t, tt.want, Evaluate(r, tt.ledger, "A"))
		})
	}
}

func TestEvaluate_PercentageFirstCrossing(t *testing.T) {
	for p := 1; p <= 100; p++ {
		for n := 1; n <= 6; n++ {
			r := withPct(rule(entity.RuleTypePercentage), p)
			ledger := make([]*entity.ExpenseApproval, n)
			for i := range ledger {
				ledger[i] = row(fmt.Sprintf("U%d", i), i+1, pending)
			}
			for k := 1; k <= n; k++ {
				ledger[k-1].Action = approved
				want := VerdictPending
				if float64(k)/float64(n)*100 >= float64(p) {
					want = VerdictApproved
				}
				assert.Equal(t, want, Evaluate(r, ledger, ledger[k-1].ApproverID), "p=%d n=%d k=%d", p, n, k)
			}
		}
	}
}

func TestEvaluate_SpecificApprover(t *testing.T) {
	r := withSpecific(rule(entity.RuleTypeSpecificApprover), "D")
	ledger := []*entity.ExpenseApproval{row("D", -1, pending), row("E", 1, approved), row("F", 2, pending)}

	assert.Equal(t, VerdictPending, Evaluate(r, ledger, "E"))

	ledger[0].Action = approved
	assert.Equal(t, VerdictApproved, Evaluate(r, ledger, "D"))

	t.Run("missing specific approver is never satisfiable", func(t *testing.T) {
		malformed := rule(entity.RuleTypeSpecificApprover)
		assert.Equal(t, VerdictPending, Evaluate(malformed, ledger, "D"))
	})
}

func TestEvaluate_Hybrid(t *testing.T) {
	t.Run("specific approver short-circuits", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 100)
		ledger := []*entity.ExpenseApproval{row("A", 1, pending), row("S", 2, approved), row("C", 3, pending)}
		assert.Equal(t, VerdictApproved, Evaluate(r, ledger, "S"))
	})

	t.Run("percentage alone triggers", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 50)
		ledger := []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("S", -1, pending)}
		assert.Equal(t, VerdictApproved, Evaluate(r, ledger, "A"))
	})

	t.Run("neither condition", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 75)
		ledger := []*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("S", -1, pending)}
		assert.Equal(t, VerdictPending, Evaluate(r, ledger, "A"))
	})

	t.Run("rejection does not count toward percentage", func(t *testing.T) {
		r := withPct(withSpecific(rule(entity.RuleTypeHybrid), "S"), 50)
		ledger := []*entity.ExpenseApproval{row("A", 1, rejected), row("B", 2, pending)}
		assert.Equal(t, VerdictPending, Evaluate(r, ledger, "B"))
	})
}

func TestEvaluate_UnknownRuleType(t *testing.T) {
	r := rule(entity.RuleType("weighted"))
	assert.Equal(t, VerdictPending, Evaluate(r, []*entity.ExpenseApproval{row("A", 1, approved)}, "A"))
}

func TestApprovedPercentage(t *testing.T) {
	pct, ok := ApprovedPercentage([]*entity.ExpenseApproval{row("A", 1, approved), row("B", 2, pending), row("C", 3, pending)})
	assert.True(t, ok)
	assert.Equal(t, 33, pct)

	_, ok = ApprovedPercentage([]*entity.ExpenseApproval{row("M", 0, approved)})
	assert.False(t, ok)
}
