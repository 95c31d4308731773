package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/domain/event"
	"github.com/max-programming/expenso/internal/domain/workflow"
)

type expenseFixture struct {
	store    *memStore
	events   dispatcher.Dispatcher
	log      *eventLog
	metrics  *recordingMetrics
	svc      ExpenseService
	approval ApprovalService
}

func newExpenseFixture(t *testing.T) *expenseFixture {
	t.Helper()
	store := newMemStore()
	d := dispatcher.NewDispatcher()
	f := &expenseFixture{store: store, events: d, log: newEventLog(d), metrics: &recordingMetrics{}}
	f.svc = NewExpenseService(store.ruleRepo(), store.approvalRepo(), store.expenseRepo(), store, d, f.metrics, &mockLogger{})
	f.approval = NewApprovalService(store.ruleRepo(), store.approvalRepo(), store.expenseRepo(), store, d, nil, f.metrics, &mockLogger{})
	t.Cleanup(func() { _ = d.Close() })
	return f
}

func (f *expenseFixture) draft(t *testing.T, amount float64) *entity.Expense {
	t.Helper()
	expense, err := f.svc.CreateExpense(context.Background(), ExpenseInput{
		CompanyID:    "cmp_1",
		EmployeeID:   "emp_1",
		Amount:       amount,
		CurrencyCode: "usd",
		Description:  "Taxi",
		ExpenseDate:  time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return expense
}

func TestExpenseService_CreateExpense(t *testing.T) {
	f := newExpenseFixture(t)
	expense := f.draft(t, 42)

	assert.True(t, entity.HasPrefix(expense.ID, entity.PrefixExpense))
	assert.Equal(t, entity.ExpenseStatusDraft, expense.Status)
	assert.Equal(t, "USD", expense.CurrencyCode)

	got, err := f.svc.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.ID, got.ID)
}

func TestExpenseService_CreateExpenseValidation(t *testing.T) {
	f := newExpenseFixture(t)
	valid := ExpenseInput{CompanyID: "cmp_1", EmployeeID: "emp_1", Amount: 10, CurrencyCode: "EUR"}

	tests := []struct {
		name   string
		mutate func(in *ExpenseInput)
	}{
		{"missing company", func(in *ExpenseInput) { in.CompanyID = "" }},
		{"missing employee", func(in *ExpenseInput) { in.EmployeeID = " " }},
		{"zero amount", func(in *ExpenseInput) { in.Amount = 0 }},
		{"bad currency", func(in *ExpenseInput) { in.CurrencyCode = "EURO" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.svc.CreateExpense(context.Background(), in)
			assert.ErrorIs(t, err, approval.ErrValidation)
		})
	}
}

func TestExpenseService_SubmitWithManagerFirstRule(t *testing.T) {
	f := newExpenseFixture(t)
	f.store.putRule(&entity.ApprovalRule{
		ID:             "rul_seq",
		CompanyID:      "cmp_1",
		Name:           "Sequential",
		RuleType:       entity.RuleTypeSequential,
		IsManagerFirst: true,
		Steps: []entity.ApprovalStep{
			{ApproverID: "A", StepOrder: 1},
			{ApproverID: "B", StepOrder: 2},
		},
	})
	expense := f.draft(t, 300)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, expense.ID, "emp_1", entity.StringPtr("M"))
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusPending, sub.Expense.Status)
	require.NotNil(t, sub.RuleID)
	assert.Equal(t, "rul_seq", *sub.RuleID)
	require.Len(t, sub.Ledger, 3)
	assert.True(t, sub.Ledger[0].IsGate())

	stored := f.store.expense(expense.ID)
	assert.Equal(t, entity.ExpenseStatusPending, stored.Status)
	assert.NotNil(t, stored.SubmittedAt)

	// end to end through the orchestrator
	for _, row := range sub.Ledger {
		_, err := f.approval.Approve(ctx, row.ID, row.ApproverID, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, entity.ExpenseStatusApproved, f.store.expense(expense.ID).Status)

	f.flush(t)
	assert.Contains(t, f.log.types(), event.TypeExpenseSubmitted)
	assert.Equal(t, []string{"sequential"}, f.metrics.submissions)
}

func (f *expenseFixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.events.Close())
}

func TestExpenseService_SubmitWithoutRule(t *testing.T) {
	f := newExpenseFixture(t)
	expense := f.draft(t, 15)

	sub, err := f.svc.Submit(context.Background(), expense.ID, "emp_1", entity.StringPtr("M"))
	require.NoError(t, err)
	assert.Nil(t, sub.RuleID)
	require.Len(t, sub.Ledger, 1)
	assert.Equal(t, "M", sub.Ledger[0].ApproverID)
	assert.Nil(t, sub.Ledger[0].ApprovalRuleID)
}

func TestExpenseService_SubmitFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no rule and no manager rolls back", func(t *testing.T) {
		f := newExpenseFixture(t)
		expense := f.draft(t, 15)
		_, err := f.svc.Submit(ctx, expense.ID, "emp_1", nil)
		assert.ErrorIs(t, err, approval.ErrValidation)
		assert.Equal(t, entity.ExpenseStatusDraft, f.store.expense(expense.ID).Status)
	})

	t.Run("someone else's expense", func(t *testing.T) {
		f := newExpenseFixture(t)
		expense := f.draft(t, 15)
		_, err := f.svc.Submit(ctx, expense.ID, "emp_2", entity.StringPtr("M"))
		assert.ErrorIs(t, err, approval.ErrNotFound)
	})

	t.Run("submitted twice", func(t *testing.T) {
		f := newExpenseFixture(t)
		expense := f.draft(t, 15)
		_, err := f.svc.Submit(ctx, expense.ID, "emp_1", entity.StringPtr("M"))
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, expense.ID, "emp_1", entity.StringPtr("M"))
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})

	t.Run("unknown expense", func(t *testing.T) {
		f := newExpenseFixture(t)
		_, err := f.svc.Submit(ctx, "exp_missing", "emp_1", nil)
		assert.ErrorIs(t, err, approval.ErrNotFound)
	})
}

func TestExpenseService_ListExpenses(t *testing.T) {
	ctx := context.Background()
	f := newExpenseFixture(t)
	first := f.draft(t, 10)
	second := f.draft(t, 20)
	_, err := f.svc.Submit(ctx, second.ID, "emp_1", entity.StringPtr("M"))
	require.NoError(t, err)
	_, err = f.svc.CreateExpense(ctx, ExpenseInput{
		CompanyID: "cmp_2", EmployeeID: "emp_9", Amount: 5, CurrencyCode: "eur",
	})
	require.NoError(t, err)

	got, err := f.svc.ListExpenses(ctx, port.ExpenseFilter{EmployeeID: "emp_1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, expenseIDs(got))

	got, err = f.svc.ListExpenses(ctx, port.ExpenseFilter{CompanyID: " cmp_1 ", Status: entity.ExpenseStatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, expenseIDs(got))

	_, err = f.svc.ListExpenses(ctx, port.ExpenseFilter{Status: entity.ExpenseStatusDraft})
	assert.ErrorIs(t, err, approval.ErrValidation)

	_, err = f.svc.ListExpenses(ctx, port.ExpenseFilter{CompanyID: "cmp_1", Status: "paid"})
	assert.ErrorIs(t, err, approval.ErrValidation)
}

func expenseIDs(expenses []*entity.Expense) []string {
	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.ID)
	}
	return ids
}
