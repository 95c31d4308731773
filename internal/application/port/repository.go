package port

import (
	"context"
	"time"

	"github.com/max-programming/expenso/internal/domain/entity"
)

// RuleRepository defines persistence operations for ApprovalRule and its steps
type RuleRepository interface {
	// Create inserts the rule and all of its steps
	Create(ctx context.Context, rule *entity.ApprovalRule) error

	// GetByID loads a rule with its steps sorted by step order.
	// Returns approval.ErrNotFound when no such rule exists.
	GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error)

	// ListByCompany loads every rule of a company with steps, oldest first
	ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error)

	// Update rewrites the rule's fields and replaces its steps
	Update(ctx context.Context, rule *entity.ApprovalRule) error

	// Delete removes the rule; steps cascade
	Delete(ctx context.Context, id string) error

	// CountPendingUsage counts pending ledger rows still governed by the rule
	CountPendingUsage(ctx context.Context, id string) (int, error)
}

// ApprovalRecord is the state written to a ledger row when it is acted upon
type ApprovalRecord struct {
	ID         string
	ApproverID string
	Action     entity.ApprovalAction
	Comments   *string
	ActionAt   time.Time
}

// ApprovalRepository defines persistence operations for the per-expense ledger
type ApprovalRepository interface {
	// CreateBatch inserts the pending rows planned for an expense
	CreateBatch(ctx context.Context, rows []*entity.ExpenseApproval) error

	// GetPendingForApprover returns the row only if it exists, belongs to
	// approverID and is still pending; otherwise approval.ErrNotFoundOrAlreadyProcessed.
	GetPendingForApprover(ctx context.Context, id, approverID string) (*entity.ExpenseApproval, error)

	// MarkAction moves a pending row to a terminal action. The write is
	// conditional on the row still being pending and owned; when no row
	// matches it returns approval.ErrNotFoundOrAlreadyProcessed.
	MarkAction(ctx context.Context, rec ApprovalRecord) error

	// ListByExpense returns the ledger of an expense ordered by step order
	// (gate first, unordered rows last)
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.ExpenseApproval, error)

	// ListPendingByApprover returns the approver's pending rows whose expense is still pending
	ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.ExpenseApproval, error)
}

// ExpenseFilter narrows ExpenseRepository.List. Empty fields match everything.
type ExpenseFilter struct {
	CompanyID  string
	EmployeeID string
	Status     entity.ExpenseStatus
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error

	// List returns matching expenses, newest first
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)

	// GetByID returns approval.ErrNotFound when no such expense exists
	GetByID(ctx context.Context, id string) (*entity.Expense, error)

	// UpdateStatus moves the expense from one status to another and fails
	// with approval.ErrNotFoundOrAlreadyProcessed when it is no longer in from
	UpdateStatus(ctx context.Context, id string, from, to entity.ExpenseStatus) error

	// MarkSubmitted moves a draft to pending and stamps submitted_at
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
