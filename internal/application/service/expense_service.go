package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/domain/event"
	"github.com/max-programming/expenso/internal/domain/workflow"
)

// ExpenseInput carries the fields of a new draft expense
type ExpenseInput struct {
	CompanyID    string    `json:"company_id"`
	EmployeeID   string    `json:"employee_id"`
	CategoryID   *string   `json:"category_id"`
	Amount       float64   `json:"amount"`
	CurrencyCode string    `json:"currency_code"`
	Description  string    `json:"description"`
	ExpenseDate  time.Time `json:"expense_date"`
}

// Submission is a submitted expense together with the ledger it received
type Submission struct {
	Expense *entity.Expense           `json:"expense"`
	RuleID  *string                   `json:"rule_id"`
	Ledger  []*entity.ExpenseApproval `json:"ledger"`
}

// ExpenseService creates expenses and sends them into approval
type ExpenseService interface {
	CreateExpense(ctx context.Context, in ExpenseInput) (*entity.Expense, error)
	Submit(ctx context.Context, expenseID, employeeID string, managerID *string) (*Submission, error)
	GetExpense(ctx context.Context, id string) (*entity.Expense, error)
	ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error)
}

type expenseServiceImpl struct {
	ruleRepo     port.RuleRepository
	approvalRepo port.ApprovalRepository
	expenseRepo  port.ExpenseRepository
	txManager    port.TransactionManager
	events       dispatcher.Dispatcher
	metrics      port.Metrics
	logger       Logger
	now          func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	ruleRepo port.RuleRepository,
	approvalRepo port.ApprovalRepository,
	expenseRepo port.ExpenseRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	metrics port.Metrics,
	logger Logger,
) ExpenseService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &expenseServiceImpl{
		ruleRepo:     ruleRepo,
		approvalRepo: approvalRepo,
		expenseRepo:  expenseRepo,
		txManager:    txManager,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateExpense stores a new draft expense
func (s *expenseServiceImpl) CreateExpense(ctx context.Context, in ExpenseInput) (*entity.Expense, error) {
	if err := validateExpenseInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	expense := &entity.Expense{
		ID:           entity.NewID(entity.PrefixExpense),
		CompanyID:    strings.TrimSpace(in.CompanyID),
		EmployeeID:   strings.TrimSpace(in.EmployeeID),
		CategoryID:   in.CategoryID,
		Amount:       in.Amount,
		CurrencyCode: strings.ToUpper(strings.TrimSpace(in.CurrencyCode)),
		Description:  strings.TrimSpace(in.Description),
		ExpenseDate:  in.ExpenseDate,
		Status:       entity.ExpenseStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = now
	}

	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		s.logger.Error("Failed to create expense", "error", err, "employee_id", expense.EmployeeID)
		return nil, fmt.Errorf("create expense: %w", err)
	}

	s.logger.Info("Expense created", "expense_id", expense.ID, "amount", expense.Amount, "currency", expense.CurrencyCode)
	return expense, nil
}

// Submit moves a draft into pending, picks the governing rule and writes
// the pending ledger rows it calls for.
func (s *expenseServiceImpl) Submit(ctx context.Context, expenseID, employeeID string, managerID *string) (*Submission, error) {
	var (
		submission *Submission
		rule       *entity.ApprovalRule
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense, err := s.expenseRepo.GetByID(txCtx, expenseID)
		if err != nil {
			return err
		}
		if expense.EmployeeID != employeeID {
			return fmt.Errorf("%w: expense %s", approval.ErrNotFound, expenseID)
		}

		machine, err := workflow.NewExpenseMachine(workflow.FromStatus(expense.Status))
		if err != nil {
			return err
		}
		if err := machine.Fire(txCtx, workflow.TriggerSubmit); err != nil {
			return fmt.Errorf("submit expense %s: %w", expenseID, err)
		}

		rules, err := s.ruleRepo.ListByCompany(txCtx, expense.CompanyID)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		rule = approval.SelectRule(rules, expense)

		now := s.now()
		rows, err := approval.PlanAssignments(expense.ID, rule, managerID, now)
		if err != nil {
			return err
		}

		if err := s.expenseRepo.MarkSubmitted(txCtx, expense.ID, now); err != nil {
			return fmt.Errorf("mark expense %s submitted: %w", expense.ID, err)
		}
		if err := s.approvalRepo.CreateBatch(txCtx, rows); err != nil {
			return fmt.Errorf("create approvals for %s: %w", expense.ID, err)
		}

		expense.Status = machine.State().Status()
		expense.SubmittedAt = &now
		expense.UpdatedAt = now

		submission = &Submission{Expense: expense, Ledger: rows}
		if rule != nil {
			submission.RuleID = &rule.ID
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit expense", "error", err, "expense_id", expenseID)
		return nil, err
	}

	ruleType := "none"
	if rule != nil {
		ruleType = string(rule.RuleType)
	}
	s.metrics.ObserveSubmission(ruleType)
	s.logger.Info("Expense submitted",
		"expense_id", expenseID,
		"rule_type", ruleType,
		"approvers", len(submission.Ledger),
	)

	if s.events != nil {
		payload := map[string]interface{}{
			event.KeyEmployeeID: employeeID,
			event.KeyAmount:     submission.Expense.Amount,
			event.KeyCurrency:   submission.Expense.CurrencyCode,
		}
		if submission.RuleID != nil {
			payload[event.KeyRuleID] = *submission.RuleID
		}
		s.events.DispatchAsync(ctx, event.NewEvent(event.TypeExpenseSubmitted, expenseID, submission.Expense.CompanyID, payload))
	}
	return submission, nil
}

// GetExpense retrieves an expense by ID
func (s *expenseServiceImpl) GetExpense(ctx context.Context, id string) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get expense %s: %w", id, err)
	}
	return expense, nil
}

// ListExpenses returns the expenses of a company or of one employee
func (s *expenseServiceImpl) ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	filter.CompanyID = strings.TrimSpace(filter.CompanyID)
	filter.EmployeeID = strings.TrimSpace(filter.EmployeeID)
	if filter.CompanyID == "" && filter.EmployeeID == "" {
		return nil, fmt.Errorf("%w: company id or employee id is required", approval.ErrValidation)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown expense status %q", approval.ErrValidation, filter.Status)
	}

	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func validateExpenseInput(in ExpenseInput) error {
	switch {
	case strings.TrimSpace(in.CompanyID) == "":
		return fmt.Errorf("%w: company id is required", approval.ErrValidation)
	case strings.TrimSpace(in.EmployeeID) == "":
		return fmt.Errorf("%w: employee id is required", approval.ErrValidation)
	case in.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", approval.ErrValidation)
	case len(strings.TrimSpace(in.CurrencyCode)) != 3:
		return fmt.Errorf("%w: currency code must have three letters", approval.ErrValidation)
	}
	return nil
}
