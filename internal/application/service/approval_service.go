package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/domain/event"
	"github.com/max-programming/expenso/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Decision is the outcome of one approve or reject call
type Decision struct {
	ApprovalID string               `json:"approval_id"`
	ExpenseID  string               `json:"expense_id"`
	Status     entity.ExpenseStatus `json:"status"`
}

// PendingApproval is a ledger row the approver may act on right now
type PendingApproval struct {
	Approval *entity.ExpenseApproval `json:"approval"`
	Expense  *entity.Expense         `json:"expense"`
	RuleName string                  `json:"rule_name,omitempty"`
	RuleType entity.RuleType         `json:"rule_type,omitempty"`
}

// ApprovalService records approver decisions and finalizes expenses
type ApprovalService interface {
	Approve(ctx context.Context, approvalID, actorID string, comments *string) (*Decision, error)
	Reject(ctx context.Context, approvalID, actorID, comments string) (*Decision, error)
	ListVisiblePending(ctx context.Context, approverID string) ([]*PendingApproval, error)
	GetLedger(ctx context.Context, expenseID string) ([]*entity.ExpenseApproval, error)
	ExportLedger(ctx context.Context, expenseID string, w io.Writer) error
}

type approvalServiceImpl struct {
	ruleRepo     port.RuleRepository
	approvalRepo port.ApprovalRepository
	expenseRepo  port.ExpenseRepository
	txManager    port.TransactionManager
	events       dispatcher.Dispatcher
	exporter     port.LedgerExporter
	metrics      port.Metrics
	logger       Logger
	now          func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	ruleRepo port.RuleRepository,
	approvalRepo port.ApprovalRepository,
	expenseRepo port.ExpenseRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	exporter port.LedgerExporter,
	metrics port.Metrics,
	logger Logger,
) ApprovalService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &approvalServiceImpl{
		ruleRepo:     ruleRepo,
		approvalRepo: approvalRepo,
		expenseRepo:  expenseRepo,
		txManager:    txManager,
		events:       events,
		exporter:     exporter,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Approve records an approval on a pending row owned by actorID and
// finalizes the expense once its rule is satisfied.
func (s *approvalServiceImpl) Approve(ctx context.Context, approvalID, actorID string, comments *string) (*Decision, error) {
	comments = normalizeComments(comments)

	var (
		decision *Decision
		events   []*event.Event
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		row, expense, err := s.loadActionable(txCtx, approvalID, actorID)
		if err != nil {
			return err
		}

		var rule *entity.ApprovalRule
		if !row.IsGate() {
			if rule, err = s.loadRule(txCtx, row.ApprovalRuleID); err != nil {
				return err
			}
			if err := s.ensureGateCleared(txCtx, rule, expense.ID); err != nil {
				return err
			}
		}

		now := s.now()
		if err := s.approvalRepo.MarkAction(txCtx, port.ApprovalRecord{
			ID:         row.ID,
			ApproverID: actorID,
			Action:     entity.ActionApproved,
			Comments:   comments,
			ActionAt:   now,
		}); err != nil {
			return fmt.Errorf("mark approval %s approved: %w", row.ID, err)
		}

		recorded := recordedEvent(expense, row, entity.ActionApproved, comments)
		events = append(events, recorded)
		decision = &Decision{ApprovalID: row.ID, ExpenseID: expense.ID, Status: entity.ExpenseStatusPending}

		// The manager gate only opens the flow; it never finalizes.
		if row.IsGate() {
			return nil
		}

		ledger, err := s.approvalRepo.ListByExpense(txCtx, expense.ID)
		if err != nil {
			return fmt.Errorf("list ledger for %s: %w", expense.ID, err)
		}

		if approval.Evaluate(rule, ledger, actorID) != approval.VerdictApproved {
			return nil
		}

		status, err := s.finalize(txCtx, expense, workflow.TriggerApprove)
		if err != nil {
			return err
		}
		decision.Status = status
		events = append(events, finalEvent(event.TypeExpenseApproved, expense, recorded.CorrelationID))
		return nil
	})

	if err != nil {
		return nil, s.fail("approve", err, entity.ActionApproved, approvalID, actorID)
	}

	s.metrics.ObserveDecision(entity.ActionApproved, decision.Status)
	s.logger.Info("Approval recorded",
		"approval_id", decision.ApprovalID,
		"expense_id", decision.ExpenseID,
		"approver_id", actorID,
		"status", decision.Status,
	)
	s.publish(ctx, events)
	return decision, nil
}

// ensureGateCleared refuses step approvals on a manager-first rule while
// the manager gate row is still open. Nothing has been written at this point.
func (s *approvalServiceImpl) ensureGateCleared(ctx context.Context, rule *entity.ApprovalRule, expenseID string) error {
	if rule == nil || !rule.IsManagerFirst {
		return nil
	}

	ledger, err := s.approvalRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("list ledger for %s: %w", expenseID, err)
	}
	if gate := approval.GateRow(ledger); gate != nil && gate.Action != entity.ActionApproved {
		return fmt.Errorf("%w: manager approval is still outstanding for expense %s",
			approval.ErrNotFoundOrAlreadyProcessed, expenseID)
	}
	return nil
}

// Reject records a rejection and moves the expense to rejected. A single
// rejection anywhere in the ledger is final.
func (s *approvalServiceImpl) Reject(ctx context.Context, approvalID, actorID, comments string) (*Decision, error) {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, fmt.Errorf("%w: comments are required when rejecting", approval.ErrValidation)
	}

	var (
		decision *Decision
		events   []*event.Event
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		row, expense, err := s.loadActionable(txCtx, approvalID, actorID)
		if err != nil {
			return err
		}

		if err := s.approvalRepo.MarkAction(txCtx, port.ApprovalRecord{
			ID:         row.ID,
			ApproverID: actorID,
			Action:     entity.ActionRejected,
			Comments:   &comments,
			ActionAt:   s.now(),
		}); err != nil {
			return fmt.Errorf("mark approval %s rejected: %w", row.ID, err)
		}

		status, err := s.finalize(txCtx, expense, workflow.TriggerReject)
		if err != nil {
			return err
		}

		recorded := recordedEvent(expense, row, entity.ActionRejected, &comments)
		events = append(events, recorded, finalEvent(event.TypeExpenseRejected, expense, recorded.CorrelationID))
		decision = &Decision{ApprovalID: row.ID, ExpenseID: expense.ID, Status: status}
		return nil
	})

	if err != nil {
		return nil, s.fail("reject", err, entity.ActionRejected, approvalID, actorID)
	}

	s.metrics.ObserveDecision(entity.ActionRejected, decision.Status)
	s.logger.Info("Rejection recorded",
		"approval_id", decision.ApprovalID,
		"expense_id", decision.ExpenseID,
		"approver_id", actorID,
	)
	s.publish(ctx, events)
	return decision, nil
}

// ListVisiblePending returns the rows approverID may act on now, in the
// order the repository returns them.
func (s *approvalServiceImpl) ListVisiblePending(ctx context.Context, approverID string) ([]*PendingApproval, error) {
	rows, err := s.approvalRepo.ListPendingByApprover(ctx, approverID)
	if err != nil {
		s.logger.Error("Failed to list pending approvals", "error", err, "approver_id", approverID)
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}

	type expenseView struct {
		expense *entity.Expense
		ledger  []*entity.ExpenseApproval
		rule    *entity.ApprovalRule
	}
	views := make(map[string]*expenseView)
	rules := make(map[string]*entity.ApprovalRule)

	result := make([]*PendingApproval, 0, len(rows))
	for _, row := range rows {
		view, ok := views[row.ExpenseID]
		if !ok {
			expense, err := s.expenseRepo.GetByID(ctx, row.ExpenseID)
			if err != nil {
				return nil, fmt.Errorf("get expense %s: %w", row.ExpenseID, err)
			}
			ledger, err := s.approvalRepo.ListByExpense(ctx, row.ExpenseID)
			if err != nil {
				return nil, fmt.Errorf("list ledger for %s: %w", row.ExpenseID, err)
			}

			var rule *entity.ApprovalRule
			if row.ApprovalRuleID != nil {
				if rule, ok = rules[*row.ApprovalRuleID]; !ok {
					if rule, err = s.loadRule(ctx, row.ApprovalRuleID); err != nil {
						return nil, err
					}
					rules[*row.ApprovalRuleID] = rule
				}
			}

			view = &expenseView{expense: expense, ledger: ledger, rule: rule}
			views[row.ExpenseID] = view
		}

		if !view.expense.IsPending() || !approval.IsVisible(row, view.rule, view.ledger, approverID) {
			continue
		}

		item := &PendingApproval{Approval: row, Expense: view.expense}
		if view.rule != nil {
			item.RuleName = view.rule.Name
			item.RuleType = view.rule.RuleType
		}
		result = append(result, item)
	}

	return result, nil
}

// GetLedger returns every ledger row of an expense
func (s *approvalServiceImpl) GetLedger(ctx context.Context, expenseID string) ([]*entity.ExpenseApproval, error) {
	if _, err := s.expenseRepo.GetByID(ctx, expenseID); err != nil {
		return nil, fmt.Errorf("get expense %s: %w", expenseID, err)
	}
	ledger, err := s.approvalRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		s.logger.Error("Failed to list ledger", "error", err, "expense_id", expenseID)
		return nil, fmt.Errorf("list ledger for %s: %w", expenseID, err)
	}
	return ledger, nil
}

// ExportLedger renders the ledger of an expense with the configured exporter
func (s *approvalServiceImpl) ExportLedger(ctx context.Context, expenseID string, w io.Writer) error {
	if s.exporter == nil {
		return errors.New("ledger export is not configured")
	}

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("get expense %s: %w", expenseID, err)
	}
	ledger, err := s.approvalRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("list ledger for %s: %w", expenseID, err)
	}

	if err := s.exporter.Export(ctx, w, expense, ledger); err != nil {
		s.logger.Error("Failed to export ledger", "error", err, "expense_id", expenseID)
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}

// loadActionable fetches a row that is pending, owned by actorID and whose
// expense is still pending.
func (s *approvalServiceImpl) loadActionable(ctx context.Context, approvalID, actorID string) (*entity.ExpenseApproval, *entity.Expense, error) {
	row, err := s.approvalRepo.GetPendingForApprover(ctx, approvalID, actorID)
	if err != nil {
		return nil, nil, err
	}

	expense, err := s.expenseRepo.GetByID(ctx, row.ExpenseID)
	if err != nil {
		return nil, nil, fmt.Errorf("get expense %s: %w", row.ExpenseID, err)
	}
	if !expense.IsPending() {
		return nil, nil, fmt.Errorf("%w: expense %s is %s", approval.ErrNotFoundOrAlreadyProcessed, expense.ID, expense.Status)
	}
	return row, expense, nil
}

func (s *approvalServiceImpl) loadRule(ctx context.Context, ruleID *string) (*entity.ApprovalRule, error) {
	if ruleID == nil {
		return nil, nil
	}
	rule, err := s.ruleRepo.GetByID(ctx, *ruleID)
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", *ruleID, err)
	}
	return rule, nil
}

// finalize fires trigger on the expense lifecycle and persists the new status
func (s *approvalServiceImpl) finalize(ctx context.Context, expense *entity.Expense, trigger workflow.Trigger) (entity.ExpenseStatus, error) {
	machine, err := workflow.NewExpenseMachine(workflow.FromStatus(expense.Status))
	if err != nil {
		return "", fmt.Errorf("expense %s: %w", expense.ID, err)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", fmt.Errorf("expense %s: %w", expense.ID, err)
	}

	next := machine.State().Status()
	if err := s.expenseRepo.UpdateStatus(ctx, expense.ID, expense.Status, next); err != nil {
		return "", fmt.Errorf("update expense %s status: %w", expense.ID, err)
	}
	expense.Status = next
	return next, nil
}

func (s *approvalServiceImpl) fail(op string, err error, action entity.ApprovalAction, approvalID, actorID string) error {
	if errors.Is(err, approval.ErrNotFoundOrAlreadyProcessed) {
		s.metrics.ObserveConflict(action)
		s.logger.Info("Approval not actionable",
			"op", op,
			"approval_id", approvalID,
			"approver_id", actorID,
			"reason", err.Error(),
		)
		return err
	}
	s.logger.Error("Failed to record decision",
		"op", op,
		"error", err,
		"approval_id", approvalID,
		"approver_id", actorID,
	)
	return err
}

func (s *approvalServiceImpl) publish(ctx context.Context, events []*event.Event) {
	if s.events == nil || len(events) == 0 {
		return
	}
	s.events.DispatchAsync(ctx, events...)
}

func recordedEvent(expense *entity.Expense, row *entity.ExpenseApproval, action entity.ApprovalAction, comments *string) *event.Event {
	payload := map[string]interface{}{
		event.KeyApprovalID: row.ID,
		event.KeyApproverID: row.ApproverID,
		event.KeyAction:     string(action),
		event.KeyEmployeeID: expense.EmployeeID,
	}
	if comments != nil {
		payload[event.KeyComments] = *comments
	}
	if row.StepOrder != nil {
		payload[event.KeyStepOrder] = *row.StepOrder
	}
	return event.NewEvent(event.TypeApprovalRecorded, expense.ID, expense.CompanyID, payload)
}

func finalEvent(t event.Type, expense *entity.Expense, correlationID string) *event.Event {
	return event.NewEventWithCorrelation(t, expense.ID, expense.CompanyID, map[string]interface{}{
		event.KeyEmployeeID: expense.EmployeeID,
		event.KeyAmount:     expense.Amount,
		event.KeyCurrency:   expense.CurrencyCode,
	}, correlationID)
}

func normalizeComments(comments *string) *string {
	if comments == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comments)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type nopMetrics struct{}

func (nopMetrics) ObserveDecision(entity.ApprovalAction, entity.ExpenseStatus) {}
func (nopMetrics) ObserveConflict(entity.ApprovalAction)                       {}
func (nopMetrics) ObserveSubmission(string)                                    {}
