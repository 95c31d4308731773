package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/infrastructure/persistence/sqlite"
)

// ApprovalRepository implements port.ApprovalRepository over expense_approvals
type ApprovalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new expense approval repository
func NewApprovalRepository(db *sqlite.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `
	a.id, a.expense_id, a.approval_rule_id, a.approver_id, a.step_order,
	a.action, a.comments, a.assigned_at, a.action_at`

// gate first, then steps ascending, unordered rows last
const ledgerOrder = `
	ORDER BY CASE WHEN a.step_order IS NULL THEN 1 ELSE 0 END, a.step_order, a.assigned_at, a.id`

// CreateBatch inserts planned ledger rows
func (r *ApprovalRepository) CreateBatch(ctx context.Context, rows []*entity.ExpenseApproval) error {
	query := `
		INSERT INTO expense_approvals (
			id, expense_id, approval_rule_id, approver_id, step_order,
			action, comments, assigned_at, action_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	exec := r.db.Executor(ctx)
	for _, row := range rows {
		if _, err := exec.ExecContext(ctx, query,
			row.ID,
			row.ExpenseID,
			nullString(row.ApprovalRuleID),
			row.ApproverID,
			nullInt(row.StepOrder),
			string(row.Action),
			nullString(row.Comments),
			row.AssignedAt,
			nullTime(row.ActionAt),
		); err != nil {
			r.logger.Error("Failed to create approval",
				zap.String("approval_id", row.ID),
				zap.String("expense_id", row.ExpenseID),
				zap.Error(err))
			return fmt.Errorf("failed to create approval: %w", err)
		}
	}
	return nil
}

// GetPendingForApprover loads a row that is pending and owned by approverID
func (r *ApprovalRepository) GetPendingForApprover(ctx context.Context, id, approverID string) (*entity.ExpenseApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM expense_approvals a
		WHERE a.id = ? AND a.approver_id = ? AND a.action = 'pending'
	`
	row, err := scanApproval(r.db.Executor(ctx).QueryRowContext(ctx, query, id, approverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", id, approval.ErrNotFoundOrAlreadyProcessed)
	}
	if err != nil {
		r.logger.Error("Failed to get approval", zap.String("approval_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return row, nil
}

// MarkAction writes the decision only while the row is still pending and owned
func (r *ApprovalRepository) MarkAction(ctx context.Context, rec port.ApprovalRecord) error {
	query := `
		UPDATE expense_approvals
		SET action = ?, comments = ?, action_at = ?
		WHERE id = ? AND approver_id = ? AND action = 'pending'
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		string(rec.Action),
		nullString(rec.Comments),
		rec.ActionAt,
		rec.ID,
		rec.ApproverID,
	)
	if err != nil {
		r.logger.Error("Failed to mark approval", zap.String("approval_id", rec.ID), zap.Error(err))
		return fmt.Errorf("failed to mark approval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("approval %s: %w", rec.ID, approval.ErrNotFoundOrAlreadyProcessed)
	}
	return nil
}

// ListByExpense returns an expense's full ledger
func (r *ApprovalRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ExpenseApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM expense_approvals a
		WHERE a.expense_id = ?` + ledgerOrder

	rows, err := r.query(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list ledger", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

// ListPendingByApprover returns the approver's pending rows on pending expenses
func (r *ApprovalRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.ExpenseApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM expense_approvals a
		JOIN expenses e ON e.id = a.expense_id
		WHERE a.approver_id = ? AND a.action = 'pending' AND e.status = 'pending'
		ORDER BY a.assigned_at, a.expense_id,
			CASE WHEN a.step_order IS NULL THEN 1 ELSE 0 END, a.step_order, a.id
	`
	rows, err := r.query(ctx, query, approverID)
	if err != nil {
		r.logger.Error("Failed to list pending approvals", zap.String("approver_id", approverID), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ExpenseApproval, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var out []*entity.ExpenseApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvals: %w", err)
	}
	return out, nil
}

func scanApproval(row rowScanner) (*entity.ExpenseApproval, error) {
	var (
		a         entity.ExpenseApproval
		ruleID    sql.NullString
		stepOrder sql.NullInt64
		action    string
		comments  sql.NullString
		actionAt  sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.ExpenseID,
		&ruleID,
		&a.ApproverID,
		&stepOrder,
		&action,
		&comments,
		&a.AssignedAt,
		&actionAt,
	); err != nil {
		return nil, err
	}

	a.ApprovalRuleID = stringPtr(ruleID)
	a.StepOrder = intPtr(stepOrder)
	a.Action = entity.ApprovalAction(action)
	a.Comments = stringPtr(comments)
	a.ActionAt = timePtr(actionAt)
	return &a, nil
}
