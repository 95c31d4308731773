package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/infrastructure/persistence/sqlite"
)

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, e *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			id, company_id, employee_id, category_id, amount, currency_code,
			description, expense_date, status, submitted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		e.ID,
		e.CompanyID,
		e.EmployeeID,
		nullString(e.CategoryID),
		e.Amount,
		e.CurrencyCode,
		e.Description,
		e.ExpenseDate,
		string(e.Status),
		nullTime(e.SubmittedAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.String("expense_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

const expenseColumns = `id, company_id, employee_id, category_id, amount, currency_code,
	description, expense_date, status, submitted_at, created_at, updated_at`

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	e, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, approval.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("expense_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// List retrieves expenses matching filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		e           entity.Expense
		categoryID  sql.NullString
		status      string
		submittedAt sql.NullTime
	)
	if err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.EmployeeID,
		&categoryID,
		&e.Amount,
		&e.CurrencyCode,
		&e.Description,
		&e.ExpenseDate,
		&status,
		&submittedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.CategoryID = stringPtr(categoryID)
	e.Status = entity.ExpenseStatus(status)
	e.SubmittedAt = timePtr(submittedAt)
	return &e, nil
}

// UpdateStatus compares and swaps the expense status
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id string, from, to entity.ExpenseStatus) error {
	query := `UPDATE expenses SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	return r.swap(ctx, query, id, string(to), time.Now(), id, string(from))
}

// MarkSubmitted moves a draft to pending
func (r *ExpenseRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE expenses SET status = 'pending', submitted_at = ?, updated_at = ?
		WHERE id = ? AND status = 'draft'
	`
	return r.swap(ctx, query, id, at, at, id)
}

func (r *ExpenseRepository) swap(ctx context.Context, query, id string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.String("expense_id", id), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", id, approval.ErrNotFoundOrAlreadyProcessed)
	}
	return nil
}
