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

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new approval rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

const ruleColumns = `
	id, company_id, specific_category_id, name, description, rule_type,
	is_manager_first, amount, approval_percentage, specific_approver_id,
	created_at, updated_at`

// Create inserts a rule and its steps
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	query := `INSERT INTO approval_rules (` + ruleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.CompanyID,
		nullString(rule.SpecificCategoryID),
		rule.Name,
		rule.Description,
		string(rule.RuleType),
		rule.IsManagerFirst,
		nullFloat(rule.Amount),
		nullInt(rule.ApprovalPercentage),
		nullString(rule.SpecificApproverID),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.String("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return r.insertSteps(ctx, rule)
}

// Update rewrites the rule row and replaces its steps
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	query := `
		UPDATE approval_rules SET
			specific_category_id = ?, name = ?, description = ?, rule_type = ?,
			is_manager_first = ?, amount = ?, approval_percentage = ?,
			specific_approver_id = ?, updated_at = ?
		WHERE id = ?
	`
	exec := r.db.Executor(ctx)
	result, err := exec.ExecContext(ctx, query,
		nullString(rule.SpecificCategoryID),
		rule.Name,
		rule.Description,
		string(rule.RuleType),
		rule.IsManagerFirst,
		nullFloat(rule.Amount),
		nullInt(rule.ApprovalPercentage),
		nullString(rule.SpecificApproverID),
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.String("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, approval.ErrNotFound)
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM approval_steps WHERE approval_rule_id = ?`, rule.ID); err != nil {
		return fmt.Errorf("failed to clear rule steps: %w", err)
	}
	return r.insertSteps(ctx, rule)
}

func (r *RuleRepository) insertSteps(ctx context.Context, rule *entity.ApprovalRule) error {
	query := `
		INSERT INTO approval_steps (id, approval_rule_id, approver_id, step_order, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, step := range rule.Steps {
		if _, err := r.db.Executor(ctx).ExecContext(ctx, query,
			step.ID,
			rule.ID,
			step.ApproverID,
			step.StepOrder,
			step.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to create rule step",
				zap.String("rule_id", rule.ID),
				zap.Int("step_order", step.StepOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create rule step: %w", err)
		}
	}
	return nil
}

// GetByID loads a rule with its steps
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = ?`

	rule, err := scanRule(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, approval.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("rule_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	steps, err := r.loadSteps(ctx, `WHERE approval_rule_id = ?`, id)
	if err != nil {
		return nil, err
	}
	rule.Steps = steps[rule.ID]
	return rule, nil
}

// ListByCompany loads every rule of a company, oldest first
func (r *RuleRepository) ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	rules, err := r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM approval_rules WHERE company_id = ? ORDER BY created_at, id`, companyID)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}

	steps, err := r.loadSteps(ctx,
		`WHERE approval_rule_id IN (SELECT id FROM approval_rules WHERE company_id = ?)`, companyID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		rule.Steps = steps[rule.ID]
	}
	return rules, nil
}

// queryRules drains and closes the result set before returning; the pool
// may hold a single connection.
func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalRule, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// Delete removes a rule; its steps cascade
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM approval_rules WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete rule", zap.String("rule_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// CountPendingUsage counts pending ledger rows governed by the rule
func (r *RuleRepository) CountPendingUsage(ctx context.Context, id string) (int, error) {
	query := `SELECT COUNT(*) FROM expense_approvals WHERE approval_rule_id = ? AND action = 'pending'`

	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rule usage: %w", err)
	}
	return n, nil
}

func (r *RuleRepository) loadSteps(ctx context.Context, where string, args ...interface{}) (map[string][]entity.ApprovalStep, error) {
	query := `
		SELECT id, approval_rule_id, approver_id, step_order, created_at
		FROM approval_steps ` + where + `
		ORDER BY approval_rule_id, step_order
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load rule steps", zap.Error(err))
		return nil, fmt.Errorf("failed to load rule steps: %w", err)
	}
	defer rows.Close()

	steps := make(map[string][]entity.ApprovalStep)
	for rows.Next() {
		var s entity.ApprovalStep
		if err := rows.Scan(&s.ID, &s.RuleID, &s.ApproverID, &s.StepOrder, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule step: %w", err)
		}
		steps[s.RuleID] = append(steps[s.RuleID], s)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*entity.ApprovalRule, error) {
	var (
		rule       entity.ApprovalRule
		ruleType   string
		categoryID sql.NullString
		amount     sql.NullFloat64
		percentage sql.NullInt64
		specificID sql.NullString
	)
	if err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&categoryID,
		&rule.Name,
		&rule.Description,
		&ruleType,
		&rule.IsManagerFirst,
		&amount,
		&percentage,
		&specificID,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.RuleType = entity.RuleType(ruleType)
	rule.SpecificCategoryID = stringPtr(categoryID)
	rule.Amount = floatPtr(amount)
	rule.ApprovalPercentage = intPtr(percentage)
	rule.SpecificApproverID = stringPtr(specificID)
	return &rule, nil
}
