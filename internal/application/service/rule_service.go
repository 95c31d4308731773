package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
)

// StepInput is one approver position in a rule being authored
type StepInput struct {
	ApproverID string `json:"approver_id"`
	StepOrder  int    `json:"step_order"`
}

// RuleInput carries the authored fields of an approval rule
type RuleInput struct {
	CompanyID          string          `json:"company_id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	SpecificCategoryID *string         `json:"specific_category_id"`
	RuleType           entity.RuleType `json:"rule_type"`
	IsManagerFirst     bool            `json:"is_manager_first"`
	Amount             *float64        `json:"amount"`
	ApprovalPercentage *int            `json:"approval_percentage"`
	SpecificApproverID *string         `json:"specific_approver_id"`
	Steps              []StepInput     `json:"steps"`
}

// RuleService manages approval rule configuration
type RuleService interface {
	CreateRule(ctx context.Context, in RuleInput) (*entity.ApprovalRule, error)
	UpdateRule(ctx context.Context, id string, in RuleInput) (*entity.ApprovalRule, error)
	GetRule(ctx context.Context, id string) (*entity.ApprovalRule, error)
	ListRules(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error)
	DeleteRule(ctx context.Context, id string) error
}

type ruleServiceImpl struct {
	ruleRepo  port.RuleRepository
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewRuleService creates a new RuleService
func NewRuleService(ruleRepo port.RuleRepository, txManager port.TransactionManager, logger Logger) RuleService {
	return &ruleServiceImpl{
		ruleRepo:  ruleRepo,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRule validates and stores a new rule with its steps
func (s *ruleServiceImpl) CreateRule(ctx context.Context, in RuleInput) (*entity.ApprovalRule, error) {
	now := s.now()
	rule := buildRule(entity.NewID(entity.PrefixRule), in, now)
	rule.CreatedAt = now

	if err := approval.ValidateRule(rule); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.ruleRepo.Create(txCtx, rule)
	})
	if err != nil {
		s.logger.Error("Failed to create rule", "error", err, "company_id", rule.CompanyID)
		return nil, fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("Rule created",
		"rule_id", rule.ID,
		"company_id", rule.CompanyID,
		"rule_type", rule.RuleType,
		"steps", len(rule.Steps),
	)
	return rule, nil
}

// UpdateRule replaces the rule's fields and steps. Rules that still govern
// pending approvals are left untouched.
func (s *ruleServiceImpl) UpdateRule(ctx context.Context, id string, in RuleInput) (*entity.ApprovalRule, error) {
	var updated *entity.ApprovalRule

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.ruleRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.ensureUnused(txCtx, id); err != nil {
			return err
		}

		in.CompanyID = existing.CompanyID
		rule := buildRule(id, in, s.now())
		rule.CreatedAt = existing.CreatedAt
		if err := approval.ValidateRule(rule); err != nil {
			return err
		}

		if err := s.ruleRepo.Update(txCtx, rule); err != nil {
			return fmt.Errorf("update rule %s: %w", id, err)
		}
		updated = rule
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update rule", "error", err, "rule_id", id)
		return nil, err
	}

	s.logger.Info("Rule updated", "rule_id", id, "rule_type", updated.RuleType)
	return updated, nil
}

// GetRule retrieves a rule with its steps
func (s *ruleServiceImpl) GetRule(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rule, nil
}

// ListRules lists every rule of a company
func (s *ruleServiceImpl) ListRules(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company id is required", approval.ErrValidation)
	}
	rules, err := s.ruleRepo.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("Failed to list rules", "error", err, "company_id", companyID)
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// DeleteRule removes a rule that no pending approval depends on
func (s *ruleServiceImpl) DeleteRule(ctx context.Context, id string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.ruleRepo.GetByID(txCtx, id); err != nil {
			return err
		}
		if err := s.ensureUnused(txCtx, id); err != nil {
			return err
		}
		return s.ruleRepo.Delete(txCtx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete rule", "error", err, "rule_id", id)
		return fmt.Errorf("delete rule %s: %w", id, err)
	}

	s.logger.Info("Rule deleted", "rule_id", id)
	return nil
}

func (s *ruleServiceImpl) ensureUnused(ctx context.Context, id string) error {
	n, err := s.ruleRepo.CountPendingUsage(ctx, id)
	if err != nil {
		return fmt.Errorf("count pending usage of %s: %w", id, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d pending approvals", approval.ErrRuleInUse, n)
	}
	return nil
}

func buildRule(id string, in RuleInput, now time.Time) *entity.ApprovalRule {
	rule := &entity.ApprovalRule{
		ID:                 id,
		CompanyID:          strings.TrimSpace(in.CompanyID),
		SpecificCategoryID: in.SpecificCategoryID,
		Name:               strings.TrimSpace(in.Name),
		Description:        strings.TrimSpace(in.Description),
		RuleType:           in.RuleType,
		IsManagerFirst:     in.IsManagerFirst,
		Amount:             in.Amount,
		ApprovalPercentage: in.ApprovalPercentage,
		SpecificApproverID: in.SpecificApproverID,
		UpdatedAt:          now,
	}
	for _, step := range in.Steps {
		rule.Steps = append(rule.Steps, entity.ApprovalStep{
			ID:         entity.NewID(entity.PrefixStep),
			RuleID:     id,
			ApproverID: strings.TrimSpace(step.ApproverID),
			StepOrder:  step.StepOrder,
			CreatedAt:  now,
		})
	}
	approval.SortSteps(rule.Steps)
	return rule
}
