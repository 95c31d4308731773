package entity

import "time"

// ApprovalRule describes how an expense is approved within a company.
// Rule selection by category and amount happens at submission;
// the engine only reads committed rules.
type ApprovalRule struct {
	ID                 string         `json:"id"`
	CompanyID          string         `json:"company_id"`
	SpecificCategoryID *string        `json:"specific_category_id,omitempty"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	RuleType           RuleType       `json:"rule_type"`
	IsManagerFirst     bool           `json:"is_manager_first"`
	Amount             *float64       `json:"amount,omitempty"`
	ApprovalPercentage *int           `json:"approval_percentage,omitempty"`
	SpecificApproverID *string        `json:"specific_approver_id,omitempty"`
	Steps              []ApprovalStep `json:"steps"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ApprovalStep assigns one approver to one position of a rule
type ApprovalStep struct {
	ID         string    `json:"id"`
	RuleID     string    `json:"rule_id"`
	ApproverID string    `json:"approver_id"`
	StepOrder  int       `json:"step_order"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsSpecificApprover reports whether userID is the rule's specific approver
func (r *ApprovalRule) IsSpecificApprover(userID string) bool {
	return r.SpecificApproverID != nil && *r.SpecificApproverID == userID
}

// HasStepApprover reports whether userID is assigned to any of the rule's steps
func (r *ApprovalRule) HasStepApprover(userID string) bool {
	for _, s := range r.Steps {
		if s.ApproverID == userID {
			return true
		}
	}
	return false
}
