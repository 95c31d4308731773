package entity

// RuleType selects the algorithm that decides when enough approvals have accumulated
type RuleType string

const (
	RuleTypeSequential       RuleType = "sequential"
	RuleTypePercentage       RuleType = "percentage"
	RuleTypeSpecificApprover RuleType = "specific_approver"
	RuleTypeHybrid           RuleType = "hybrid"
)

// IsValid returns true if the rule type is one of the four supported variants
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeSequential, RuleTypePercentage, RuleTypeSpecificApprover, RuleTypeHybrid:
		return true
	}
	return false
}

// UsesSteps reports whether the rule type assigns approvers through ordered steps
func (t RuleType) UsesSteps() bool {
	return t == RuleTypeSequential || t == RuleTypeHybrid
}

// UsesPercentage reports whether the rule type needs an approval percentage
func (t RuleType) UsesPercentage() bool {
	return t == RuleTypePercentage || t == RuleTypeHybrid
}

// UsesSpecificApprover reports whether the rule type needs a specific approver
func (t RuleType) UsesSpecificApprover() bool {
	return t == RuleTypeSpecificApprover || t == RuleTypeHybrid
}

// ApprovalAction is the action state of a single ledger row
type ApprovalAction string

const (
	ActionPending  ApprovalAction = "pending"
	ActionApproved ApprovalAction = "approved"
	ActionRejected ApprovalAction = "rejected"
)

// IsTerminal returns true once the row has been acted upon
func (a ApprovalAction) IsTerminal() bool {
	return a == ActionApproved || a == ActionRejected
}

// ExpenseStatus is the lifecycle status of an expense
type ExpenseStatus string

const (
	ExpenseStatusDraft    ExpenseStatus = "draft"
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// IsValid returns true for the four lifecycle statuses
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseStatusDraft, ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// GateStepOrder is the step order reserved for the manager gate
const GateStepOrder = 0

// ID prefixes
const (
	PrefixExpense  = "exp"
	PrefixApproval = "apr"
	PrefixRule     = "rul"
	PrefixStep     = "stp"
)
