package entity

import "time"

// Expense is a single expense claim submitted by an employee
type Expense struct {
	ID           string        `json:"id"`
	CompanyID    string        `json:"company_id"`
	EmployeeID   string        `json:"employee_id"`
	CategoryID   *string       `json:"category_id,omitempty"`
	Amount       float64       `json:"amount"`
	CurrencyCode string        `json:"currency_code"`
	Description  string        `json:"description"`
	ExpenseDate  time.Time     `json:"expense_date"`
	Status       ExpenseStatus `json:"status"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsPending returns true while the expense awaits approval
func (e *Expense) IsPending() bool {
	return e.Status == ExpenseStatusPending
}
