package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/application/service"
	"github.com/max-programming/expenso/internal/domain/entity"
)

const defaultLedgerContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvals         service.ApprovalService
	expenses          service.ExpenseService
	rules             service.RuleService
	ledgerContentType string
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	contentType := services.LedgerContentType
	if contentType == "" {
		contentType = defaultLedgerContentType
	}
	return &Handlers{
		approvals:         services.Approvals,
		expenses:          services.Expenses,
		rules:             services.Rules,
		ledgerContentType: contentType,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ApproveRequest is the body of POST /approvals/:id/approve
type ApproveRequest struct {
	Comments *string `json:"comments"`
}

// RejectRequest is the body of POST /approvals/:id/reject
type RejectRequest struct {
	Comments string `json:"comments"`
}

// SubmitRequest is the body of POST /expenses/:id/submit
type SubmitRequest struct {
	ManagerID *string `json:"manager_id"`
}

// Version is reported by the health check
var Version = "dev"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// Approve handles POST /api/v1/approvals/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req ApproveRequest
	if !h.bindOptional(c, &req) {
		return
	}

	decision, err := h.approvals.Approve(c.Request.Context(), c.Param("id"), currentUser(c), req.Comments)
	if err != nil {
		h.respondError(c, "approve", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: decision})
}

// Reject handles POST /api/v1/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	decision, err := h.approvals.Reject(c.Request.Context(), c.Param("id"), currentUser(c), req.Comments)
	if err != nil {
		h.respondError(c, "reject", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: decision})
}

// ListPendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	items, err := h.approvals.ListVisiblePending(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, "list pending approvals", err)
		return
	}
	if items == nil {
		items = []*service.PendingApproval{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// CreateExpense handles POST /api/v1/expenses; the caller is the employee
func (h *Handlers) CreateExpense(c *gin.Context) {
	var in service.ExpenseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	in.EmployeeID = currentUser(c)

	expense, err := h.expenses.CreateExpense(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "create expense", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: expense})
}

// ListExpenses handles GET /api/v1/expenses. Without company_id it lists
// the caller's own expenses.
func (h *Handlers) ListExpenses(c *gin.Context) {
	filter := port.ExpenseFilter{
		CompanyID:  c.Query("company_id"),
		EmployeeID: c.Query("employee_id"),
		Status:     entity.ExpenseStatus(c.Query("status")),
	}
	if filter.CompanyID == "" && filter.EmployeeID == "" {
		filter.EmployeeID = currentUser(c)
	}

	expenses, err := h.expenses.ListExpenses(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []*entity.Expense{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	expense, err := h.expenses.GetExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get expense", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// SubmitExpense handles POST /api/v1/expenses/:id/submit
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req SubmitRequest
	if !h.bindOptional(c, &req) {
		return
	}

	submission, err := h.expenses.Submit(c.Request.Context(), c.Param("id"), currentUser(c), req.ManagerID)
	if err != nil {
		h.respondError(c, "submit expense", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: submission})
}

// GetLedger handles GET /api/v1/expenses/:id/approvals
func (h *Handlers) GetLedger(c *gin.Context) {
	ledger, err := h.approvals.GetLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get ledger", err)
		return
	}
	if ledger == nil {
		ledger = []*entity.ExpenseApproval{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ledger})
}

// ExportLedger handles GET /api/v1/expenses/:id/approvals/export
func (h *Handlers) ExportLedger(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.approvals.ExportLedger(c.Request.Context(), id, &buf); err != nil {
		h.respondError(c, "export ledger", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, id))
	c.Data(http.StatusOK, h.ledgerContentType, buf.Bytes())
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var in service.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}

	rule, err := h.rules.CreateRule(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "create rule", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: rule})
}

// ListRules handles GET /api/v1/rules?company_id=
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context(), c.Query("company_id"))
	if err != nil {
		h.respondError(c, "list rules", err)
		return
	}
	if rules == nil {
		rules = []*entity.ApprovalRule{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rules})
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get rule", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	var in service.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}

	rule, err := h.rules.UpdateRule(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.respondError(c, "update rule", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete rule", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// bindOptional decodes a JSON body when one is present
func (h *Handlers) bindOptional(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err)
		return false
	}
	return true
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   "invalid request body: " + err.Error(),
	})
}
