package port

import (
	"context"
	"io"

	"github.com/max-programming/expenso/internal/domain/entity"
)

// Notice is a human-readable notification about an expense
type Notice struct {
	ExpenseID   string
	Title       string
	Body        string
	RecipientID string
}

// Notifier delivers notices to people outside the service
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// LedgerExporter renders an expense's ledger into a downloadable document
type LedgerExporter interface {
	// ContentType is the MIME type of the rendered document
	ContentType() string

	// Export writes the ledger of expense to w
	Export(ctx context.Context, w io.Writer, expense *entity.Expense, ledger []*entity.ExpenseApproval) error
}

// Metrics records decision outcomes
type Metrics interface {
	ObserveDecision(action entity.ApprovalAction, outcome entity.ExpenseStatus)
	ObserveConflict(action entity.ApprovalAction)
	ObserveSubmission(ruleType string)
}
