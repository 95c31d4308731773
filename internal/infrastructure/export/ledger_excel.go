package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/entity"
)

const (
	summarySheet = "Expense"
	ledgerSheet  = "Approvals"

	// XLSXContentType is the MIME type of the generated workbook
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ledgerHeader = []interface{}{"Step", "Approver", "Action", "Comments", "Assigned At", "Action At"}

// LedgerExcelExporter renders an expense ledger as an xlsx workbook
type LedgerExcelExporter struct {
	logger *zap.Logger
}

// NewLedgerExcelExporter creates a new ledger exporter
func NewLedgerExcelExporter(logger *zap.Logger) *LedgerExcelExporter {
	return &LedgerExcelExporter{logger: logger}
}

// ContentType implements port.LedgerExporter
func (e *LedgerExcelExporter) ContentType() string {
	return XLSXContentType
}

// Export writes a two-sheet workbook: the expense summary and its ledger rows
func (e *LedgerExcelExporter) Export(ctx context.Context, w io.Writer, expense *entity.Expense, ledger []*entity.ExpenseApproval) error {
	if expense == nil {
		return fmt.Errorf("expense is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	summary := [][]interface{}{
		{"Expense", expense.ID},
		{"Employee", expense.EmployeeID},
		{"Amount", expense.Amount},
		{"Currency", expense.CurrencyCode},
		{"Description", expense.Description},
		{"Expense Date", formatTime(&expense.ExpenseDate)},
		{"Status", string(expense.Status)},
		{"Submitted At", formatTime(expense.SubmittedAt)},
	}
	for i, row := range summary {
		if err := e.writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}

	if err := e.writeRow(f, ledgerSheet, 1, ledgerHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(ledgerSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, a := range ledger {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []interface{}{
			stepLabel(a),
			a.ApproverID,
			string(a.Action),
			deref(a.Comments),
			formatTime(&a.AssignedAt),
			formatTime(a.ActionAt),
		}
		if err := e.writeRow(f, ledgerSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(ledgerSheet, "A", "F", 20); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Ledger exported",
		zap.String("expense_id", expense.ID),
		zap.Int("rows", len(ledger)))
	return nil
}

func (e *LedgerExcelExporter) writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func stepLabel(a *entity.ExpenseApproval) string {
	slot := a.Slot()
	switch slot.Kind {
	case entity.SlotGate:
		return "manager"
	case entity.SlotStep:
		return fmt.Sprintf("%d", slot.Order)
	default:
		return "-"
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ port.LedgerExporter = (*LedgerExcelExporter)(nil)
