// Package notification holds notifiers that do not depend on an external chat service.
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/port"
)

// LogNotifier writes notices to the application log. It is used when no chat
// integration is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(_ context.Context, notice port.Notice) error {
	n.logger.Info("Notification",
		zap.String("expense_id", notice.ExpenseID),
		zap.String("recipient_id", notice.RecipientID),
		zap.String("title", notice.Title),
		zap.String("body", notice.Body))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
