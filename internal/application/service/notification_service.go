package service

import (
	"context"
	"fmt"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/event"
)

// NotificationService turns expense events into notices for people
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	HandleSubmitted(ctx context.Context, evt *event.Event) error
	HandleFinalized(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeExpenseSubmitted, "notify-submitted", s.HandleSubmitted)
	d.SubscribeNamed(event.TypeExpenseApproved, "notify-approved", s.HandleFinalized)
	d.SubscribeNamed(event.TypeExpenseRejected, "notify-rejected", s.HandleFinalized)
}

// HandleSubmitted tells the employee their expense is awaiting approval
func (s *notificationServiceImpl) HandleSubmitted(ctx context.Context, evt *event.Event) error {
	notice := port.Notice{
		ExpenseID:   evt.ExpenseID,
		RecipientID: evt.GetPayloadString(event.KeyEmployeeID),
		Title:       "Expense submitted",
		Body: fmt.Sprintf("Expense %s for %.2f %s is awaiting approval.",
			evt.ExpenseID,
			evt.GetPayloadFloat(event.KeyAmount),
			evt.GetPayloadString(event.KeyCurrency),
		),
	}
	return s.send(ctx, evt, notice)
}

// HandleFinalized tells the employee the final outcome of their expense
func (s *notificationServiceImpl) HandleFinalized(ctx context.Context, evt *event.Event) error {
	outcome := "approved"
	if evt.Type == event.TypeExpenseRejected {
		outcome = "rejected"
	}

	notice := port.Notice{
		ExpenseID:   evt.ExpenseID,
		RecipientID: evt.GetPayloadString(event.KeyEmployeeID),
		Title:       "Expense " + outcome,
		Body: fmt.Sprintf("Expense %s for %.2f %s was %s.",
			evt.ExpenseID,
			evt.GetPayloadFloat(event.KeyAmount),
			evt.GetPayloadString(event.KeyCurrency),
			outcome,
		),
	}
	return s.send(ctx, evt, notice)
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, notice port.Notice) error {
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Error("Failed to send notification",
			"error", err,
			"event_type", evt.Type,
			"expense_id", evt.ExpenseID,
		)
		return fmt.Errorf("notify %s: %w", evt.Type, err)
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type,
		"expense_id", evt.ExpenseID,
		"recipient_id", notice.RecipientID,
	)
	return nil
}
