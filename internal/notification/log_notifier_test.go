package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/max-programming/expenso/internal/application/port"
)

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), port.Notice{
		ExpenseID:   "exp_1",
		RecipientID: "usr_emp",
		Title:       "Expense approved",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("Notification").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "exp_1", entries[0].ContextMap()["expense_id"])
	assert.Equal(t, "usr_emp", entries[0].ContextMap()["recipient_id"])
}
