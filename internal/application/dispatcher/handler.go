package dispatcher

import (
	"context"

	"github.com/max-programming/expenso/internal/domain/event"
)

// Handler reacts to a committed expense or approval event. Errors are logged
// by the dispatcher and never roll back the decision that produced the event.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo is a registered handler. Name is unique per event type and is
// the key Unsubscribe matches on; ListHandlers leaves Handler nil.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
