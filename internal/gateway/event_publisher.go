package gateway

import (
	"context"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// EventSink receives balance events after commit. Publish must not block the
// caller; delivery happens on background workers with per-account ordering.
type EventSink interface {
	Publish(event domain.BalanceEvent)
}

// EventPublisher pushes events onto an external broker. Used by the audit
// pipeline bridge, not by the engine directly.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}
