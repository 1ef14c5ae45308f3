package gateway

import (
	"context"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// LedgerWriter appends audit rows, one per mutation attempt including failed
// ones. Writes are best-effort: a failure is logged by the caller and never
// rolls back an already-committed mutation.
type LedgerWriter interface {
	WriteAttempt(ctx context.Context, entry *domain.LedgerEntry) error
}
