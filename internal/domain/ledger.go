package domain

import (
	"time"

	"github.com/google/uuid"
)

// OpKind names an operation family. It doubles as the idempotency scope.
type OpKind string

const (
	OpDeposit  OpKind = "deposit"
	OpWithdraw OpKind = "withdraw"
	OpTransfer OpKind = "transfer"
)

// LedgerEntry is one immutable audit row describing a mutation attempt,
// successful or not. Entries are appended once and never updated.
type LedgerEntry struct {
	ID          uuid.UUID
	At          time.Time
	Op          OpKind
	FromAccount uuid.UUID // zero when the op has no debit side
	ToAccount   uuid.UUID // zero when the op has no credit side
	Amount      int64
	Reason      string
	Success     bool
	Replayed    bool
	ErrorCode   Code // empty on success
	FromSeq     int64
	ToSeq       int64
	FromPre     int64
	FromPost    int64
	ToPre       int64
	ToPost      int64
}
