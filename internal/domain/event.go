package domain

import "github.com/google/uuid"

// EventSchemaVersion stamps every published balance event.
const EventSchemaVersion = 1

// BalanceEvent is the transient value handed to the event dispatcher after a
// committed mutation. Not persisted by the core; one event per mutated
// account, ordered per account by Seq.
type BalanceEvent struct {
	AccountID  uuid.UUID `json:"account_id"`
	Seq        int64     `json:"seq"`
	OldBalance int64     `json:"old_balance"`
	NewBalance int64     `json:"new_balance"`
	Reason     string    `json:"reason"`
	Version    int       `json:"version"`
}
