package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Account is a single balance row. Balance is in the smallest currency unit
// and is never negative; Seq is the per-account mutation counter, strictly
// increasing, incremented exactly once per committed mutation.
type Account struct {
	ID        uuid.UUID
	Balance   int64
	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanCredit reports whether adding amount would overflow the maximum
// representable balance. Deposits that would overflow are rejected before
// any mutation.
func (a *Account) CanCredit(amount int64) bool {
	return amount <= math.MaxInt64-a.Balance
}

// CanDebit reports whether the account can pay amount without going
// negative.
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}
