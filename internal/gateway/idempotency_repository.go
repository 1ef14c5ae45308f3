package gateway

import (
	"context"
	"time"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// IdempotencyRecord is one row of the dedup table, keyed by
// (scope, key hash). Hashes are hex-encoded SHA-256.
type IdempotencyRecord struct {
	Scope       domain.OpKind
	KeyHash     string
	PayloadHash string
	Completed   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero means the record never expires
}

// Expired reports whether the record's expiry has passed at now. Records
// without an expiry never expire.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// IdempotencyRepository stores dedup records. All methods are meant to run
// inside the same store transaction as the mutation they guard, so the
// idempotency check and the mutation commit or roll back together.
type IdempotencyRepository interface {
	// GetForUpdate reads the record under a row lock, nil when absent.
	GetForUpdate(ctx context.Context, scope domain.OpKind, keyHash string) (*IdempotencyRecord, error)

	Insert(ctx context.Context, rec *IdempotencyRecord) error

	// Reset refreshes an expired record in place: new payload hash, fresh
	// expiry, completed back to false.
	Reset(ctx context.Context, scope domain.OpKind, keyHash, payloadHash string, expiresAt time.Time) error

	MarkCompleted(ctx context.Context, scope domain.OpKind, keyHash string) error

	WithTx(tx TransactionObject) IdempotencyRepository
}
