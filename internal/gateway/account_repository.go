package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// AccountRepository persists balance rows. Invariant checks (non-negative
// balance, overflow) live in the usecase layer; the repository only offers
// plain and locking reads plus the atomic balance update.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetForUpdate reads the row under a row lock (SELECT ... FOR UPDATE).
	// Callers lock multiple accounts in ascending id-byte order to keep
	// transfer lock acquisition deadlock free.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// UpdateBalance sets the new balance, bumps the per-account sequence
	// counter by exactly one and refreshes updated_at, returning the
	// assigned sequence number.
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error)

	// WithTx returns a copy bound to the given store transaction.
	WithTx(tx TransactionObject) AccountRepository
}

// AccountDirectory is the identity collaborator: it guarantees a balance row
// exists for an identity. Name handling and identity resolution live outside
// the core.
type AccountDirectory interface {
	EnsureAccount(ctx context.Context, id uuid.UUID) error
}
