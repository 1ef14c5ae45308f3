package gateway

import (
	"context"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// Metrics records one sample per attempt, success or failure. Replay and
// mismatch outcomes arrive with their own codes so they count distinctly.
type Metrics interface {
	RecordOperation(kind domain.OpKind, ok bool, code domain.Code)
}

// HealthGate is consulted before any mutating store round-trip and told
// about every store outcome afterwards. When AllowWrite returns false the
// caller surfaces DEGRADED_MODE without touching the store.
type HealthGate interface {
	AllowWrite(op string) bool
	MarkSuccess()
	MarkFailure(err error)
}

// LockProvider takes cross-process advisory locks. Consumed by schedulers
// and migrations outside the engine; the engine itself relies on store row
// locks only.
type LockProvider interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
