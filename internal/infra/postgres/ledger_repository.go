package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

const insertLedgerEntry = `INSERT INTO ledger_entries
(id, at, op, from_account, to_account, amount, reason, success, replayed, error_code,
 from_seq, to_seq, from_pre, from_post, to_pre, to_post)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// LedgerRepository appends immutable audit rows, one per mutation attempt.
// Rows are written after the mutation transaction resolved and are never
// updated or deleted here; retention and export belong elsewhere.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WriteAttempt(ctx context.Context, entry *domain.LedgerEntry) error {
	_, err := r.pool.Exec(ctx, insertLedgerEntry,
		entry.ID,
		entry.At,
		string(entry.Op),
		nullableUUID(entry.FromAccount),
		nullableUUID(entry.ToAccount),
		entry.Amount,
		entry.Reason,
		entry.Success,
		entry.Replayed,
		string(entry.ErrorCode),
		entry.FromSeq,
		entry.ToSeq,
		entry.FromPre,
		entry.FromPost,
		entry.ToPre,
		entry.ToPost,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// nullableUUID maps the zero uuid (absent participant) to SQL NULL.
func nullableUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
