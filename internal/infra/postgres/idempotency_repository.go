package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

const (
	selectIdemForUpdate = `SELECT scope, key_hash, payload_hash, completed, created_at, expires_at
FROM idempotency_keys WHERE scope = $1 AND key_hash = $2 FOR UPDATE`

	insertIdem = `INSERT INTO idempotency_keys (scope, key_hash, payload_hash, completed, created_at, expires_at)
VALUES ($1, $2, $3, false, $4, $5)`

	resetIdem = `UPDATE idempotency_keys
SET payload_hash = $3, completed = false, created_at = now(), expires_at = $4
WHERE scope = $1 AND key_hash = $2`

	completeIdem = `UPDATE idempotency_keys
SET completed = true
WHERE scope = $1 AND key_hash = $2`
)

// IdempotencyRepository implements gateway.IdempotencyRepository on the
// authoritative store. Records live in the same transaction as the mutation
// they guard, so the dedup check and the balance change are atomic together.
type IdempotencyRepository struct {
	q querier
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{q: pool}
}

func (r *IdempotencyRepository) GetForUpdate(ctx context.Context, scope domain.OpKind, keyHash string) (*gateway.IdempotencyRecord, error) {
	var (
		rec       gateway.IdempotencyRecord
		expiresAt pgtype.Timestamptz
	)
	err := r.q.QueryRow(ctx, selectIdemForUpdate, string(scope), keyHash).
		Scan(&rec.Scope, &rec.KeyHash, &rec.PayloadHash, &rec.Completed, &rec.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select idempotency record: %w", err)
	}
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Insert(ctx context.Context, rec *gateway.IdempotencyRecord) error {
	_, err := r.q.Exec(ctx, insertIdem,
		string(rec.Scope), rec.KeyHash, rec.PayloadHash, rec.CreatedAt, nullableTime(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Reset(ctx context.Context, scope domain.OpKind, keyHash, payloadHash string, expiresAt time.Time) error {
	_, err := r.q.Exec(ctx, resetIdem, string(scope), keyHash, payloadHash, nullableTime(expiresAt))
	if err != nil {
		return fmt.Errorf("reset idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) MarkCompleted(ctx context.Context, scope domain.OpKind, keyHash string) error {
	_, err := r.q.Exec(ctx, completeIdem, string(scope), keyHash)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) WithTx(tx gateway.TransactionObject) gateway.IdempotencyRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &IdempotencyRepository{q: pgTx}
}

// nullableTime maps the zero time to SQL NULL; a NULL expiry never expires.
func nullableTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
