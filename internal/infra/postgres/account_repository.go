package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories run
// standalone or bound to a unit-of-work transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectAccount = `SELECT id, balance, seq, created_at, updated_at
FROM accounts WHERE id = $1`

	selectAccountForUpdate = selectAccount + ` FOR UPDATE`

	updateAccountBalance = `UPDATE accounts
SET balance = $2, seq = seq + 1, updated_at = now()
WHERE id = $1
RETURNING seq`

	upsertAccount = `INSERT INTO accounts (id, balance, seq, created_at, updated_at)
VALUES ($1, 0, 0, now(), now())
ON CONFLICT (id) DO NOTHING`
)

// AccountRepository implements gateway.AccountRepository with pgx/v5.
type AccountRepository struct {
	q querier
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{q: pool}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.scanAccount(r.q.QueryRow(ctx, selectAccount, id))
}

// GetForUpdate reads the row with SELECT ... FOR UPDATE, blocking concurrent
// mutators until the surrounding transaction resolves.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.scanAccount(r.q.QueryRow(ctx, selectAccountForUpdate, id))
}

// UpdateBalance writes the new balance and bumps the per-account sequence
// counter by exactly one, returning the assigned sequence number.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error) {
	var seq int64
	if err := r.q.QueryRow(ctx, updateAccountBalance, id, balance).Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return seq, nil
}

func (r *AccountRepository) WithTx(tx gateway.TransactionObject) gateway.AccountRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &AccountRepository{q: pgTx}
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Balance, &a.Seq, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// AccountDirectory is the identity collaborator: it upserts a zero-balance
// row on first observed activity for an identity.
type AccountDirectory struct {
	pool *pgxpool.Pool
}

func NewAccountDirectory(pool *pgxpool.Pool) *AccountDirectory {
	return &AccountDirectory{pool: pool}
}

func (d *AccountDirectory) EnsureAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := d.pool.Exec(ctx, upsertAccount, id); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}
