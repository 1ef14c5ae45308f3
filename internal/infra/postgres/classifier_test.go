package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

func pgErr(code, message string) error {
	return &pgconn.PgError{Code: code, Message: message}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.Code
	}{
		{"deadlock detected", pgErr("40P01", "deadlock detected"), domain.CodeDeadlockRetryExhausted},
		{"serialization failure", pgErr("40001", "could not serialize access"), domain.CodeDeadlockRetryExhausted},
		{"unique violation", pgErr("23505", "duplicate key value violates unique constraint"), domain.CodeDuplicateKey},
		{"lock not available", pgErr("55P03", "could not obtain lock on relation"), domain.CodeMigrationLocked},
		{"connection failure", pgErr("08006", "connection failure"), domain.CodeConnectionLost},
		{"connection does not exist", pgErr("08003", "connection does not exist"), domain.CodeConnectionLost},
		{"admin shutdown", pgErr("57P01", "terminating connection due to administrator command"), domain.CodeConnectionLost},
		{"crash shutdown", pgErr("57P02", "crash shutdown"), domain.CodeConnectionLost},
		{"cannot connect now", pgErr("57P03", "the database system is starting up"), domain.CodeConnectionLost},
		{"too many connections", pgErr("53300", "sorry, too many clients already"), domain.CodeConnectionLost},

		{"deadlock by message", errors.New("Deadlock found when trying to get lock"), domain.CodeDeadlockRetryExhausted},
		{"lock wait timeout by message", errors.New("Lock wait timeout exceeded"), domain.CodeDeadlockRetryExhausted},
		{"metadata lock by message", errors.New("Waiting for table metadata lock"), domain.CodeMigrationLocked},
		{"duplicate by message", errors.New("duplicate entry 'k1' for key"), domain.CodeDuplicateKey},
		{"unique constraint by message", errors.New("UNIQUE constraint failed: idempotency_keys"), domain.CodeDuplicateKey},

		{"driver io error", errors.New("read tcp 127.0.0.1:5432: connection reset by peer"), domain.CodeConnectionLost},
		{"unrecognized", errors.New("something unexpected"), domain.CodeConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.want, domain.CodeOf(got))
			assert.ErrorIs(t, got, tt.err, "the raw cause stays in the chain")
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
}

func TestClassifyError_DomainErrorsPassThrough(t *testing.T) {
	got := ClassifyError(domain.ErrInsufficientFunds)
	assert.Same(t, domain.ErrInsufficientFunds, got)

	wrapped := fmt.Errorf("usecase: %w", domain.ErrIdempotencyMismatch)
	got = ClassifyError(wrapped)
	assert.Equal(t, domain.CodeIdempotencyMismatch, domain.CodeOf(got))
}

func TestClassifyError_StructuredCodeWinsOverMessage(t *testing.T) {
	// A connection-class SQLSTATE with a misleading message still classifies
	// by the code.
	got := ClassifyError(pgErr("08006", "duplicate deadlock noise"))
	assert.Equal(t, domain.CodeConnectionLost, domain.CodeOf(got))
}
