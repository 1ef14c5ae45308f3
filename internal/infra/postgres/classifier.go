package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// ClassifyError maps a raw store error onto the semantic error vocabulary.
// Structured SQLSTATE codes are consulted first, then ordered message-text
// heuristics as a fallback; anything unrecognized counts as a lost
// connection. Pure function, consulted by both the transaction engine and
// the health monitor.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	state := ""
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		state = pgErr.Code
	}
	msg := strings.ToLower(err.Error())

	for _, r := range classifyRules {
		if r.match(state, msg) {
			return domain.NewError(r.code, r.message, err)
		}
	}
	return domain.NewError(domain.CodeConnectionLost, "store unreachable", err)
}

type classifyRule struct {
	match   func(state, msg string) bool
	code    domain.Code
	message string
}

// classifyRules is evaluated in order: reliable SQLSTATE predicates first,
// message substrings last.
var classifyRules = []classifyRule{
	{
		// deadlock_detected, serialization_failure
		match:   func(state, _ string) bool { return state == "40P01" || state == "40001" },
		code:    domain.CodeDeadlockRetryExhausted,
		message: "transaction deadlocked",
	},
	{
		// unique_violation
		match:   func(state, _ string) bool { return state == "23505" },
		code:    domain.CodeDuplicateKey,
		message: "duplicate key",
	},
	{
		// lock_not_available: schema/metadata lock contention
		match:   func(state, _ string) bool { return state == "55P03" },
		code:    domain.CodeMigrationLocked,
		message: "lock contention on schema or metadata",
	},
	{
		// connection exceptions (class 08), admin shutdown/crash (57P01-03),
		// too_many_connections
		match: func(state, _ string) bool {
			return strings.HasPrefix(state, "08") ||
				state == "57P01" || state == "57P02" || state == "57P03" ||
				state == "53300"
		},
		code:    domain.CodeConnectionLost,
		message: "store connection lost",
	},
	{
		match:   func(_, msg string) bool { return strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock wait timeout") },
		code:    domain.CodeDeadlockRetryExhausted,
		message: "transaction deadlocked",
	},
	{
		match:   func(_, msg string) bool { return strings.Contains(msg, "metadata lock") },
		code:    domain.CodeMigrationLocked,
		message: "lock contention on schema or metadata",
	},
	{
		match:   func(_, msg string) bool { return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") },
		code:    domain.CodeDuplicateKey,
		message: "duplicate key",
	},
}
