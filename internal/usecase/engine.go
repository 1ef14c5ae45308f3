package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

// ErrorClassifier maps a raw store error to a domain-coded error. Injected
// by the infra layer so the engine stays driver-agnostic.
type ErrorClassifier func(err error) error

// Result is the outcome of a mutating operation. Replayed is set when the
// outcome came from idempotency dedup instead of a fresh execution; in that
// case sequence and balance fields are zero.
type Result struct {
	Replayed    bool
	FromSeq     int64
	ToSeq       int64
	FromBalance int64
	ToBalance   int64

	// pre-mutation balances, kept for the audit row
	fromPre int64
	toPre   int64
}

// Engine executes deposits, withdrawals and transfers with exactly-once
// effect under retries. Every mutation runs the idempotency protocol and the
// balance mutation inside one store transaction, gated by the health
// monitor, with classified store failures and bounded deadlock retries.
type Engine struct {
	uow      gateway.TransactionManager
	accounts gateway.AccountRepository
	idem     gateway.IdempotencyRepository
	classify ErrorClassifier

	ledger  gateway.LedgerWriter
	events  gateway.EventSink
	metrics gateway.Metrics
	gate    gateway.HealthGate

	idemTTL     time.Duration
	maxAttempts int
	retryBase   time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLedgerWriter sets the best-effort audit writer.
func WithLedgerWriter(w gateway.LedgerWriter) Option {
	return func(e *Engine) { e.ledger = w }
}

// WithEventSink sets the post-commit event dispatcher.
func WithEventSink(s gateway.EventSink) Option {
	return func(e *Engine) { e.events = s }
}

// WithMetrics sets the per-attempt metrics sink.
func WithMetrics(m gateway.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHealthGate sets the degraded-mode write gate.
func WithHealthGate(g gateway.HealthGate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithIdempotencyTTL sets the expiry window stamped on new dedup records.
// Zero means records never expire; external retention owns cleanup either
// way.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.idemTTL = ttl }
}

// WithRetryPolicy bounds the deadlock retry loop.
func WithRetryPolicy(maxAttempts int, base time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if base > 0 {
			e.retryBase = base
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the transaction engine. uow, accounts, idem and classify
// are required; collaborators default to no-ops.
func NewEngine(
	uow gateway.TransactionManager,
	accounts gateway.AccountRepository,
	idem gateway.IdempotencyRepository,
	classify ErrorClassifier,
	opts ...Option,
) *Engine {
	e := &Engine{
		uow:         uow,
		accounts:    accounts,
		idem:        idem,
		classify:    classify,
		ledger:      nopLedger{},
		events:      nopSink{},
		metrics:     nopMetrics{},
		gate:        openGate{},
		idemTTL:     24 * time.Hour,
		maxAttempts: 3,
		retryBase:   10 * time.Millisecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// opSpec describes one mutation attempt. mutate runs inside the store
// transaction after the idempotency check passed, appending one event per
// account it changed.
type opSpec struct {
	kind    domain.OpKind
	from    uuid.UUID
	to      uuid.UUID
	amount  int64
	reason  string
	idemKey string
	mutate  func(ctx context.Context, accounts gateway.AccountRepository, res *Result, events *[]domain.BalanceEvent) error
}

// errReplay signals a completed idempotency record: nothing to redo, roll
// back the read-only transaction and report success with the replay marker.
var errReplay = errors.New("idempotent replay")

func (e *Engine) run(ctx context.Context, op opSpec) (*Result, error) {
	if op.amount <= 0 {
		e.metrics.RecordOperation(op.kind, false, domain.CodeInvalidAmount)
		return nil, domain.ErrInvalidAmount
	}
	if !e.gate.AllowWrite(string(op.kind)) {
		e.metrics.RecordOperation(op.kind, false, domain.CodeDegradedMode)
		return nil, domain.ErrDegradedMode
	}

	keyHash := hashKey(resolveKey(op.idemKey))
	payloadHash := hashPayload(canonicalPayload(op.kind, op.from, op.to, op.amount, op.reason))

	var (
		res    *Result
		events []domain.BalanceEvent
		err    error
	)
	for attempt := 1; ; attempt++ {
		res, events, err = e.attempt(ctx, op, keyHash, payloadHash)
		if err == nil || domain.CodeOf(err) != domain.CodeDeadlockRetryExhausted || attempt >= e.maxAttempts {
			break
		}
		delay := retryDelay(e.retryBase, attempt)
		log.Warn().
			Str("op", string(op.kind)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("deadlock detected, retrying transaction")
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if ctx.Err() != nil {
			break
		}
	}

	e.report(op, res, err)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		e.events.Publish(ev)
	}
	return res, nil
}

// attempt runs the idempotency protocol and the mutation in one store
// transaction. Either everything commits or nothing persists.
func (e *Engine) attempt(ctx context.Context, op opSpec, keyHash, payloadHash string) (*Result, []domain.BalanceEvent, error) {
	res := &Result{}
	var events []domain.BalanceEvent

	err := e.uow.Run(ctx, func(txCtx context.Context) error {
		txObj := txCtx.Value(gateway.TransactionKey)
		if txObj == nil {
			return fmt.Errorf("transaction missing from context")
		}
		accounts := e.accounts.WithTx(txObj)
		idem := e.idem.WithTx(txObj)
		now := e.now()

		rec, err := idem.GetForUpdate(txCtx, op.kind, keyHash)
		if err != nil {
			return e.classify(err)
		}

		switch {
		case rec == nil:
			if err := idem.Insert(txCtx, &gateway.IdempotencyRecord{
				Scope:       op.kind,
				KeyHash:     keyHash,
				PayloadHash: payloadHash,
				CreatedAt:   now,
				ExpiresAt:   e.expiry(now),
			}); err != nil {
				return e.classify(err)
			}
		case rec.Expired(now):
			// Stale record: reset in place and treat as a fresh attempt.
			if err := idem.Reset(txCtx, op.kind, keyHash, payloadHash, e.expiry(now)); err != nil {
				return e.classify(err)
			}
		case rec.PayloadHash != payloadHash:
			return domain.ErrIdempotencyMismatch
		case rec.Completed:
			res.Replayed = true
			return errReplay
		}

		if err := op.mutate(txCtx, accounts, res, &events); err != nil {
			return err
		}
		if err := idem.MarkCompleted(txCtx, op.kind, keyHash); err != nil {
			return e.classify(err)
		}
		return nil
	})

	if errors.Is(err, errReplay) {
		return res, nil, nil
	}
	if err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			// Begin/commit failures reach here unclassified.
			err = e.classify(err)
		}
		return nil, nil, err
	}
	return res, events, nil
}

func (e *Engine) expiry(now time.Time) time.Time {
	if e.idemTTL <= 0 {
		return time.Time{}
	}
	return now.Add(e.idemTTL)
}

// report feeds the health monitor, the metrics sink and the audit ledger
// with the attempt's outcome. Ledger writes are best-effort: failures are
// logged and never undo the committed mutation.
func (e *Engine) report(op opSpec, res *Result, err error) {
	code := domain.Code("")
	ok := err == nil
	switch {
	case err != nil:
		code = domain.CodeOf(err)
	case res != nil && res.Replayed:
		code = domain.CodeIdempotencyReplay
	}

	switch code {
	case domain.CodeConnectionLost, domain.CodeMigrationLocked, domain.CodeDeadlockRetryExhausted:
		e.gate.MarkFailure(err)
	default:
		// Deterministic outcomes mean the store answered.
		e.gate.MarkSuccess()
	}

	e.metrics.RecordOperation(op.kind, ok, code)

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		At:          e.now(),
		Op:          op.kind,
		FromAccount: op.from,
		ToAccount:   op.to,
		Amount:      op.amount,
		Reason:      op.reason,
		Success:     ok,
		ErrorCode:   errorCode(code),
	}
	if res != nil {
		entry.Replayed = res.Replayed
		entry.FromSeq = res.FromSeq
		entry.ToSeq = res.ToSeq
		entry.FromPre = res.fromPre
		entry.FromPost = res.FromBalance
		entry.ToPre = res.toPre
		entry.ToPost = res.ToBalance
	}
	if err := e.ledger.WriteAttempt(context.Background(), entry); err != nil {
		log.Error().Err(err).Str("op", string(op.kind)).Msg("ledger write failed")
	}
}

// errorCode strips the replay pseudo-code: the audit row records replays via
// the Replayed flag, not as an error.
func errorCode(code domain.Code) domain.Code {
	if code == domain.CodeIdempotencyReplay {
		return ""
	}
	return code
}

// GetBalance reads the current balance. Reads are not gated by the health
// monitor: policy is to always allow reads and only gate writes.
func (e *Engine) GetBalance(ctx context.Context, account uuid.UUID) (int64, error) {
	acct, err := e.accounts.GetByID(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return 0, err
		}
		return 0, e.classify(err)
	}
	return acct.Balance, nil
}
