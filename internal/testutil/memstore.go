// Package testutil provides in-memory gateway implementations for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

// MemStore backs the account, idempotency and unit-of-work gateways with
// maps. Run serializes transactions under one mutex (the coarse equivalent
// of row locking) and restores a snapshot on rollback, so failed closures
// leave no partial effects, like the real store.
type MemStore struct {
	mu       sync.Mutex
	Accounts map[uuid.UUID]*domain.Account
	Idem     map[string]*gateway.IdempotencyRecord

	// RoundTrips counts individual store accesses, so tests can assert the
	// degraded-mode fast path never touches the store.
	RoundTrips int

	// FailNext makes the next FailCount account reads fail with FailWith,
	// simulating raw driver errors.
	FailWith  error
	FailCount int
}

func NewMemStore() *MemStore {
	return &MemStore{
		Accounts: make(map[uuid.UUID]*domain.Account),
		Idem:     make(map[string]*gateway.IdempotencyRecord),
	}
}

// Seed creates an account with the given balance.
func (s *MemStore) Seed(id uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Accounts[id] = &domain.Account{ID: id, Balance: balance, CreatedAt: now, UpdatedAt: now}
}

// BalanceOf reads a seeded account's balance directly.
func (s *MemStore) BalanceOf(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.Accounts[id]; ok {
		return a.Balance
	}
	return 0
}

// SeqOf reads a seeded account's sequence counter directly.
func (s *MemStore) SeqOf(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.Accounts[id]; ok {
		return a.Seq
	}
	return 0
}

// ---- gateway.TransactionManager ----

type memTx struct{}

func (s *MemStore) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := snapshotAccounts(s.Accounts)
	idem := snapshotIdem(s.Idem)

	err := fn(context.WithValue(ctx, gateway.TransactionKey, memTx{}))
	if err != nil {
		s.Accounts = accounts
		s.Idem = idem
	}
	return err
}

func snapshotAccounts(m map[uuid.UUID]*domain.Account) map[uuid.UUID]*domain.Account {
	out := make(map[uuid.UUID]*domain.Account, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func snapshotIdem(m map[string]*gateway.IdempotencyRecord) map[string]*gateway.IdempotencyRecord {
	out := make(map[string]*gateway.IdempotencyRecord, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// ---- gateway.AccountRepository ----

func (s *MemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(id)
}

func (s *MemStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	// Called inside Run, which already holds the store mutex.
	return s.getAccountLocked(id)
}

func (s *MemStore) getAccountLocked(id uuid.UUID) (*domain.Account, error) {
	s.RoundTrips++
	if s.FailCount > 0 {
		s.FailCount--
		return nil, s.FailWith
	}
	a, ok := s.Accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error) {
	s.RoundTrips++
	a, ok := s.Accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.Balance = balance
	a.Seq++
	a.UpdatedAt = time.Now()
	return a.Seq, nil
}

func (s *MemStore) WithTx(tx gateway.TransactionObject) gateway.AccountRepository { return s }

// ---- gateway.IdempotencyRepository ----

func idemKey(scope domain.OpKind, keyHash string) string {
	return string(scope) + "|" + keyHash
}

func (s *MemStore) GetForUpdateRecord(ctx context.Context, scope domain.OpKind, keyHash string) (*gateway.IdempotencyRecord, error) {
	s.RoundTrips++
	rec, ok := s.Idem[idemKey(scope, keyHash)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) Insert(ctx context.Context, rec *gateway.IdempotencyRecord) error {
	s.RoundTrips++
	cp := *rec
	s.Idem[idemKey(rec.Scope, rec.KeyHash)] = &cp
	return nil
}

func (s *MemStore) Reset(ctx context.Context, scope domain.OpKind, keyHash, payloadHash string, expiresAt time.Time) error {
	s.RoundTrips++
	if rec, ok := s.Idem[idemKey(scope, keyHash)]; ok {
		rec.PayloadHash = payloadHash
		rec.Completed = false
		rec.CreatedAt = time.Now()
		rec.ExpiresAt = expiresAt
	}
	return nil
}

func (s *MemStore) MarkCompleted(ctx context.Context, scope domain.OpKind, keyHash string) error {
	s.RoundTrips++
	if rec, ok := s.Idem[idemKey(scope, keyHash)]; ok {
		rec.Completed = true
	}
	return nil
}

// IdemRepo adapts MemStore to gateway.IdempotencyRepository (GetForUpdate
// collides with the account method name, hence the wrapper).
type IdemRepo struct{ S *MemStore }

func (r IdemRepo) GetForUpdate(ctx context.Context, scope domain.OpKind, keyHash string) (*gateway.IdempotencyRecord, error) {
	return r.S.GetForUpdateRecord(ctx, scope, keyHash)
}

func (r IdemRepo) Insert(ctx context.Context, rec *gateway.IdempotencyRecord) error {
	return r.S.Insert(ctx, rec)
}

func (r IdemRepo) Reset(ctx context.Context, scope domain.OpKind, keyHash, payloadHash string, expiresAt time.Time) error {
	return r.S.Reset(ctx, scope, keyHash, payloadHash, expiresAt)
}

func (r IdemRepo) MarkCompleted(ctx context.Context, scope domain.OpKind, keyHash string) error {
	return r.S.MarkCompleted(ctx, scope, keyHash)
}

func (r IdemRepo) WithTx(tx gateway.TransactionObject) gateway.IdempotencyRepository { return r }

// ---- recording collaborators ----

// RecordingSink collects published events.
type RecordingSink struct {
	mu     sync.Mutex
	Events []domain.BalanceEvent
}

func (s *RecordingSink) Publish(event domain.BalanceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
}

// ForAccount returns the events published for one account, in order.
func (s *RecordingSink) ForAccount(id uuid.UUID) []domain.BalanceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BalanceEvent
	for _, ev := range s.Events {
		if ev.AccountID == id {
			out = append(out, ev)
		}
	}
	return out
}

// RecordingLedger collects audit rows.
type RecordingLedger struct {
	mu      sync.Mutex
	Entries []domain.LedgerEntry
}

func (l *RecordingLedger) WriteAttempt(ctx context.Context, entry *domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, *entry)
	return nil
}

// Last returns the most recent entry, nil when empty.
func (l *RecordingLedger) Last() *domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Entries) == 0 {
		return nil
	}
	cp := l.Entries[len(l.Entries)-1]
	return &cp
}

// RecordingMetrics collects metric samples.
type MetricSample struct {
	Kind domain.OpKind
	OK   bool
	Code domain.Code
}

type RecordingMetrics struct {
	mu      sync.Mutex
	Samples []MetricSample
}

func (m *RecordingMetrics) RecordOperation(kind domain.OpKind, ok bool, code domain.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Samples = append(m.Samples, MetricSample{Kind: kind, OK: ok, Code: code})
}

// StubGate is a write gate with a fixed answer that records health marks.
type StubGate struct {
	mu        sync.Mutex
	Allow     bool
	Successes int
	Failures  []error
}

func (g *StubGate) AllowWrite(op string) bool { return g.Allow }

func (g *StubGate) MarkSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Successes++
}

func (g *StubGate) MarkFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Failures = append(g.Failures, err)
}
