package usecase

import (
	"context"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// Default collaborators so optional dependencies never need nil checks.

type nopLedger struct{}

func (nopLedger) WriteAttempt(context.Context, *domain.LedgerEntry) error { return nil }

type nopSink struct{}

func (nopSink) Publish(domain.BalanceEvent) {}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(domain.OpKind, bool, domain.Code) {}

// openGate always allows writes; used when no health monitor is wired.
type openGate struct{}

func (openGate) AllowWrite(string) bool { return true }
func (openGate) MarkSuccess()           {}
func (openGate) MarkFailure(error)      {}
