package usecase

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

// Deposit credits amount to the account. idemKey may be empty, in which case
// a one-shot key is generated and the call can never be replayed.
func (e *Engine) Deposit(ctx context.Context, account uuid.UUID, amount int64, reason, idemKey string) (*Result, error) {
	return e.run(ctx, opSpec{
		kind:    domain.OpDeposit,
		to:      account,
		amount:  amount,
		reason:  reason,
		idemKey: idemKey,
		mutate: func(ctx context.Context, accounts gateway.AccountRepository, res *Result, events *[]domain.BalanceEvent) error {
			acct, err := e.lockAccount(ctx, accounts, account)
			if err != nil {
				return err
			}
			if !acct.CanCredit(amount) {
				return domain.NewError(domain.CodeInvalidAmount, "deposit would overflow balance", nil)
			}
			newBalance := acct.Balance + amount
			seq, err := accounts.UpdateBalance(ctx, account, newBalance)
			if err != nil {
				return e.classify(err)
			}
			res.toPre = acct.Balance
			res.ToBalance = newBalance
			res.ToSeq = seq
			*events = append(*events, balanceEvent(account, seq, acct.Balance, newBalance, reason))
			return nil
		},
	})
}

// Withdraw debits amount from the account.
func (e *Engine) Withdraw(ctx context.Context, account uuid.UUID, amount int64, reason, idemKey string) (*Result, error) {
	return e.run(ctx, opSpec{
		kind:    domain.OpWithdraw,
		from:    account,
		amount:  amount,
		reason:  reason,
		idemKey: idemKey,
		mutate: func(ctx context.Context, accounts gateway.AccountRepository, res *Result, events *[]domain.BalanceEvent) error {
			acct, err := e.lockAccount(ctx, accounts, account)
			if err != nil {
				return err
			}
			if !acct.CanDebit(amount) {
				return domain.ErrInsufficientFunds
			}
			newBalance := acct.Balance - amount
			seq, err := accounts.UpdateBalance(ctx, account, newBalance)
			if err != nil {
				return e.classify(err)
			}
			res.fromPre = acct.Balance
			res.FromBalance = newBalance
			res.FromSeq = seq
			*events = append(*events, balanceEvent(account, seq, acct.Balance, newBalance, reason))
			return nil
		},
	})
}

// Transfer moves amount between two accounts atomically. Rows are locked in
// ascending id-byte order regardless of debit direction, so two transfers
// moving funds in opposite directions between the same pair cannot deadlock
// on lock order. A self transfer is a no-op success: no balance change, no
// events.
func (e *Engine) Transfer(ctx context.Context, from, to uuid.UUID, amount int64, reason, idemKey string) (*Result, error) {
	return e.run(ctx, opSpec{
		kind:    domain.OpTransfer,
		from:    from,
		to:      to,
		amount:  amount,
		reason:  reason,
		idemKey: idemKey,
		mutate: func(ctx context.Context, accounts gateway.AccountRepository, res *Result, events *[]domain.BalanceEvent) error {
			if from == to {
				acct, err := e.lockAccount(ctx, accounts, from)
				if err != nil {
					return err
				}
				res.fromPre, res.FromBalance = acct.Balance, acct.Balance
				res.toPre, res.ToBalance = acct.Balance, acct.Balance
				return nil
			}

			first, second := from, to
			if bytes.Compare(second[:], first[:]) < 0 {
				first, second = second, first
			}
			locked := make(map[uuid.UUID]*domain.Account, 2)
			for _, id := range []uuid.UUID{first, second} {
				acct, err := e.lockAccount(ctx, accounts, id)
				if err != nil {
					return err
				}
				locked[id] = acct
			}
			src, dst := locked[from], locked[to]

			if !src.CanDebit(amount) {
				return domain.ErrInsufficientFunds
			}
			if !dst.CanCredit(amount) {
				return domain.NewError(domain.CodeInvalidAmount, "transfer would overflow destination balance", nil)
			}

			fromSeq, err := accounts.UpdateBalance(ctx, from, src.Balance-amount)
			if err != nil {
				return e.classify(err)
			}
			toSeq, err := accounts.UpdateBalance(ctx, to, dst.Balance+amount)
			if err != nil {
				return e.classify(err)
			}

			res.fromPre = src.Balance
			res.FromBalance = src.Balance - amount
			res.FromSeq = fromSeq
			res.toPre = dst.Balance
			res.ToBalance = dst.Balance + amount
			res.ToSeq = toSeq
			*events = append(*events,
				balanceEvent(from, fromSeq, src.Balance, src.Balance-amount, reason),
				balanceEvent(to, toSeq, dst.Balance, dst.Balance+amount, reason),
			)
			return nil
		},
	})
}

// lockAccount takes the row lock, mapping a missing row to UNKNOWN_ACCOUNT
// and everything else through the classifier.
func (e *Engine) lockAccount(ctx context.Context, accounts gateway.AccountRepository, id uuid.UUID) (*domain.Account, error) {
	acct, err := accounts.GetForUpdate(ctx, id)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, e.classify(err)
	}
	return acct, nil
}

func balanceEvent(account uuid.UUID, seq, oldBalance, newBalance int64, reason string) domain.BalanceEvent {
	return domain.BalanceEvent{
		AccountID:  account,
		Seq:        seq,
		OldBalance: oldBalance,
		NewBalance: newBalance,
		Reason:     reason,
		Version:    domain.EventSchemaVersion,
	}
}
